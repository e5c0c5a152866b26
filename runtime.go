package fuseomics

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/omixlab/fuseomics/evaluate"
	"github.com/omixlab/fuseomics/extension"
	"github.com/omixlab/fuseomics/feature"
	"github.com/omixlab/fuseomics/hpo"
	"github.com/omixlab/fuseomics/internal/clock"
	"github.com/omixlab/fuseomics/internal/idgen"
	"github.com/omixlab/fuseomics/model"
	"github.com/omixlab/fuseomics/omics"
	"github.com/omixlab/fuseomics/progress"
	"github.com/omixlab/fuseomics/service/dao"
	"github.com/omixlab/fuseomics/service/messaging"
	"github.com/omixlab/fuseomics/tracing"
	"github.com/omixlab/fuseomics/train"
)

// Runtime executes modelling runs: import, preprocessing, hyperparameter
// search, final training, evaluation and artifact export.
type Runtime struct {
	models           *extension.Models
	runDAO           dao.Service[string, model.RunRecord]
	trialQueue       messaging.Queue[hpo.Candidate]
	progressListener func(progress.Tracker)
}

// hyperparameters is the resolved set the final fit uses; HPO overrides the
// config fallbacks.
type hyperparameters struct {
	HiddenDim    int
	LatentDim    int
	Dropout      float64
	BatchSize    int
	LearningRate float64
}

// Run executes one modelling run described by config and returns its
// persisted record.
func (r *Runtime) Run(ctx context.Context, config *Config) (*model.RunRecord, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartSpan(ctx, "runtime.Run", config.Model.Class)
	var runErr error
	defer func() { tracing.EndSpan(span, runErr) }()

	tracker := &progress.Tracker{
		RunID:     idgen.New(),
		Model:     config.Model.Class,
		StartedAt: clock.Now(),
	}
	if r.progressListener != nil {
		tracker.OnChange(r.progressListener)
	}

	trainSet, testSet, err := r.importData(ctx, config)
	if err != nil {
		runErr = err
		return nil, err
	}
	groupVar, err := r.preprocess(ctx, config, trainSet, testSet)
	if err != nil {
		runErr = err
		return nil, err
	}

	rng := rand.New(rand.NewSource(config.Training.Seed))
	fitSet, valSet := trainSet.Split(rng.Perm(trainSet.NumSamples()), config.Data.ValFraction)

	hyper := hyperparameters{
		HiddenDim:    config.Model.HiddenDim,
		LatentDim:    config.Model.LatentDim,
		Dropout:      config.Model.Dropout,
		BatchSize:    config.Training.BatchSize,
		LearningRate: config.Training.LearningRate,
	}
	if config.HPO.Iterations > 0 {
		if err = r.tune(ctx, config, tracker, fitSet, valSet, &hyper); err != nil {
			runErr = err
			return nil, err
		}
	}

	arch, result, err := r.finalFit(ctx, config, tracker, hyper, fitSet, valSet)
	if err != nil {
		runErr = err
		return nil, err
	}

	record := &model.RunRecord{
		ID:        tracker.RunID,
		Model:     arch.Name(),
		Targets:   config.Data.Targets,
		StartedAt: tracker.StartedAt,
		Hyperparameters: map[string]float64{
			"hiddenDim":    float64(hyper.HiddenDim),
			"latentDim":    float64(hyper.LatentDim),
			"dropout":      hyper.Dropout,
			"batchSize":    float64(hyper.BatchSize),
			"learningRate": hyper.LearningRate,
		},
		Epochs:    result.Epochs,
		BestEpoch: result.BestEpoch,
		ValLoss:   result.FinalValLoss,
		Metrics:   map[string]map[string]float64{},
	}

	evalSet := testSet
	if evalSet == nil {
		evalSet = valSet
		groupVar = nil
	}
	if groupVar == nil {
		for _, name := range config.Data.Targets {
			if v := evalSet.Targets[name]; v != nil && v.Kind == omics.Categorical {
				groupVar = v
				break
			}
		}
	}
	record.Metrics = evaluateTargets(arch, evalSet)
	if config.Evaluation.Baselines && testSet != nil {
		baselines, err := evaluate.Baselines(trainSet, testSet)
		if err == nil {
			foldBaselines(record.Metrics, baselines)
		}
	}

	if err = r.export(ctx, config, record, arch, evalSet, groupVar); err != nil {
		runErr = err
		return nil, err
	}

	record.CompletedAt = clock.Now()
	if err = r.runDAO.Save(ctx, record); err != nil {
		runErr = err
		return nil, err
	}
	return record, nil
}

// Record returns a persisted run record.
func (r *Runtime) Record(ctx context.Context, id string) (*model.RunRecord, error) {
	return r.runDAO.Load(ctx, id)
}

// Records lists persisted run records.
func (r *Runtime) Records(ctx context.Context, parameters ...*dao.Parameter) ([]*model.RunRecord, error) {
	return r.runDAO.List(ctx, parameters...)
}

func (r *Runtime) importData(ctx context.Context, config *Config) (trainSet, testSet *omics.Dataset, err error) {
	ctx, span := tracing.StartSpan(ctx, "runtime.Import", config.Data.Path)
	defer func() { tracing.EndSpan(span, err) }()

	variables := append([]string{}, config.Data.Targets...)
	variables = append(variables, config.Data.BatchVariables...)
	importer := omics.NewImporter(config.Data.Path, config.Data.DataTypes, variables)
	return importer.Import(ctx)
}

// preprocess transforms both splits in place: log1p, train-fitted scaling,
// Laplacian-score feature selection and batch-association screening. It
// returns the variable used to color embedding plots.
func (r *Runtime) preprocess(ctx context.Context, config *Config, trainSet, testSet *omics.Dataset) (groupVar *omics.Variable, err error) {
	_, span := tracing.StartSpan(ctx, "runtime.Preprocess", "")
	defer func() { tracing.EndSpan(span, err) }()

	if config.Data.LogTransform {
		omics.Log1p(trainSet)
		if testSet != nil {
			omics.Log1p(testSet)
		}
	}
	scaler := omics.FitScaler(trainSet)
	if err = scaler.Transform(trainSet); err != nil {
		return nil, err
	}
	if testSet != nil {
		if err = scaler.Transform(testSet); err != nil {
			return nil, err
		}
	}

	for _, name := range trainSet.LayerNames() {
		dim := trainSet.Dim(name)
		keep := config.Features.KeepCount(dim)
		if keep < dim {
			kept, err := feature.SelectByLaplacian(trainSet.Layers[name], keep, config.Features.KNeighbors)
			if err != nil {
				return nil, fmt.Errorf("feature selection failed on layer %q: %w", name, err)
			}
			if err = selectByIndex(trainSet, testSet, name, kept); err != nil {
				return nil, err
			}
		}
		for _, batchName := range config.Data.BatchVariables {
			batchVar, ok := trainSet.Targets[batchName]
			if !ok {
				return nil, fmt.Errorf("batch variable %q not found", batchName)
			}
			drop := feature.BatchAssociated(trainSet.Layers[name], batchVar.Values, config.Features.BatchThreshold, 0)
			if len(drop) == 0 || len(drop) >= trainSet.Dim(name) {
				continue
			}
			kept := feature.Complement(drop, trainSet.Dim(name))
			if err = selectByIndex(trainSet, testSet, name, kept); err != nil {
				return nil, err
			}
		}
	}

	// Batch variables are screens, not endpoints. The first categorical one
	// on the test split is kept around as embedding plot grouping.
	for _, batchName := range config.Data.BatchVariables {
		delete(trainSet.Targets, batchName)
		if testSet == nil {
			continue
		}
		v := testSet.Targets[batchName]
		if groupVar == nil && v != nil && v.Kind == omics.Categorical {
			groupVar = v
		}
		delete(testSet.Targets, batchName)
	}
	return groupVar, nil
}

func (r *Runtime) tune(ctx context.Context, config *Config, tracker *progress.Tracker, fitSet, valSet *omics.Dataset, hyper *hyperparameters) error {
	evaluator := func(ctx context.Context, c hpo.Candidate, trainSplit, valSplit *omics.Dataset) (float64, error) {
		spec := model.SpecFor(trainSplit, c.HiddenDim, c.LatentDim, c.Dropout,
			model.FusionKind(config.Model.FusionType), config.Model.LossWeighting, config.Training.Seed)
		builder, err := r.models.Lookup(config.Model.Class)
		if err != nil {
			return 0, err
		}
		arch, err := builder(spec)
		if err != nil {
			return 0, err
		}
		trainer := train.New(
			train.WithEpochs(config.Training.Epochs),
			train.WithBatchSize(c.BatchSize),
			train.WithLearningRate(c.LearningRate),
			train.WithEarlyStopping(config.Training.EarlyStopPatience),
			train.WithSeed(config.Training.Seed),
		)
		result, err := trainer.Fit(ctx, arch, trainSplit, valSplit)
		if err != nil {
			return 0, err
		}
		return result.FinalValLoss, nil
	}

	options := []hpo.SearchOption{
		hpo.WithWorkers(config.HPO.Workers),
		hpo.WithSeed(config.Training.Seed),
		hpo.WithTracker(tracker),
	}
	if r.trialQueue != nil {
		options = append(options, hpo.WithQueue(r.trialQueue))
	}
	search := hpo.NewSearch(config.HPO.Iterations, options...)
	best, _, err := search.Run(ctx, evaluator, fitSet, valSet)
	if err != nil {
		return err
	}
	hyper.HiddenDim = best.Candidate.HiddenDim
	hyper.LatentDim = best.Candidate.LatentDim
	hyper.Dropout = best.Candidate.Dropout
	hyper.BatchSize = best.Candidate.BatchSize
	hyper.LearningRate = best.Candidate.LearningRate
	return nil
}

func (r *Runtime) finalFit(ctx context.Context, config *Config, tracker *progress.Tracker, hyper hyperparameters, fitSet, valSet *omics.Dataset) (model.Architecture, *train.Result, error) {
	spec := model.SpecFor(fitSet, hyper.HiddenDim, hyper.LatentDim, hyper.Dropout,
		model.FusionKind(config.Model.FusionType), config.Model.LossWeighting, config.Training.Seed)
	builder, err := r.models.Lookup(config.Model.Class)
	if err != nil {
		return nil, nil, err
	}
	arch, err := builder(spec)
	if err != nil {
		return nil, nil, err
	}
	trainer := train.New(
		train.WithEpochs(config.Training.Epochs),
		train.WithBatchSize(hyper.BatchSize),
		train.WithLearningRate(hyper.LearningRate),
		train.WithEarlyStopping(config.Training.EarlyStopPatience),
		train.WithSeed(config.Training.Seed),
		train.WithTracker(tracker),
	)
	result, err := trainer.Fit(ctx, arch, fitSet, valSet)
	if err != nil {
		return nil, nil, err
	}
	return arch, result, nil
}

// evaluateTargets scores every target of the dataset against the model's
// predictions.
func evaluateTargets(arch model.Architecture, ds *omics.Dataset) map[string]map[string]float64 {
	metrics := map[string]map[string]float64{}
	predictions := arch.Predict(ds)
	for name, v := range ds.Targets {
		pred, ok := predictions[name]
		if !ok {
			continue
		}
		switch v.Kind {
		case omics.Categorical:
			yPred := evaluate.Argmax(matRows(pred))
			yTrue := make([]int, len(v.Values))
			for i := range v.Values {
				yTrue[i] = v.Class(i)
			}
			m, err := evaluate.Classification(yTrue, yPred, v.NumClasses())
			if err != nil {
				continue
			}
			metrics[name] = map[string]float64{
				"balancedAccuracy": m.BalancedAccuracy,
				"f1Macro":          m.F1Macro,
				"kappa":            m.Kappa,
			}
		case omics.Numerical:
			yPred := mat.Col(nil, 0, pred)
			m, err := evaluate.Regression(v.Values, yPred)
			if err != nil {
				continue
			}
			metrics[name] = map[string]float64{
				"mse":     m.MSE,
				"r2":      m.R2,
				"pearson": m.Pearson,
			}
		}
	}
	return metrics
}

func foldBaselines(metrics map[string]map[string]float64, baselines []evaluate.BaselineResult) {
	for _, b := range baselines {
		if metrics[b.Target] == nil {
			metrics[b.Target] = map[string]float64{}
		}
		prefix := "baseline." + b.Method + "."
		if b.Classification != nil {
			metrics[b.Target][prefix+"balancedAccuracy"] = b.Classification.BalancedAccuracy
			metrics[b.Target][prefix+"f1Macro"] = b.Classification.F1Macro
			metrics[b.Target][prefix+"kappa"] = b.Classification.Kappa
		}
		if b.Regression != nil {
			metrics[b.Target][prefix+"mse"] = b.Regression.MSE
			metrics[b.Target][prefix+"r2"] = b.Regression.R2
			metrics[b.Target][prefix+"pearson"] = b.Regression.Pearson
		}
	}
}

func selectByIndex(trainSet, testSet *omics.Dataset, layer string, kept []int) error {
	names := make([]string, len(kept))
	for i, idx := range kept {
		names[i] = trainSet.Features[layer][idx]
	}
	if err := trainSet.SelectFeatures(layer, names); err != nil {
		return err
	}
	if testSet != nil {
		if err := testSet.SelectFeatures(layer, names); err != nil {
			return fmt.Errorf("test split is missing selected features: %w", err)
		}
	}
	return nil
}

func matRows(m *mat.Dense) [][]float64 {
	rows, _ := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = m.RawRowView(i)
	}
	return out
}
