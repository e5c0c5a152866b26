package fuseomics

import (
	"fmt"

	"github.com/omixlab/fuseomics/feature"
	"github.com/omixlab/fuseomics/model"
)

// Config is a serialisable representation of one modelling run. It can be
// populated from YAML (see Service.LoadConfig), flags or environment
// variables. The zero-value is not usable; start from DefaultConfig.
type Config struct {
	Data       DataConfig       `json:"data" yaml:"data"`
	Model      ModelConfig      `json:"model" yaml:"model"`
	Features   FeatureConfig    `json:"features" yaml:"features"`
	HPO        HPOConfig        `json:"hpo" yaml:"hpo"`
	Training   TrainingConfig   `json:"training" yaml:"training"`
	Evaluation EvaluationConfig `json:"evaluation" yaml:"evaluation"`
	Output     OutputConfig     `json:"output" yaml:"output"`
}

// DataConfig locates and shapes the input study.
type DataConfig struct {
	// Path is the base URL of the study folder holding train/ and
	// optionally test/ (any afs scheme).
	Path string `json:"path" yaml:"path"`
	// DataTypes names the omic layers to load, e.g. [gex, cnv].
	DataTypes []string `json:"dataTypes" yaml:"dataTypes"`
	// Targets names the clinical variables to supervise on.
	Targets []string `json:"targets" yaml:"targets"`
	// BatchVariables names clinical variables describing technical batches;
	// features associated with them are screened out, not predicted.
	BatchVariables []string `json:"batchVariables,omitempty" yaml:"batchVariables,omitempty"`
	// LogTransform applies log(1+x) to every layer before scaling.
	LogTransform bool `json:"logTransform" yaml:"logTransform"`
	// ValFraction is the share of training samples held out for validation.
	ValFraction float64 `json:"valFraction" yaml:"valFraction"`
}

// ModelConfig selects and shapes the architecture.
type ModelConfig struct {
	// Class is a registered architecture name, e.g. DirectPred.
	Class string `json:"class" yaml:"class"`
	// FusionType is early or intermediate.
	FusionType string `json:"fusionType" yaml:"fusionType"`
	// HiddenDim, LatentDim and Dropout are the fallback hyperparameters used
	// when HPO is disabled; HPO overrides them with the best trial.
	HiddenDim int     `json:"hiddenDim" yaml:"hiddenDim"`
	LatentDim int     `json:"latentDim" yaml:"latentDim"`
	Dropout   float64 `json:"dropout" yaml:"dropout"`
	// LossWeighting enables learned uncertainty weighting across task losses.
	LossWeighting bool `json:"lossWeighting" yaml:"lossWeighting"`
}

// FeatureConfig controls unsupervised feature selection.
type FeatureConfig struct {
	feature.SelectorConfig `json:",inline" yaml:",inline"`
	// BatchThreshold is the mutual-information cutoff above which a feature
	// is considered batch-associated and dropped.
	BatchThreshold float64 `json:"batchThreshold" yaml:"batchThreshold"`
}

// HPOConfig controls random hyperparameter search.
type HPOConfig struct {
	// Iterations is the number of trials; zero disables HPO.
	Iterations int `json:"iterations" yaml:"iterations"`
	// Workers is the number of concurrent trials.
	Workers int `json:"workers" yaml:"workers"`
}

// TrainingConfig controls the gradient-descent loop.
type TrainingConfig struct {
	Epochs       int     `json:"epochs" yaml:"epochs"`
	BatchSize    int     `json:"batchSize" yaml:"batchSize"`
	LearningRate float64 `json:"learningRate" yaml:"learningRate"`
	// EarlyStopPatience stops training after this many epochs without
	// validation improvement; zero disables early stopping.
	EarlyStopPatience int   `json:"earlyStopPatience" yaml:"earlyStopPatience"`
	Seed              int64 `json:"seed" yaml:"seed"`
}

// EvaluationConfig controls held-out evaluation extras.
type EvaluationConfig struct {
	// Baselines also scores constant and kNN predictors on the test split.
	Baselines bool `json:"baselines" yaml:"baselines"`
}

// OutputConfig controls run artifacts.
type OutputConfig struct {
	// Dir receives predictions, embeddings, metrics and plots.
	Dir string `json:"dir" yaml:"dir"`
	// Prefix is prepended to every artifact file name.
	Prefix string `json:"prefix" yaml:"prefix"`
	// Plot renders a 2D embedding scatter when a test split is present.
	Plot bool `json:"plot" yaml:"plot"`
}

// DefaultConfig returns a Config with the documented defaults. Callers set
// Data.Path, Data.DataTypes and Data.Targets before running.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			LogTransform: true,
			ValFraction:  0.2,
		},
		Model: ModelConfig{
			Class:      model.DirectPredName,
			FusionType: string(model.FusionIntermediate),
			HiddenDim:  128,
			LatentDim:  64,
			Dropout:    0.2,
		},
		Features: FeatureConfig{
			SelectorConfig: feature.SelectorConfig{
				MinFeatures:   500,
				TopPercentile: 20,
				KNeighbors:    5,
			},
			BatchThreshold: feature.DefaultMIThreshold,
		},
		HPO: HPOConfig{
			Iterations: 5,
			Workers:    1,
		},
		Training: TrainingConfig{
			Epochs:            100,
			BatchSize:         32,
			LearningRate:      0.01,
			EarlyStopPatience: 10,
			Seed:              42,
		},
		Evaluation: EvaluationConfig{
			Baselines: false,
		},
		Output: OutputConfig{
			Dir:    "output",
			Prefix: "job",
			Plot:   true,
		},
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if len(c.Data.DataTypes) == 0 {
		return fmt.Errorf("data.dataTypes is required")
	}
	if len(c.Data.Targets) == 0 {
		return fmt.Errorf("data.targets is required")
	}
	if c.Data.ValFraction <= 0 || c.Data.ValFraction >= 1 {
		return fmt.Errorf("data.valFraction must be in (0, 1)")
	}
	if c.Model.Class == "" {
		return fmt.Errorf("model.class is required")
	}
	switch model.FusionKind(c.Model.FusionType) {
	case model.FusionEarly, model.FusionIntermediate:
	default:
		return fmt.Errorf("model.fusionType must be %v or %v", model.FusionEarly, model.FusionIntermediate)
	}
	if c.Model.HiddenDim <= 0 || c.Model.LatentDim <= 0 {
		return fmt.Errorf("model.hiddenDim and model.latentDim must be > 0")
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		return fmt.Errorf("model.dropout must be in [0, 1)")
	}
	if c.Features.TopPercentile <= 0 || c.Features.TopPercentile > 100 {
		return fmt.Errorf("features.topPercentile must be in (0, 100]")
	}
	if c.HPO.Iterations < 0 {
		return fmt.Errorf("hpo.iterations must be >= 0")
	}
	if c.Training.Epochs <= 0 {
		return fmt.Errorf("training.epochs must be > 0")
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("training.batchSize must be > 0")
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("training.learningRate must be > 0")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	return nil
}
