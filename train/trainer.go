// Package train runs the gradient-descent loop for a model architecture:
// mini-batches with deterministic shuffling, Adam with cosine annealing,
// early stopping on validation loss and progress/tracing instrumentation.
package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/omixlab/fuseomics/model"
	"github.com/omixlab/fuseomics/nn"
	"github.com/omixlab/fuseomics/omics"
	"github.com/omixlab/fuseomics/optimizer"
	"github.com/omixlab/fuseomics/progress"
	"github.com/omixlab/fuseomics/tracing"
)

// Trainer fits an architecture to a dataset.
type Trainer struct {
	epochs       int
	batchSize    int
	learningRate float64
	patience     int
	seed         int64
	tracker      *progress.Tracker
}

// Option customizes a Trainer.
type Option func(*Trainer)

// WithEpochs sets the epoch budget.
func WithEpochs(epochs int) Option {
	return func(t *Trainer) { t.epochs = epochs }
}

// WithBatchSize sets the mini-batch size.
func WithBatchSize(size int) Option {
	return func(t *Trainer) { t.batchSize = size }
}

// WithLearningRate sets the peak learning rate of the cosine schedule.
func WithLearningRate(lr float64) Option {
	return func(t *Trainer) { t.learningRate = lr }
}

// WithEarlyStopping stops after patience epochs without validation
// improvement; zero disables early stopping.
func WithEarlyStopping(patience int) Option {
	return func(t *Trainer) { t.patience = patience }
}

// WithSeed makes shuffling and triplet sampling deterministic.
func WithSeed(seed int64) Option {
	return func(t *Trainer) { t.seed = seed }
}

// WithTracker attaches a progress tracker updated once per epoch.
func WithTracker(tracker *progress.Tracker) Option {
	return func(t *Trainer) { t.tracker = tracker }
}

// New creates a Trainer. Defaults: 100 epochs, batch size 32, lr 0.01,
// no early stopping, seed 42.
func New(options ...Option) *Trainer {
	t := &Trainer{
		epochs:       100,
		batchSize:    32,
		learningRate: 0.01,
		seed:         42,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// Result summarizes one fit.
type Result struct {
	Epochs       int       `json:"epochs" yaml:"epochs"`
	BestEpoch    int       `json:"bestEpoch" yaml:"bestEpoch"`
	TrainLoss    []float64 `json:"trainLoss" yaml:"trainLoss"`
	ValLoss      []float64 `json:"valLoss,omitempty" yaml:"valLoss,omitempty"`
	FinalValLoss float64   `json:"finalValLoss" yaml:"finalValLoss"`
	Stopped      bool      `json:"stoppedEarly" yaml:"stoppedEarly"`
}

// Fit trains the architecture on the train split, monitoring the validation
// split when present. Parameters are restored to the best validation epoch
// before returning.
func (t *Trainer) Fit(ctx context.Context, arch model.Architecture, trainSet, valSet *omics.Dataset) (*Result, error) {
	if trainSet.NumSamples() == 0 {
		return nil, fmt.Errorf("train split is empty")
	}
	ctx, span := tracing.StartSpan(ctx, "train.Fit", arch.Name())
	defer tracing.EndSpan(span, nil)

	rng := rand.New(rand.NewSource(t.seed))
	params := arch.Params()
	adam := optimizer.NewAdam(params, t.learningRate)

	n := trainSet.NumSamples()
	batchSize := t.batchSize
	if batchSize > n {
		batchSize = n
	}
	stepsPerEpoch := (n + batchSize - 1) / batchSize
	schedule := optimizer.NewCosineAnnealing(t.learningRate, t.epochs*stepsPerEpoch)

	triplet, _ := arch.(*model.MultiTripletNetwork)
	var sampler *omics.TripletSampler
	var valTriplets *model.TripletBatch
	if triplet != nil {
		primary := triplet.Primary().Name
		var err error
		sampler, err = omics.NewTripletSampler(trainSet.Targets[primary], t.seed)
		if err != nil {
			return nil, err
		}
		if valSet != nil && valSet.NumSamples() > 0 {
			if valSampler, err := omics.NewTripletSampler(valSet.Targets[primary], t.seed); err == nil {
				valTriplets = model.NewTripletBatch(valSet, primary, valSampler.Fixed(valSet.Targets[primary]))
			}
		}
	}

	order := make([]int, n)
	copy(order, allIndices(n))

	result := &Result{}
	best := math.Inf(1)
	bestEpoch := 0
	bestParams := nn.Clone(params)
	patienceLeft := t.patience

	if t.tracker != nil {
		t.tracker.Update(progress.Delta{Epochs: t.epochs})
	}

	for epoch := 0; epoch < t.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		epochLoss := 0.0
		steps := 0
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			indices := order[start:end]
			nn.ZeroGrads(params)
			var loss float64
			if triplet != nil {
				primary := triplet.Primary().Name
				triplets := sampler.Batch(trainSet.Targets[primary], indices)
				if len(triplets) == 0 {
					continue
				}
				loss, _ = triplet.TrainTriplets(model.NewTripletBatch(trainSet, primary, triplets))
			} else {
				loss, _ = arch.TrainStep(model.NewBatch(trainSet, indices))
			}
			adam.SetLR(schedule.LR())
			adam.Step()
			schedule.Advance()
			epochLoss += loss
			steps++
		}
		if steps > 0 {
			epochLoss /= float64(steps)
		}
		result.TrainLoss = append(result.TrainLoss, epochLoss)

		monitored := epochLoss
		if valSet != nil && valSet.NumSamples() > 0 {
			var valLoss float64
			if triplet != nil && valTriplets != nil {
				valLoss, _ = triplet.LossTriplets(valTriplets)
			} else {
				valLoss, _ = arch.Loss(model.NewBatch(valSet, allIndices(valSet.NumSamples())))
			}
			result.ValLoss = append(result.ValLoss, valLoss)
			monitored = valLoss
		}

		if t.tracker != nil {
			t.tracker.Update(progress.Delta{EpochsCompleted: 1})
		}

		if monitored < best-1e-9 {
			best = monitored
			bestEpoch = epoch
			bestParams = nn.Clone(params)
			patienceLeft = t.patience
		} else if t.patience > 0 {
			patienceLeft--
			if patienceLeft <= 0 {
				result.Stopped = true
				result.Epochs = epoch + 1
				break
			}
		}
	}
	if result.Epochs == 0 {
		result.Epochs = t.epochs
	}
	nn.Restore(params, bestParams)
	result.BestEpoch = bestEpoch
	result.FinalValLoss = best
	return result, nil
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
