package train

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/omixlab/fuseomics/model"
	"github.com/omixlab/fuseomics/omics"
	"github.com/omixlab/fuseomics/progress"
)

// trainerDataset builds a learnable toy problem: the classboundary and the
// numeric target both follow the first feature.
func trainerDataset(n int, seedShift float64) *omics.Dataset {
	x := mat.NewDense(n, 3, nil)
	classes := make([]float64, n)
	age := make([]float64, n)
	for i := 0; i < n; i++ {
		v := -1.0 + 2.0*float64(i)/float64(n-1) + seedShift
		x.Set(i, 0, v)
		x.Set(i, 1, 0.1*float64(i%3))
		x.Set(i, 2, -0.1*float64(i%2))
		if v > seedShift {
			classes[i] = 1
		}
		age[i] = 2 * v
	}
	samples := make([]string, n)
	for i := range samples {
		samples[i] = string(rune('a' + i%26))
	}
	return &omics.Dataset{
		Layers:   map[string]*mat.Dense{"gex": x},
		Features: map[string][]string{"gex": {"g1", "g2", "g3"}},
		Samples:  samples,
		Targets: map[string]*omics.Variable{
			"Subtype": {Name: "Subtype", Kind: omics.Categorical, Values: classes, Levels: []string{"A", "B"}},
			"Age":     {Name: "Age", Kind: omics.Numerical, Values: age},
		},
	}
}

func trainerSpec(ds *omics.Dataset) *model.Spec {
	return model.SpecFor(ds, 8, 4, 0, model.FusionEarly, false, 3)
}

func TestFit_ReducesTrainLoss(t *testing.T) {
	trainSet := trainerDataset(16, 0)
	arch := model.NewDirectPred(trainerSpec(trainSet))
	trainer := New(WithEpochs(40), WithBatchSize(8), WithLearningRate(0.01), WithSeed(1))
	result, err := trainer.Fit(context.Background(), arch, trainSet, nil)
	assert.Nil(t, err)
	assert.Equal(t, 40, result.Epochs)
	assert.Equal(t, 40, len(result.TrainLoss))
	assert.Empty(t, result.ValLoss)
	assert.True(t, result.TrainLoss[39] < result.TrainLoss[0],
		"loss %v did not improve on %v", result.TrainLoss[39], result.TrainLoss[0])
	// Without a validation split the training loss is monitored.
	assert.False(t, math.IsInf(result.FinalValLoss, 1))
}

func TestFit_EarlyStopping(t *testing.T) {
	trainSet := trainerDataset(16, 0)
	valSet := trainerDataset(8, 0.05)
	arch := model.NewDirectPred(trainerSpec(trainSet))
	trainer := New(WithEpochs(500), WithBatchSize(8), WithLearningRate(0.05),
		WithEarlyStopping(5), WithSeed(1))
	result, err := trainer.Fit(context.Background(), arch, trainSet, valSet)
	assert.Nil(t, err)
	if result.Stopped {
		assert.True(t, result.Epochs < 500)
	}
	assert.Equal(t, result.Epochs, len(result.ValLoss))
	assert.True(t, result.BestEpoch < result.Epochs)
	// FinalValLoss is the best monitored value, never worse than any epoch.
	for _, v := range result.ValLoss {
		assert.True(t, result.FinalValLoss <= v+1e-9)
	}
}

func TestFit_TracksProgress(t *testing.T) {
	trainSet := trainerDataset(12, 0)
	arch := model.NewDirectPred(trainerSpec(trainSet))
	tracker := &progress.Tracker{}
	trainer := New(WithEpochs(5), WithBatchSize(12), WithSeed(1), WithTracker(tracker))
	_, err := trainer.Fit(context.Background(), arch, trainSet, nil)
	assert.Nil(t, err)
	snapshot := tracker.Snapshot()
	assert.Equal(t, 5, snapshot.Epochs)
	assert.Equal(t, 5, snapshot.EpochsCompleted)
}

func TestFit_ContextCancelled(t *testing.T) {
	trainSet := trainerDataset(12, 0)
	arch := model.NewDirectPred(trainerSpec(trainSet))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trainer := New(WithEpochs(10), WithSeed(1))
	_, err := trainer.Fit(ctx, arch, trainSet, nil)
	assert.Equal(t, context.Canceled, err)
}

func TestFit_EmptyTrainSet(t *testing.T) {
	trainSet := &omics.Dataset{Layers: map[string]*mat.Dense{}, Samples: nil}
	arch := model.NewDirectPred(trainerSpec(trainerDataset(8, 0)))
	_, err := New(WithSeed(1)).Fit(context.Background(), arch, trainSet, nil)
	assert.NotNil(t, err)
}

func TestFit_MultiTripletNetwork(t *testing.T) {
	trainSet := trainerDataset(16, 0)
	arch, err := model.NewMultiTripletNetwork(trainerSpec(trainSet))
	assert.Nil(t, err)
	trainer := New(WithEpochs(20), WithBatchSize(8), WithLearningRate(0.01), WithSeed(1))
	result, err := trainer.Fit(context.Background(), arch, trainSet, trainerDataset(8, 0.05))
	assert.Nil(t, err)
	assert.Equal(t, result.Epochs, len(result.ValLoss))
}
