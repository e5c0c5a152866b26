package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omixlab/fuseomics/nn"
	"github.com/omixlab/fuseomics/omics"
	"github.com/omixlab/fuseomics/optimizer"
)

func TestNewMultiTripletNetwork_RequiresCategorical(t *testing.T) {
	spec := modelTestSpec(FusionIntermediate)
	var targets []TargetSpec
	for _, target := range spec.Targets {
		if target.Task != Classification {
			targets = append(targets, target)
		}
	}
	spec.Targets = targets
	_, err := NewMultiTripletNetwork(spec)
	assert.NotNil(t, err)
}

func TestMultiTripletNetworkPrimary(t *testing.T) {
	arch, err := NewMultiTripletNetwork(modelTestSpec(FusionIntermediate))
	assert.Nil(t, err)
	assert.Equal(t, MultiTripletName, arch.Name())
	assert.Equal(t, "Subtype", arch.Primary().Name)
}

func TestNewTripletBatch(t *testing.T) {
	ds := modelTestDataset()
	triplets := []omics.Triplet{
		{Anchor: 0, Positive: 1, Negative: 4},
		{Anchor: 5, Positive: 6, Negative: 2},
	}
	tb := NewTripletBatch(ds, "Subtype", triplets)
	assert.Equal(t, 2, tb.B)
	assert.EqualValues(t, []int{0, 1}, tb.Classes)
	rows, cols := tb.X["gex"].Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 3, cols)
	// Row layout is anchors, then positives, then negatives.
	assert.Equal(t, 1.2, tb.X["gex"].At(0, 0))
	assert.Equal(t, 0.9, tb.X["gex"].At(2, 0))
	assert.Equal(t, -1.1, tb.X["gex"].At(4, 0))
}

func TestMultiTripletNetworkTrainingReducesLoss(t *testing.T) {
	ds := modelTestDataset()
	arch, err := NewMultiTripletNetwork(modelTestSpec(FusionIntermediate))
	assert.Nil(t, err)

	sampler, err := omics.NewTripletSampler(ds.Targets["Subtype"], 7)
	assert.Nil(t, err)
	tb := NewTripletBatch(ds, "Subtype", sampler.Fixed(ds.Targets["Subtype"]))

	opt := optimizer.NewAdam(arch.Params(), 0.01)
	first, last := 0.0, 0.0
	for i := 0; i < 80; i++ {
		nn.ZeroGrads(arch.Params())
		loss, components := arch.TrainTriplets(tb)
		opt.Step()
		if i == 0 {
			first = loss
			assert.Contains(t, components, TripletLossKey)
			assert.Contains(t, components, "Subtype")
		}
		last = loss
	}
	assert.True(t, last < first, "loss %v did not improve on %v", last, first)

	preds := arch.Predict(ds)
	assert.Equal(t, 1, len(preds), "only the primary target is predicted")
	rows, cols := preds["Subtype"].Dims()
	assert.Equal(t, 8, rows)
	assert.Equal(t, 2, cols)
}
