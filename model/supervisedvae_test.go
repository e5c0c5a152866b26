package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupervisedVAETrainingReducesLoss(t *testing.T) {
	arch := NewSupervisedVAE(modelTestSpec(FusionEarly))
	assert.Equal(t, SupervisedVAEName, arch.Name())
	first, last := fitFullBatch(t, arch, 100, 0.01)
	assert.True(t, last < first, "loss %v did not improve on %v", last, first)
}

func TestSupervisedVAELossComponents(t *testing.T) {
	ds := modelTestDataset()
	arch := NewSupervisedVAE(modelTestSpec(FusionEarly))
	batch := NewBatch(ds, allIndices(ds.NumSamples()))
	total, losses := arch.Loss(batch)
	assert.Contains(t, losses, ReconLossKey)
	assert.Contains(t, losses, KLLossKey)
	assert.Contains(t, losses, "Subtype")
	assert.Contains(t, losses, "Age")
	assert.True(t, total > 0)
	assert.True(t, losses[KLLossKey] >= 0)
}

func TestSupervisedVAEEmbed(t *testing.T) {
	ds := modelTestDataset()
	arch := NewSupervisedVAE(modelTestSpec(FusionEarly))
	rows, cols := arch.Embed(ds).Dims()
	assert.Equal(t, 8, rows)
	assert.Equal(t, 4, cols, "embedding is the latent mean")

	preds := arch.Predict(ds)
	r, c := preds["Subtype"].Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 2, c)
}
