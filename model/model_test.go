package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/omixlab/fuseomics/omics"
)

// modelTestDataset builds a small learnable dataset: Subtype follows the sign
// of the first gex feature and Age is a noiseless linear readout.
func modelTestDataset() *omics.Dataset {
	gex := mat.NewDense(8, 3, []float64{
		1.2, 0.1, -0.3,
		0.9, -0.2, 0.4,
		1.5, 0.3, 0.1,
		0.8, 0.0, -0.1,
		-1.1, 0.2, 0.2,
		-0.9, -0.1, -0.4,
		-1.4, 0.4, 0.0,
		-0.7, -0.3, 0.3,
	})
	cnv := mat.NewDense(8, 2, []float64{
		0.5, -0.5,
		0.4, -0.3,
		0.6, -0.6,
		0.3, -0.2,
		-0.5, 0.5,
		-0.4, 0.4,
		-0.6, 0.3,
		-0.3, 0.6,
	})
	age := make([]float64, 8)
	for i := 0; i < 8; i++ {
		age[i] = 2*gex.At(i, 0) + cnv.At(i, 1)
	}
	return &omics.Dataset{
		Layers:   map[string]*mat.Dense{"gex": gex, "cnv": cnv},
		Features: map[string][]string{"gex": {"g1", "g2", "g3"}, "cnv": {"c1", "c2"}},
		Samples:  []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"},
		Targets: map[string]*omics.Variable{
			"Subtype": {
				Name:   "Subtype",
				Kind:   omics.Categorical,
				Values: []float64{0, 0, 0, 0, 1, 1, 1, 1},
				Levels: []string{"A", "B"},
			},
			"Age": {Name: "Age", Kind: omics.Numerical, Values: age},
		},
	}
}

func modelTestSpec(fusion FusionKind) *Spec {
	return SpecFor(modelTestDataset(), 8, 4, 0, fusion, false, 1)
}

func TestSpecFor(t *testing.T) {
	spec := modelTestSpec(FusionIntermediate)
	assert.Equal(t, 2, len(spec.Layers))
	assert.Equal(t, "cnv", spec.Layers[0].Name)
	assert.Equal(t, 2, spec.Layers[0].Dim)
	assert.Equal(t, "gex", spec.Layers[1].Name)
	assert.Equal(t, 3, spec.Layers[1].Dim)
	assert.Equal(t, 5, spec.InputDim())

	assert.Equal(t, 2, len(spec.Targets))
	assert.Equal(t, "Age", spec.Targets[0].Name)
	assert.Equal(t, Regression, spec.Targets[0].Task)
	assert.Equal(t, "Subtype", spec.Targets[1].Name)
	assert.Equal(t, Classification, spec.Targets[1].Task)
	assert.Equal(t, 2, spec.Targets[1].NumClasses)

	assert.Equal(t, 8, spec.FusedDim(), "intermediate fusion concatenates per-layer latents")
	spec.Fusion = FusionEarly
	assert.Equal(t, 4, spec.FusedDim())

	_, err := spec.Target("Grade")
	assert.NotNil(t, err)
}

func TestNewBatch(t *testing.T) {
	ds := modelTestDataset()
	ds.Targets["Age"].Values[1] = math.NaN()
	ds.Targets["Subtype"].Values[2] = math.NaN()

	b := NewBatch(ds, []int{1, 2, 5})
	assert.Equal(t, 3, b.Size)
	rows, cols := b.X["gex"].Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 0.9, b.X["gex"].At(0, 0))
	assert.Equal(t, -0.9, b.X["gex"].At(2, 0))

	assert.EqualValues(t, []int{0, -1, 1}, b.Classes["Subtype"])
	assert.True(t, math.IsNaN(b.Numeric["Age"][0]))
	assert.InDelta(t, -1.4, b.Numeric["Age"][2], 1e-12)
}
