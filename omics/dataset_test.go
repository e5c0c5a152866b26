package omics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func newTestDataset() *Dataset {
	return &Dataset{
		Layers: map[string]*mat.Dense{
			"gex": mat.NewDense(4, 3, []float64{
				1, 2, 3,
				4, 5, 6,
				7, 8, 9,
				10, 11, 12,
			}),
			"cnv": mat.NewDense(4, 2, []float64{
				0, 1,
				1, 0,
				0, 0,
				1, 1,
			}),
		},
		Features: map[string][]string{
			"gex": {"g1", "g2", "g3"},
			"cnv": {"c1", "c2"},
		},
		Samples: []string{"s1", "s2", "s3", "s4"},
		Targets: map[string]*Variable{
			"Subtype": {
				Name:   "Subtype",
				Kind:   Categorical,
				Values: []float64{0, 1, 0, 1},
				Levels: []string{"A", "B"},
			},
			"Age": {
				Name:   "Age",
				Kind:   Numerical,
				Values: []float64{50, 60, math.NaN(), 70},
			},
		},
	}
}

func TestDataset_Subset(t *testing.T) {
	ds := newTestDataset()
	sub := ds.Subset([]int{3, 0})

	assert.EqualValues(t, []string{"s4", "s1"}, sub.Samples)
	assert.Equal(t, 10.0, sub.Layers["gex"].At(0, 0))
	assert.Equal(t, 1.0, sub.Layers["gex"].At(1, 0))
	assert.EqualValues(t, []float64{1, 0}, sub.Targets["Subtype"].Values)
	assert.EqualValues(t, []string{"A", "B"}, sub.Targets["Subtype"].Levels)

	// Subsets are copies; mutating one must not leak into the other.
	sub.Layers["gex"].Set(0, 0, -1)
	assert.Equal(t, 10.0, ds.Layers["gex"].At(3, 0))
}

func TestDataset_SelectFeatures(t *testing.T) {
	ds := newTestDataset()
	err := ds.SelectFeatures("gex", []string{"g3", "g1"})
	assert.Nil(t, err)
	assert.EqualValues(t, []string{"g3", "g1"}, ds.Features["gex"])
	assert.Equal(t, 2, ds.Dim("gex"))
	assert.Equal(t, 3.0, ds.Layers["gex"].At(0, 0))
	assert.Equal(t, 1.0, ds.Layers["gex"].At(0, 1))

	err = ds.SelectFeatures("gex", []string{"g2"})
	assert.NotNil(t, err, "g2 was dropped by the previous selection")

	err = ds.SelectFeatures("mut", []string{"m1"})
	assert.NotNil(t, err)
}

func TestDataset_Concat(t *testing.T) {
	ds := newTestDataset()
	x := ds.Concat()
	rows, cols := x.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 5, cols)
	// LayerNames order is alphabetical: cnv then gex.
	assert.Equal(t, 0.0, x.At(0, 0))
	assert.Equal(t, 1.0, x.At(0, 2))
	assert.Equal(t, 12.0, x.At(3, 4))
}

func TestDataset_Split(t *testing.T) {
	ds := newTestDataset()
	train, val := ds.Split([]int{2, 0, 1, 3}, 0.25)
	assert.EqualValues(t, []string{"s1", "s2", "s4"}, train.Samples)
	assert.EqualValues(t, []string{"s3"}, val.Samples)

	// A tiny fraction still yields one validation sample.
	train, val = ds.Split([]int{0, 1, 2, 3}, 0.05)
	assert.Equal(t, 3, train.NumSamples())
	assert.Equal(t, 1, val.NumSamples())
}

func TestVariable_Class(t *testing.T) {
	v := &Variable{Kind: Categorical, Values: []float64{1, math.NaN()}, Levels: []string{"A", "B"}}
	assert.Equal(t, 1, v.Class(0))
	assert.Equal(t, -1, v.Class(1))
	assert.Equal(t, 2, v.NumClasses())
}
