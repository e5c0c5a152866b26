package omics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTripletSampler(t *testing.T) {
	v := &Variable{
		Name:   "Subtype",
		Kind:   Categorical,
		Values: []float64{0, 0, 1, 1, math.NaN()},
		Levels: []string{"A", "B"},
	}
	sampler, err := NewTripletSampler(v, 1)
	assert.Nil(t, err)
	assert.EqualValues(t, []int{0, 1, 2, 3}, sampler.Observed())

	for i := 0; i < 50; i++ {
		triplet := sampler.Sample(0, 0)
		assert.Equal(t, 0, triplet.Anchor)
		assert.Equal(t, 1, triplet.Positive, "only one other member of class A")
		assert.Contains(t, []int{2, 3}, triplet.Negative)
	}

	batch := sampler.Batch(v, []int{0, 2, 4})
	assert.Len(t, batch, 2, "missing-class anchors are skipped")
}

func TestNewTripletSampler_Errors(t *testing.T) {
	_, err := NewTripletSampler(&Variable{Name: "Age", Kind: Numerical}, 1)
	assert.NotNil(t, err)

	_, err = NewTripletSampler(&Variable{
		Name:   "Subtype",
		Kind:   Categorical,
		Values: []float64{0, 0, 0},
		Levels: []string{"A"},
	}, 1)
	assert.NotNil(t, err, "needs at least two observed classes")

	_, err = NewTripletSampler(&Variable{
		Name:   "Subtype",
		Kind:   Categorical,
		Values: []float64{0, 0, 1},
		Levels: []string{"A", "B"},
	}, 1)
	assert.NotNil(t, err, "singleton classes cannot form triplets")
}

func TestTripletSampler_Fixed(t *testing.T) {
	v := &Variable{
		Name:   "Subtype",
		Kind:   Categorical,
		Values: []float64{0, 0, 1, 1},
		Levels: []string{"A", "B"},
	}
	sampler, err := NewTripletSampler(v, 7)
	assert.Nil(t, err)

	first := sampler.Fixed(v)
	second := sampler.Fixed(v)
	assert.EqualValues(t, first, second, "fixed triplets are deterministic")
	assert.Len(t, first, 4)
	for _, triplet := range first {
		assert.NotEqual(t, triplet.Anchor, triplet.Positive)
		assert.Equal(t, v.Class(triplet.Anchor), v.Class(triplet.Positive))
		assert.NotEqual(t, v.Class(triplet.Anchor), v.Class(triplet.Negative))
	}
}
