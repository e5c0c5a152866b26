package feature

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// clusteredMatrix builds two tight sample clusters. Feature 0 separates the
// clusters (structure-preserving), feature 1 is pure noise and feature 2 is
// constant.
func clusteredMatrix(n int) *mat.Dense {
	rng := rand.New(rand.NewSource(3))
	x := mat.NewDense(2*n, 3, nil)
	for i := 0; i < 2*n; i++ {
		center := 0.0
		if i >= n {
			center = 10.0
		}
		x.Set(i, 0, center+rng.NormFloat64()*0.1)
		x.Set(i, 1, rng.NormFloat64()*5)
		x.Set(i, 2, 1.0)
	}
	return x
}

func TestLaplacianScores(t *testing.T) {
	x := clusteredMatrix(10)
	scores, err := LaplacianScores(x, 3)
	assert.Nil(t, err)
	assert.Len(t, scores, 3)
	assert.Less(t, scores[0], scores[1],
		"the cluster-separating feature should respect local structure better than noise")
	assert.True(t, math.IsInf(scores[2], 1), "constant features are unrankable")
}

func TestLaplacianScores_TooFewSamples(t *testing.T) {
	_, err := LaplacianScores(mat.NewDense(1, 2, []float64{1, 2}), 3)
	assert.NotNil(t, err)
}

func TestSelectByLaplacian(t *testing.T) {
	x := clusteredMatrix(10)
	kept, err := SelectByLaplacian(x, 2, 3)
	assert.Nil(t, err)
	assert.Len(t, kept, 2)
	// Indices come back in original column order.
	assert.True(t, kept[0] < kept[1])
	assert.NotContains(t, kept, 2, "the constant feature scores +Inf and is dropped first")
}

func TestSelectorConfig_KeepCount(t *testing.T) {
	tests := []struct {
		name   string
		config SelectorConfig
		total  int
		expect int
	}{
		{name: "percentile", config: SelectorConfig{MinFeatures: 2, TopPercentile: 10}, total: 100, expect: 10},
		{name: "floor wins", config: SelectorConfig{MinFeatures: 50, TopPercentile: 10}, total: 100, expect: 50},
		{name: "capped at total", config: SelectorConfig{MinFeatures: 500, TopPercentile: 20}, total: 100, expect: 100},
		{name: "rounding", config: SelectorConfig{MinFeatures: 1, TopPercentile: 25}, total: 10, expect: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.config.KeepCount(tc.total))
		})
	}
}
