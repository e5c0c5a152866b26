package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestSigmoid(t *testing.T) {
	s := NewSigmoid()
	out := s.Forward(mat.NewDense(1, 3, []float64{0, 100, -100}), true)
	assert.InDelta(t, 0.5, out.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, out.At(0, 1), 1e-12)
	assert.InDelta(t, 0.0, out.At(0, 2), 1e-12)

	// d sigma(0)/dx = 0.25.
	grad := s.Backward(mat.NewDense(1, 3, []float64{1, 1, 1}))
	assert.InDelta(t, 0.25, grad.At(0, 0), 1e-12)
	assert.Empty(t, s.Params())
}

func TestEncoder_Shapes(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	enc := NewEncoder(6, []int{4}, 2, rng)
	x := mat.NewDense(3, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 6; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}
	mean, logVar := enc.Forward(x, true)
	rows, cols := mean.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	rows, cols = logVar.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)

	dx := enc.Backward(mat.NewDense(3, 2, nil), mat.NewDense(3, 2, nil))
	rows, cols = dx.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 6, cols)
}

func TestDecoder(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	dec := NewDecoder(2, []int{4}, 5, rng)
	z := mat.NewDense(3, 2, []float64{
		0.2, -0.4,
		-1.1, 0.6,
		0.9, 0.1,
	})
	out := dec.Forward(z, true)
	rows, cols := out.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 5, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := out.At(i, j)
			assert.True(t, v > 0 && v < 1, "sigmoid output (%d,%d)=%v", i, j, v)
			assert.False(t, math.IsNaN(v))
		}
	}
	checkLayerGradients(t, dec, z, []float64{1, 0, 1})
}
