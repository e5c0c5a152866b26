package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	pred := mat.NewDense(3, 1, []float64{1, 2, 3})
	loss, grad := MSE(pred, []float64{1, 4, math.NaN()})
	// Only two observed targets; (0 + 4) / 2.
	assert.InDelta(t, 2.0, loss, 1e-12)
	assert.InDelta(t, 0.0, grad.At(0, 0), 1e-12)
	assert.InDelta(t, -2.0, grad.At(1, 0), 1e-12)
	assert.Equal(t, 0.0, grad.At(2, 0), "masked rows get no gradient")
}

func TestMSE_AllMissing(t *testing.T) {
	pred := mat.NewDense(1, 1, []float64{5})
	loss, grad := MSE(pred, []float64{math.NaN()})
	assert.Equal(t, 0.0, loss)
	assert.Equal(t, 0.0, grad.At(0, 0))
}

func TestSoftmax(t *testing.T) {
	probs := Softmax(mat.NewDense(2, 3, []float64{
		1000, 1000, 1000,
		0, math.Log(2), 0,
	}))
	for j := 0; j < 3; j++ {
		assert.InDelta(t, 1.0/3, probs.At(0, j), 1e-9, "large logits must not overflow")
	}
	assert.InDelta(t, 0.5, probs.At(1, 1), 1e-9)
	assert.InDelta(t, 0.25, probs.At(1, 0), 1e-9)
}

func TestCrossEntropy(t *testing.T) {
	logits := mat.NewDense(2, 3, nil)
	loss, grad := CrossEntropy(logits, []int{1, -1})
	// Uniform probabilities, one observed row: ln(3).
	assert.InDelta(t, math.Log(3), loss, 1e-9)
	assert.InDelta(t, 1.0/3-1, grad.At(0, 1), 1e-9)
	assert.InDelta(t, 1.0/3, grad.At(0, 0), 1e-9)
	for j := 0; j < 3; j++ {
		assert.Equal(t, 0.0, grad.At(1, j), "missing rows get no gradient")
	}
}

func TestCrossEntropy_NumericalGradient(t *testing.T) {
	logits := mat.NewDense(2, 3, []float64{0.3, -0.2, 0.9, -1.1, 0.4, 0.05})
	classes := []int{2, 0}
	_, grad := CrossEntropy(logits, classes)

	const eps = 1e-6
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			orig := logits.At(i, j)
			logits.Set(i, j, orig+eps)
			plus, _ := CrossEntropy(logits, classes)
			logits.Set(i, j, orig-eps)
			minus, _ := CrossEntropy(logits, classes)
			logits.Set(i, j, orig)
			assert.InDelta(t, (plus-minus)/(2*eps), grad.At(i, j), 1e-5)
		}
	}
}

func TestKL(t *testing.T) {
	mean := mat.NewDense(2, 2, nil)
	logVar := mat.NewDense(2, 2, nil)
	loss, dMean, dLogVar := KL(mean, logVar)
	// The unit Gaussian has zero divergence from itself.
	assert.InDelta(t, 0.0, loss, 1e-12)
	assert.InDelta(t, 0.0, dMean.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, dLogVar.At(0, 0), 1e-12)

	mean = mat.NewDense(1, 1, []float64{1})
	logVar = mat.NewDense(1, 1, []float64{0})
	loss, dMean, _ = KL(mean, logVar)
	assert.InDelta(t, 0.5, loss, 1e-12)
	assert.InDelta(t, 1.0, dMean.At(0, 0), 1e-12)
}

func TestTripletMargin(t *testing.T) {
	anchor := mat.NewDense(2, 2, []float64{0, 0, 0, 0})
	positive := mat.NewDense(2, 2, []float64{0, 0, 0, 0})
	negative := mat.NewDense(2, 2, []float64{3, 0, 0.1, 0})

	loss, dA, dP, dN := TripletMargin(anchor, positive, negative, 1)
	// Row 0 is already separated beyond the margin (d_an=9), row 1 is not
	// (d_an=0.01): loss = (0 - 0.01 + 1) / 2.
	assert.InDelta(t, 0.99/2, loss, 1e-9)
	for j := 0; j < 2; j++ {
		assert.Equal(t, 0.0, dA.At(0, j), "satisfied rows get no gradient")
		assert.Equal(t, 0.0, dP.At(0, j))
		assert.Equal(t, 0.0, dN.At(0, j))
	}
	assert.NotEqual(t, 0.0, dA.At(1, 0))
	assert.NotEqual(t, 0.0, dN.At(1, 0))
	assert.Equal(t, 0.0, dP.At(1, 0), "anchor equals positive, so that side is flat")
}

func TestBCE(t *testing.T) {
	pred := mat.NewDense(1, 2, []float64{0.5, 0.5})
	target := mat.NewDense(1, 2, []float64{1, 0})
	loss, grad := BCE(pred, target)
	assert.InDelta(t, math.Log(2), loss, 1e-9)
	assert.InDelta(t, -1.0, grad.At(0, 0), 1e-9)
	assert.InDelta(t, 1.0, grad.At(0, 1), 1e-9)
}
