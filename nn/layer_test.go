package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// numericalGrad perturbs every parameter entry and compares the analytic
// gradient against central differences of an MSE objective.
func checkLayerGradients(t *testing.T, layer Layer, x *mat.Dense, target []float64) {
	t.Helper()

	objective := func() float64 {
		out := layer.Forward(x, true)
		loss, _ := MSE(out, target)
		return loss
	}

	out := layer.Forward(x, true)
	_, dOut := MSE(out, target)
	ZeroGrads(layer.Params())
	layer.Backward(dOut)

	const eps = 1e-6
	for pi, p := range layer.Params() {
		rows, cols := p.Value.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				orig := p.Value.At(i, j)
				p.Value.Set(i, j, orig+eps)
				plus := objective()
				p.Value.Set(i, j, orig-eps)
				minus := objective()
				p.Value.Set(i, j, orig)
				numeric := (plus - minus) / (2 * eps)
				assert.InDelta(t, numeric, p.Grad.At(i, j), 1e-4,
					"param %d entry (%d,%d)", pi, i, j)
			}
		}
	}
}

func TestLinear_Gradients(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layer := NewLinear(3, 1, rng)
	x := mat.NewDense(4, 3, []float64{
		0.5, -1.2, 0.3,
		1.1, 0.4, -0.7,
		-0.3, 0.9, 0.2,
		0.8, -0.5, 1.4,
	})
	checkLayerGradients(t, layer, x, []float64{1, -1, 0.5, 2})
}

func TestLinear_InputGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	layer := NewLinear(2, 1, rng)
	x := mat.NewDense(2, 2, []float64{0.2, -0.4, 1.0, 0.6})
	target := []float64{1, 0}

	out := layer.Forward(x, true)
	_, dOut := MSE(out, target)
	dx := layer.Backward(dOut)

	const eps = 1e-6
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			orig := x.At(i, j)
			x.Set(i, j, orig+eps)
			plus, _ := MSE(layer.Forward(x, true), target)
			x.Set(i, j, orig-eps)
			minus, _ := MSE(layer.Forward(x, true), target)
			x.Set(i, j, orig)
			assert.InDelta(t, (plus-minus)/(2*eps), dx.At(i, j), 1e-4)
		}
	}
}

func TestReLU(t *testing.T) {
	layer := NewReLU()
	x := mat.NewDense(1, 3, []float64{-1, 0, 2})
	y := layer.Forward(x, true)
	assert.EqualValues(t, []float64{0, 0, 2}, y.RawRowView(0))

	dx := layer.Backward(mat.NewDense(1, 3, []float64{1, 1, 1}))
	assert.EqualValues(t, []float64{0, 0, 1}, dx.RawRowView(0))
}

func TestLeakyReLU(t *testing.T) {
	layer := NewLeakyReLU(0.2)
	x := mat.NewDense(1, 2, []float64{-5, 5})
	y := layer.Forward(x, true)
	assert.InDelta(t, -1.0, y.At(0, 0), 1e-12)
	assert.Equal(t, 5.0, y.At(0, 1))

	dx := layer.Backward(mat.NewDense(1, 2, []float64{1, 1}))
	assert.InDelta(t, 0.2, dx.At(0, 0), 1e-12)
	assert.Equal(t, 1.0, dx.At(0, 1))
}

func TestDropout(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	layer := NewDropout(0.5, rng)
	x := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		x.Set(i, 0, 1)
	}

	// Evaluation is the identity.
	y := layer.Forward(x, false)
	assert.Equal(t, x, y)

	y = layer.Forward(x, true)
	zeros, scaled := 0, 0
	for i := 0; i < 100; i++ {
		switch y.At(i, 0) {
		case 0:
			zeros++
		case 2:
			scaled++
		default:
			t.Fatalf("unexpected activation %v", y.At(i, 0))
		}
	}
	assert.Equal(t, 100, zeros+scaled)
	assert.Greater(t, zeros, 20)
	assert.Greater(t, scaled, 20)
}

func TestBatchNorm_TrainNormalizes(t *testing.T) {
	layer := NewBatchNorm(1)
	x := mat.NewDense(4, 1, []float64{2, 4, 6, 8})
	y := layer.Forward(x, true)

	mean, variance := 0.0, 0.0
	for i := 0; i < 4; i++ {
		mean += y.At(i, 0)
	}
	mean /= 4
	for i := 0; i < 4; i++ {
		d := y.At(i, 0) - mean
		variance += d * d
	}
	variance /= 4
	assert.InDelta(t, 0.0, mean, 1e-9)
	assert.InDelta(t, 1.0, variance, 1e-3)
}

func TestBatchNorm_Gradients(t *testing.T) {
	layer := NewBatchNorm(2)
	x := mat.NewDense(4, 2, []float64{
		1, -2,
		3, 0.5,
		-1, 1.5,
		2, -0.5,
	})
	// Break symmetry so beta/gamma gradients are informative.
	layer.Gamma.Value.Set(0, 0, 1.3)
	layer.Gamma.Value.Set(0, 1, 0.7)
	layer.Beta.Value.Set(0, 0, 0.2)
	checkLayerGradients(t, layer, x, []float64{1, 0, -1, 0.5})
}

func TestSequential_Order(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	seq := NewSequential(NewLinear(2, 3, rng), NewReLU(), NewLinear(3, 1, rng))
	assert.Len(t, seq.Params(), 4)

	x := mat.NewDense(3, 2, []float64{0.1, 0.7, -0.4, 0.2, 0.9, -0.8})
	checkLayerGradients(t, seq, x, []float64{0.5, -0.5, 1})
}

func TestParamSnapshots(t *testing.T) {
	p := NewParam(1, 2)
	p.Value.Set(0, 0, 3)
	snapshot := Clone([]*Param{p})
	p.Value.Set(0, 0, -7)
	Restore([]*Param{p}, snapshot)
	assert.Equal(t, 3.0, p.Value.At(0, 0))
}

func TestTaskWeighter(t *testing.T) {
	w := NewTaskWeighter([]string{"a"})
	// With s=0 the scale is 1 and the weighted loss equals the raw loss.
	assert.InDelta(t, 1.0, w.Scale("a", 2), 1e-12)
	assert.InDelta(t, 2.0, w.Weighted("a", 2), 1e-12)
	// ds = -exp(-s)*loss + 1 = -1 accumulated.
	assert.InDelta(t, -1.0, w.Params()[0].Grad.At(0, 0), 1e-12)
	assert.False(t, math.IsNaN(w.Weighted("a", 0)))
}
