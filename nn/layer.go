package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer is a differentiable block. Forward consumes a batch (rows = samples)
// and caches whatever Backward needs; Backward consumes the gradient w.r.t.
// the layer output and returns the gradient w.r.t. the layer input,
// accumulating parameter gradients along the way.
type Layer interface {
	Forward(x *mat.Dense, train bool) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*Param
}

// Linear is a fully connected layer y = xW + b with Xavier-uniform init.
type Linear struct {
	W *Param // in x out
	B *Param // 1 x out
	x *mat.Dense
}

// NewLinear creates a Linear layer with Xavier-uniform weights.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	l := &Linear{W: NewParam(in, out), B: NewParam(1, out)}
	limit := math.Sqrt(6 / float64(in+out))
	for i := 0; i < in; i++ {
		for j := 0; j < out; j++ {
			l.W.Value.Set(i, j, (rng.Float64()*2-1)*limit)
		}
	}
	return l
}

func (l *Linear) Forward(x *mat.Dense, _ bool) *mat.Dense {
	l.x = x
	rows, _ := x.Dims()
	_, out := l.W.Value.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, l.W.Value)
	for i := 0; i < rows; i++ {
		for j := 0; j < out; j++ {
			y.Set(i, j, y.At(i, j)+l.B.Value.At(0, j))
		}
	}
	return y
}

func (l *Linear) Backward(grad *mat.Dense) *mat.Dense {
	var dW mat.Dense
	dW.Mul(l.x.T(), grad)
	l.W.Grad.Add(l.W.Grad, &dW)

	rows, out := grad.Dims()
	for j := 0; j < out; j++ {
		sum := l.B.Grad.At(0, j)
		for i := 0; i < rows; i++ {
			sum += grad.At(i, j)
		}
		l.B.Grad.Set(0, j, sum)
	}

	in, _ := l.W.Value.Dims()
	dx := mat.NewDense(rows, in, nil)
	dx.Mul(grad, l.W.Value.T())
	return dx
}

func (l *Linear) Params() []*Param { return []*Param{l.W, l.B} }

// ReLU is max(0, x).
type ReLU struct {
	mask *mat.Dense
}

func NewReLU() *ReLU { return &ReLU{} }

func (r *ReLU) Forward(x *mat.Dense, _ bool) *mat.Dense {
	rows, cols := x.Dims()
	r.mask = mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := x.At(i, j); v > 0 {
				y.Set(i, j, v)
				r.mask.Set(i, j, 1)
			}
		}
	}
	return y
}

func (r *ReLU) Backward(grad *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.MulElem(grad, r.mask)
	return &dx
}

func (r *ReLU) Params() []*Param { return nil }

// LeakyReLU keeps a small slope on the negative side.
type LeakyReLU struct {
	Slope float64
	mask  *mat.Dense
}

func NewLeakyReLU(slope float64) *LeakyReLU { return &LeakyReLU{Slope: slope} }

func (r *LeakyReLU) Forward(x *mat.Dense, _ bool) *mat.Dense {
	rows, cols := x.Dims()
	r.mask = mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := x.At(i, j)
			if v > 0 {
				y.Set(i, j, v)
				r.mask.Set(i, j, 1)
			} else {
				y.Set(i, j, v*r.Slope)
				r.mask.Set(i, j, r.Slope)
			}
		}
	}
	return y
}

func (r *LeakyReLU) Backward(grad *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.MulElem(grad, r.mask)
	return &dx
}

func (r *LeakyReLU) Params() []*Param { return nil }

// Sigmoid squashes values into (0, 1).
type Sigmoid struct {
	out *mat.Dense
}

func NewSigmoid() *Sigmoid { return &Sigmoid{} }

func (s *Sigmoid) Forward(x *mat.Dense, _ bool) *mat.Dense {
	rows, cols := x.Dims()
	s.out = mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			s.out.Set(i, j, 1/(1+math.Exp(-x.At(i, j))))
		}
	}
	return s.out
}

func (s *Sigmoid) Backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	dx := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := s.out.At(i, j)
			dx.Set(i, j, grad.At(i, j)*v*(1-v))
		}
	}
	return dx
}

func (s *Sigmoid) Params() []*Param { return nil }

// Dropout zeroes activations with probability P during training, scaling the
// survivors by 1/(1-P) so evaluation needs no rescaling.
type Dropout struct {
	P    float64
	rng  *rand.Rand
	mask *mat.Dense
}

func NewDropout(p float64, rng *rand.Rand) *Dropout { return &Dropout{P: p, rng: rng} }

func (d *Dropout) Forward(x *mat.Dense, train bool) *mat.Dense {
	if !train || d.P <= 0 {
		d.mask = nil
		return x
	}
	rows, cols := x.Dims()
	d.mask = mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, cols, nil)
	scale := 1 / (1 - d.P)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if d.rng.Float64() >= d.P {
				d.mask.Set(i, j, scale)
				y.Set(i, j, x.At(i, j)*scale)
			}
		}
	}
	return y
}

func (d *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	var dx mat.Dense
	dx.MulElem(grad, d.mask)
	return &dx
}

func (d *Dropout) Params() []*Param { return nil }

// BatchNorm normalizes each feature over the batch, with learnable scale and
// shift and running statistics for evaluation.
type BatchNorm struct {
	Gamma, Beta *Param
	Momentum    float64
	Eps         float64

	runningMean []float64
	runningVar  []float64

	xhat   *mat.Dense
	invStd []float64
}

// NewBatchNorm creates a BatchNorm over dim features (momentum 0.1, eps 1e-5).
func NewBatchNorm(dim int) *BatchNorm {
	bn := &BatchNorm{
		Gamma:       NewParam(1, dim),
		Beta:        NewParam(1, dim),
		Momentum:    0.1,
		Eps:         1e-5,
		runningMean: make([]float64, dim),
		runningVar:  make([]float64, dim),
	}
	for j := 0; j < dim; j++ {
		bn.Gamma.Value.Set(0, j, 1)
		bn.runningVar[j] = 1
	}
	return bn
}

func (b *BatchNorm) Forward(x *mat.Dense, train bool) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	if !train {
		for j := 0; j < cols; j++ {
			inv := 1 / math.Sqrt(b.runningVar[j]+b.Eps)
			gamma, beta := b.Gamma.Value.At(0, j), b.Beta.Value.At(0, j)
			for i := 0; i < rows; i++ {
				y.Set(i, j, gamma*(x.At(i, j)-b.runningMean[j])*inv+beta)
			}
		}
		return y
	}
	b.xhat = mat.NewDense(rows, cols, nil)
	b.invStd = make([]float64, cols)
	m := float64(rows)
	for j := 0; j < cols; j++ {
		mean := 0.0
		for i := 0; i < rows; i++ {
			mean += x.At(i, j)
		}
		mean /= m
		variance := 0.0
		for i := 0; i < rows; i++ {
			d := x.At(i, j) - mean
			variance += d * d
		}
		variance /= m
		inv := 1 / math.Sqrt(variance+b.Eps)
		b.invStd[j] = inv
		gamma, beta := b.Gamma.Value.At(0, j), b.Beta.Value.At(0, j)
		for i := 0; i < rows; i++ {
			xh := (x.At(i, j) - mean) * inv
			b.xhat.Set(i, j, xh)
			y.Set(i, j, gamma*xh+beta)
		}
		b.runningMean[j] = (1-b.Momentum)*b.runningMean[j] + b.Momentum*mean
		b.runningVar[j] = (1-b.Momentum)*b.runningVar[j] + b.Momentum*variance
	}
	return y
}

func (b *BatchNorm) Backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	m := float64(rows)
	dx := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		gamma := b.Gamma.Value.At(0, j)
		var sumDy, sumDyXhat float64
		for i := 0; i < rows; i++ {
			dy := grad.At(i, j)
			sumDy += dy
			sumDyXhat += dy * b.xhat.At(i, j)
		}
		b.Gamma.Grad.Set(0, j, b.Gamma.Grad.At(0, j)+sumDyXhat)
		b.Beta.Grad.Set(0, j, b.Beta.Grad.At(0, j)+sumDy)
		coeff := gamma * b.invStd[j] / m
		for i := 0; i < rows; i++ {
			dy := grad.At(i, j)
			dx.Set(i, j, coeff*(m*dy-sumDy-b.xhat.At(i, j)*sumDyXhat))
		}
	}
	return dx
}

func (b *BatchNorm) Params() []*Param { return []*Param{b.Gamma, b.Beta} }

// Sequential chains layers; Backward walks them in reverse.
type Sequential struct {
	layers []Layer
}

func NewSequential(layers ...Layer) *Sequential { return &Sequential{layers: layers} }

// Append adds layers to the end of the chain.
func (s *Sequential) Append(layers ...Layer) { s.layers = append(s.layers, layers...) }

func (s *Sequential) Forward(x *mat.Dense, train bool) *mat.Dense {
	for _, layer := range s.layers {
		x = layer.Forward(x, train)
	}
	return x
}

func (s *Sequential) Backward(grad *mat.Dense) *mat.Dense {
	for i := len(s.layers) - 1; i >= 0; i-- {
		grad = s.layers[i].Backward(grad)
	}
	return grad
}

func (s *Sequential) Params() []*Param {
	var out []*Param
	for _, layer := range s.layers {
		out = append(out, layer.Params()...)
	}
	return out
}
