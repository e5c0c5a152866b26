// Package optimizer implements gradient-based parameter update rules used by
// the training loop: Adam with bias correction, plain SGD and a cosine
// annealing learning rate schedule.
package optimizer

import (
	"math"

	"github.com/omixlab/fuseomics/nn"
	"gonum.org/v1/gonum/mat"
)

// Optimizer applies one update step to the parameters it was built for,
// consuming their accumulated gradients.
type Optimizer interface {
	Step()
	SetLR(lr float64)
}

// Adam implements the Adam optimizer with bias correction.
//
// Update rule:
//
//	m[i] = β1·m[i] + (1-β1)·g[i]
//	v[i] = β2·v[i] + (1-β2)·g[i]²
//	m̂[i] = m[i] / (1 - β1^t)
//	v̂[i] = v[i] / (1 - β2^t)
//	w[i] = w[i] - lr · m̂[i] / (√v̂[i] + ε)
type Adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	params       []*nn.Param
	m, v         []*mat.Dense
	step         int
}

// NewAdam creates an Adam optimizer over the given parameters with standard
// defaults: β1=0.9, β2=0.999, ε=1e-8.
func NewAdam(params []*nn.Param, lr float64) *Adam {
	a := &Adam{
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
		params: params,
		m:      make([]*mat.Dense, len(params)),
		v:      make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		rows, cols := p.Value.Dims()
		a.m[i] = mat.NewDense(rows, cols, nil)
		a.v[i] = mat.NewDense(rows, cols, nil)
	}
	return a
}

// Step applies one Adam update and clears nothing; the caller zeroes the
// gradients once all losses of the step have been accumulated.
func (a *Adam) Step() {
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, p := range a.params {
		rows, cols := p.Value.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				g := p.Grad.At(r, c)
				m := a.beta1*a.m[i].At(r, c) + (1-a.beta1)*g
				v := a.beta2*a.v[i].At(r, c) + (1-a.beta2)*g*g
				a.m[i].Set(r, c, m)
				a.v[i].Set(r, c, v)
				mHat := m / c1
				vHat := v / c2
				p.Value.Set(r, c, p.Value.At(r, c)-a.lr*mHat/(math.Sqrt(vHat)+a.eps))
			}
		}
	}
}

// SetLR updates the learning rate (used by CosineAnnealing).
func (a *Adam) SetLR(lr float64) { a.lr = lr }

// SGD is plain stochastic gradient descent.
type SGD struct {
	lr     float64
	params []*nn.Param
}

// NewSGD creates an SGD optimizer with the given learning rate.
func NewSGD(params []*nn.Param, lr float64) *SGD {
	return &SGD{lr: lr, params: params}
}

func (o *SGD) Step() {
	for _, p := range o.params {
		rows, cols := p.Value.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				p.Value.Set(r, c, p.Value.At(r, c)-o.lr*p.Grad.At(r, c))
			}
		}
	}
}

func (o *SGD) SetLR(lr float64) { o.lr = lr }

// CosineAnnealing implements the cosine annealing learning rate schedule.
//
//	lr_t = 0.5 * lr_max * (1 + cos(π * t / T_max))
type CosineAnnealing struct {
	lrMax float64
	tMax  int
	t     int
}

// NewCosineAnnealing creates a cosine annealing scheduler over tMax steps.
func NewCosineAnnealing(lrMax float64, tMax int) *CosineAnnealing {
	return &CosineAnnealing{lrMax: lrMax, tMax: tMax}
}

// LR returns the current learning rate.
func (ca *CosineAnnealing) LR() float64 {
	return 0.5 * ca.lrMax * (1 + math.Cos(math.Pi*float64(ca.t)/float64(ca.tMax)))
}

// Advance moves the schedule one step forward.
func (ca *CosineAnnealing) Advance() {
	if ca.t < ca.tMax {
		ca.t++
	}
}
