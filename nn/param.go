// Package nn implements the feed-forward building blocks shared by the model
// architectures: dense layers, activations, batch normalization, dropout and
// the loss functions. Gradients are computed explicitly layer by layer; every
// block caches what its backward pass needs during forward.
package nn

import "gonum.org/v1/gonum/mat"

// Param is a trainable tensor with its accumulated gradient. Both matrices
// always share dimensions.
type Param struct {
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam allocates a zero-initialized parameter of the given shape.
func NewParam(rows, cols int) *Param {
	return &Param{
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// ZeroGrads clears gradients of all given parameters.
func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Clone returns a deep copy of the parameter values (gradients excluded);
// used by early stopping to snapshot the best epoch.
func Clone(params []*Param) []*mat.Dense {
	out := make([]*mat.Dense, len(params))
	for i, p := range params {
		out[i] = mat.DenseCopyOf(p.Value)
	}
	return out
}

// Restore copies a snapshot taken by Clone back into the parameters.
func Restore(params []*Param, snapshot []*mat.Dense) {
	for i, p := range params {
		p.Value.Copy(snapshot[i])
	}
}
