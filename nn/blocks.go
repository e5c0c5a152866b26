package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// NewMLP builds the standard supervisor head:
// linear -> batchnorm -> relu -> dropout -> linear. outDim 1 performs
// regression, larger outDim emits class logits.
func NewMLP(inDim, hiddenDim, outDim int, dropout float64, rng *rand.Rand) *Sequential {
	return NewSequential(
		NewLinear(inDim, hiddenDim, rng),
		NewBatchNorm(hiddenDim),
		NewReLU(),
		NewDropout(dropout, rng),
		NewLinear(hiddenDim, outDim, rng),
	)
}

// NewEmbeddingNetwork builds the plain two-layer embedding block:
// linear -> relu -> linear.
func NewEmbeddingNetwork(inDim, hiddenDim, outDim int, rng *rand.Rand) *Sequential {
	return NewSequential(
		NewLinear(inDim, hiddenDim, rng),
		NewReLU(),
		NewLinear(hiddenDim, outDim, rng),
	)
}

// NewConvBlock builds the per-feature convolutional encoder variant:
// linear -> batchnorm -> relu -> dropout -> linear. A kernel-size-1
// one-dimensional convolution over a single position collapses to exactly
// this dense block.
func NewConvBlock(inDim, hiddenDim, outDim int, dropout float64, rng *rand.Rand) *Sequential {
	return NewSequential(
		NewLinear(inDim, hiddenDim, rng),
		NewBatchNorm(hiddenDim),
		NewReLU(),
		NewDropout(dropout, rng),
		NewLinear(hiddenDim, outDim, rng),
	)
}

// Encoder maps inputs to the mean and log-variance of a latent Gaussian.
type Encoder struct {
	hidden   *Sequential
	meanHead *Linear
	varHead  *Linear
	h        *mat.Dense
}

// NewEncoder stacks linear -> leakyrelu(0.2) -> batchnorm per hidden dim and
// attaches mean and log-variance heads.
func NewEncoder(inDim int, hiddenDims []int, latentDim int, rng *rand.Rand) *Encoder {
	hidden := NewSequential()
	prev := inDim
	for _, dim := range hiddenDims {
		hidden.Append(NewLinear(prev, dim, rng), NewLeakyReLU(0.2), NewBatchNorm(dim))
		prev = dim
	}
	return &Encoder{
		hidden:   hidden,
		meanHead: NewLinear(prev, latentDim, rng),
		varHead:  NewLinear(prev, latentDim, rng),
	}
}

// Forward returns the latent mean and log-variance.
func (e *Encoder) Forward(x *mat.Dense, train bool) (mean, logVar *mat.Dense) {
	e.h = e.hidden.Forward(x, train)
	return e.meanHead.Forward(e.h, train), e.varHead.Forward(e.h, train)
}

// Backward propagates gradients from both heads back through the shared
// hidden stack.
func (e *Encoder) Backward(dMean, dLogVar *mat.Dense) *mat.Dense {
	var dh mat.Dense
	dh.Add(e.meanHead.Backward(dMean), e.varHead.Backward(dLogVar))
	return e.hidden.Backward(&dh)
}

func (e *Encoder) Params() []*Param {
	out := e.hidden.Params()
	out = append(out, e.meanHead.Params()...)
	out = append(out, e.varHead.Params()...)
	return out
}

// NewDecoder mirrors the encoder stack and reconstructs inputs through a
// sigmoid output.
func NewDecoder(latentDim int, hiddenDims []int, outDim int, rng *rand.Rand) *Sequential {
	seq := NewSequential()
	prev := latentDim
	for _, dim := range hiddenDims {
		seq.Append(NewLinear(prev, dim, rng), NewLeakyReLU(0.2), NewBatchNorm(dim))
		prev = dim
	}
	seq.Append(NewLinear(prev, outDim, rng), NewSigmoid())
	return seq
}
