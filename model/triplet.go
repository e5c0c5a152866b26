package model

import (
	"fmt"
	"math/rand"

	"github.com/omixlab/fuseomics/nn"
	"github.com/omixlab/fuseomics/omics"
	"gonum.org/v1/gonum/mat"
)

// MultiTripletName is the registry name of the triplet metric-learning
// architecture.
const MultiTripletName = "MultiTripletNetwork"

// TripletLossKey reports the margin loss component.
const TripletLossKey = "triplet"

// DefaultTripletMargin is the margin of the ranking loss.
const DefaultTripletMargin = 1.0

// TripletBatch stacks anchors, positives and negatives row-wise
// (3*B rows per layer) with the anchor classes of the primary target.
type TripletBatch struct {
	X       map[string]*mat.Dense
	Classes []int
	B       int
}

// NewTripletBatch assembles a TripletBatch from dataset rows.
func NewTripletBatch(ds *omics.Dataset, primary string, triplets []omics.Triplet) *TripletBatch {
	b := len(triplets)
	tb := &TripletBatch{
		X:       make(map[string]*mat.Dense, len(ds.Layers)),
		Classes: make([]int, b),
		B:       b,
	}
	v := ds.Targets[primary]
	for i, t := range triplets {
		tb.Classes[i] = v.Class(t.Anchor)
	}
	for name, m := range ds.Layers {
		_, cols := m.Dims()
		stacked := mat.NewDense(3*b, cols, nil)
		for i, t := range triplets {
			stacked.SetRow(i, mat.Row(nil, t.Anchor, m))
			stacked.SetRow(b+i, mat.Row(nil, t.Positive, m))
			stacked.SetRow(2*b+i, mat.Row(nil, t.Negative, m))
		}
		tb.X[name] = stacked
	}
	return tb
}

// MultiTripletNetwork embeds each omic layer, fuses the embeddings through a
// shared embedding network and trains with a triplet margin loss plus a
// classifier head on the anchor embeddings. It supervises a single
// categorical target.
type MultiTripletNetwork struct {
	spec     *Spec
	primary  TargetSpec
	encoders map[string]*nn.Sequential
	fusion   *nn.Sequential
	head     *nn.Sequential
	Margin   float64
}

// NewMultiTripletNetwork builds the architecture; the spec must contain at
// least one categorical target (the first becomes the supervised one).
func NewMultiTripletNetwork(spec *Spec) (*MultiTripletNetwork, error) {
	var primary *TargetSpec
	for i := range spec.Targets {
		if spec.Targets[i].Task == Classification {
			primary = &spec.Targets[i]
			break
		}
	}
	if primary == nil {
		return nil, fmt.Errorf("%v requires a categorical target variable", MultiTripletName)
	}
	rng := rand.New(rand.NewSource(spec.Seed))
	t := &MultiTripletNetwork{
		spec:     spec,
		primary:  *primary,
		encoders: make(map[string]*nn.Sequential, len(spec.Layers)),
		Margin:   DefaultTripletMargin,
	}
	for _, layer := range spec.Layers {
		t.encoders[layer.Name] = nn.NewEmbeddingNetwork(layer.Dim, spec.HiddenDim, spec.LatentDim, rng)
	}
	t.fusion = nn.NewEmbeddingNetwork(spec.LatentDim*len(spec.Layers), spec.HiddenDim, spec.LatentDim, rng)
	t.head = nn.NewMLP(spec.LatentDim, spec.HiddenDim, primary.NumClasses, spec.Dropout, rng)
	return t, nil
}

func (t *MultiTripletNetwork) Name() string { return MultiTripletName }

// Primary returns the supervised categorical target.
func (t *MultiTripletNetwork) Primary() TargetSpec { return t.primary }

func (t *MultiTripletNetwork) Params() []*nn.Param {
	var out []*nn.Param
	for _, layer := range t.spec.Layers {
		out = append(out, t.encoders[layer.Name].Params()...)
	}
	out = append(out, t.fusion.Params()...)
	out = append(out, t.head.Params()...)
	return out
}

// embed runs the shared embedding stack on per-layer inputs.
func (t *MultiTripletNetwork) embed(x map[string]*mat.Dense, train bool) *mat.Dense {
	parts := make([]*mat.Dense, len(t.spec.Layers))
	for i, layer := range t.spec.Layers {
		parts[i] = t.encoders[layer.Name].Forward(x[layer.Name], train)
	}
	return t.fusion.Forward(hstack(parts), train)
}

// embedGrad routes the embedding gradient back through fusion and encoders.
func (t *MultiTripletNetwork) embedGrad(dE *mat.Dense) {
	dConcat := t.fusion.Backward(dE)
	widths := make([]int, len(t.spec.Layers))
	for i := range widths {
		widths[i] = t.spec.LatentDim
	}
	for i, part := range splitCols(dConcat, widths) {
		t.encoders[t.spec.Layers[i].Name].Backward(part)
	}
}

// rowsSlice copies rows [from, to) of m.
func rowsSlice(m *mat.Dense, from, to int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(to-from, cols, nil)
	for i := from; i < to; i++ {
		out.SetRow(i-from, mat.Row(nil, i, m))
	}
	return out
}

// TrainTriplets accumulates gradients over one triplet batch and returns the
// total loss with its components.
func (t *MultiTripletNetwork) TrainTriplets(tb *TripletBatch) (float64, map[string]float64) {
	e := t.embed(tb.X, true)
	b := tb.B
	anchor := rowsSlice(e, 0, b)
	positive := rowsSlice(e, b, 2*b)
	negative := rowsSlice(e, 2*b, 3*b)

	tripletLoss, dA, dP, dN := nn.TripletMargin(anchor, positive, negative, t.Margin)

	out := t.head.Forward(anchor, true)
	ceLoss, dOut := nn.CrossEntropy(out, tb.Classes)
	addScaled(dA, t.head.Backward(dOut), 1)

	rows, cols := e.Dims()
	dE := mat.NewDense(rows, cols, nil)
	for i := 0; i < b; i++ {
		for j := 0; j < cols; j++ {
			dE.Set(i, j, dA.At(i, j))
			dE.Set(b+i, j, dP.At(i, j))
			dE.Set(2*b+i, j, dN.At(i, j))
		}
	}
	t.embedGrad(dE)

	losses := map[string]float64{TripletLossKey: tripletLoss, t.primary.Name: ceLoss}
	return tripletLoss + ceLoss, losses
}

// LossTriplets evaluates a triplet batch without gradient accumulation.
func (t *MultiTripletNetwork) LossTriplets(tb *TripletBatch) (float64, map[string]float64) {
	e := t.embed(tb.X, false)
	b := tb.B
	anchor := rowsSlice(e, 0, b)
	positive := rowsSlice(e, b, 2*b)
	negative := rowsSlice(e, 2*b, 3*b)
	tripletLoss, _, _, _ := nn.TripletMargin(anchor, positive, negative, t.Margin)
	out := t.head.Forward(anchor, false)
	ceLoss, _ := nn.CrossEntropy(out, tb.Classes)
	losses := map[string]float64{TripletLossKey: tripletLoss, t.primary.Name: ceLoss}
	return tripletLoss + ceLoss, losses
}

// TrainStep satisfies Architecture for plain batches by training the
// classifier head only; the trainer provides triplet batches through
// TrainTriplets when a sampler is configured.
func (t *MultiTripletNetwork) TrainStep(b *Batch) (float64, map[string]float64) {
	e := t.embed(b.X, true)
	out := t.head.Forward(e, true)
	loss, grad := nn.CrossEntropy(out, b.Classes[t.primary.Name])
	t.embedGrad(t.head.Backward(grad))
	return loss, map[string]float64{t.primary.Name: loss}
}

func (t *MultiTripletNetwork) Loss(b *Batch) (float64, map[string]float64) {
	e := t.embed(b.X, false)
	out := t.head.Forward(e, false)
	loss, _ := nn.CrossEntropy(out, b.Classes[t.primary.Name])
	return loss, map[string]float64{t.primary.Name: loss}
}

func (t *MultiTripletNetwork) Predict(ds *omics.Dataset) map[string]*mat.Dense {
	b := NewBatch(ds, allIndices(ds.NumSamples()))
	e := t.embed(b.X, false)
	probs := nn.Softmax(t.head.Forward(e, false))
	return map[string]*mat.Dense{t.primary.Name: probs}
}

func (t *MultiTripletNetwork) Embed(ds *omics.Dataset) *mat.Dense {
	b := NewBatch(ds, allIndices(ds.NumSamples()))
	return t.embed(b.X, false)
}
