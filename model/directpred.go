package model

import (
	"math/rand"

	"github.com/omixlab/fuseomics/nn"
	"github.com/omixlab/fuseomics/omics"
	"gonum.org/v1/gonum/mat"
)

// DirectPredName is the registry name of the dense-encoder architecture.
const DirectPredName = "DirectPred"

// DirectPredCNNName is the conv-block encoder variant.
const DirectPredCNNName = "DirectPredCNN"

// DirectPred encodes each omic layer (or their early-fused concatenation)
// into a latent vector and attaches one supervisor MLP head per target.
type DirectPred struct {
	name     string
	spec     *Spec
	encoders map[string]*nn.Sequential
	fused    *nn.Sequential
	heads    map[string]*nn.Sequential
	weighter *nn.TaskWeighter
}

// NewDirectPred builds the architecture for the given spec.
func NewDirectPred(spec *Spec) *DirectPred {
	return newDirectPred(DirectPredName, spec, false)
}

// NewDirectPredCNN builds the conv-block encoder variant.
func NewDirectPredCNN(spec *Spec) *DirectPred {
	return newDirectPred(DirectPredCNNName, spec, true)
}

func newDirectPred(name string, spec *Spec, conv bool) *DirectPred {
	rng := rand.New(rand.NewSource(spec.Seed))
	encoder := func(inDim int) *nn.Sequential {
		if conv {
			return nn.NewConvBlock(inDim, spec.HiddenDim, spec.LatentDim, spec.Dropout, rng)
		}
		return nn.NewEmbeddingNetwork(inDim, spec.HiddenDim, spec.LatentDim, rng)
	}
	d := &DirectPred{
		name:  name,
		spec:  spec,
		heads: make(map[string]*nn.Sequential, len(spec.Targets)),
	}
	if spec.Fusion == FusionEarly {
		d.fused = encoder(spec.InputDim())
	} else {
		d.encoders = make(map[string]*nn.Sequential, len(spec.Layers))
		for _, layer := range spec.Layers {
			d.encoders[layer.Name] = encoder(layer.Dim)
		}
	}
	for _, target := range spec.Targets {
		outDim := 1
		if target.Task == Classification {
			outDim = target.NumClasses
		}
		d.heads[target.Name] = nn.NewMLP(spec.FusedDim(), spec.HiddenDim, outDim, spec.Dropout, rng)
	}
	if spec.LossWeighting && len(spec.Targets) > 1 {
		names := make([]string, len(spec.Targets))
		for i, t := range spec.Targets {
			names[i] = t.Name
		}
		d.weighter = nn.NewTaskWeighter(names)
	}
	return d
}

func (d *DirectPred) Name() string { return d.name }

func (d *DirectPred) Params() []*nn.Param {
	var out []*nn.Param
	if d.fused != nil {
		out = append(out, d.fused.Params()...)
	}
	for _, layer := range d.spec.Layers {
		if enc, ok := d.encoders[layer.Name]; ok {
			out = append(out, enc.Params()...)
		}
	}
	for _, target := range d.spec.Targets {
		out = append(out, d.heads[target.Name].Params()...)
	}
	if d.weighter != nil {
		out = append(out, d.weighter.Params()...)
	}
	return out
}

// encode produces the fused latent for a batch, caching layer activations
// for backward.
func (d *DirectPred) encode(b *Batch, train bool) *mat.Dense {
	if d.spec.Fusion == FusionEarly {
		return d.fused.Forward(concatBatch(d.spec, b), train)
	}
	parts := make([]*mat.Dense, len(d.spec.Layers))
	for i, layer := range d.spec.Layers {
		parts[i] = d.encoders[layer.Name].Forward(b.X[layer.Name], train)
	}
	return hstack(parts)
}

// decodeGrad routes the fused-latent gradient back through the encoder(s).
func (d *DirectPred) decodeGrad(dz *mat.Dense) {
	if d.spec.Fusion == FusionEarly {
		d.fused.Backward(dz)
		return
	}
	widths := make([]int, len(d.spec.Layers))
	for i := range d.spec.Layers {
		widths[i] = d.spec.LatentDim
	}
	for i, part := range splitCols(dz, widths) {
		d.encoders[d.spec.Layers[i].Name].Backward(part)
	}
}

// headLoss computes one target's loss and the gradient w.r.t. the head
// output logits/prediction.
func headLoss(target TargetSpec, out *mat.Dense, b *Batch) (float64, *mat.Dense) {
	if target.Task == Classification {
		return nn.CrossEntropy(out, b.Classes[target.Name])
	}
	return nn.MSE(out, b.Numeric[target.Name])
}

func (d *DirectPred) TrainStep(b *Batch) (float64, map[string]float64) {
	z := d.encode(b, true)
	rows, cols := z.Dims()
	dz := mat.NewDense(rows, cols, nil)
	losses := make(map[string]float64, len(d.spec.Targets))
	total := 0.0
	for _, target := range d.spec.Targets {
		head := d.heads[target.Name]
		out := head.Forward(z, true)
		loss, grad := headLoss(target, out, b)
		losses[target.Name] = loss
		scale := 1.0
		if d.weighter != nil {
			scale = d.weighter.Scale(target.Name, loss)
			total += d.weighter.Weighted(target.Name, loss)
		} else {
			total += loss
		}
		grad.Scale(scale, grad)
		addScaled(dz, head.Backward(grad), 1)
	}
	d.decodeGrad(dz)
	return total, losses
}

func (d *DirectPred) Loss(b *Batch) (float64, map[string]float64) {
	z := d.encode(b, false)
	losses := make(map[string]float64, len(d.spec.Targets))
	total := 0.0
	for _, target := range d.spec.Targets {
		out := d.heads[target.Name].Forward(z, false)
		loss, _ := headLoss(target, out, b)
		losses[target.Name] = loss
		if d.weighter != nil {
			total += d.weighter.Weighted(target.Name, loss)
		} else {
			total += loss
		}
	}
	return total, losses
}

func (d *DirectPred) Predict(ds *omics.Dataset) map[string]*mat.Dense {
	b := NewBatch(ds, allIndices(ds.NumSamples()))
	z := d.encode(b, false)
	out := make(map[string]*mat.Dense, len(d.spec.Targets))
	for _, target := range d.spec.Targets {
		pred := d.heads[target.Name].Forward(z, false)
		if target.Task == Classification {
			pred = nn.Softmax(pred)
		}
		out[target.Name] = pred
	}
	return out
}

func (d *DirectPred) Embed(ds *omics.Dataset) *mat.Dense {
	return d.encode(NewBatch(ds, allIndices(ds.NumSamples())), false)
}
