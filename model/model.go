// Package model defines the prediction architectures: DirectPred (with a
// conv-block encoder variant), SupervisedVAE and MultiTripletNetwork. Each
// architecture owns its parameters and exposes explicit train-step, loss,
// predict and embed operations over aligned multi-omics batches.
package model

import (
	"fmt"
	"sort"

	"github.com/omixlab/fuseomics/nn"
	"github.com/omixlab/fuseomics/omics"
	"gonum.org/v1/gonum/mat"
)

// Task is the supervision type of one target variable.
type Task string

const (
	Regression     Task = "regression"
	Classification Task = "classification"
)

// FusionKind selects how omic layers are combined.
type FusionKind string

const (
	// FusionEarly concatenates raw layer inputs before encoding.
	FusionEarly FusionKind = "early"
	// FusionIntermediate encodes each layer separately and concatenates the
	// per-layer latent vectors.
	FusionIntermediate FusionKind = "intermediate"
)

// TargetSpec describes one clinical endpoint to supervise on.
type TargetSpec struct {
	Name       string
	Task       Task
	NumClasses int
}

// LayerSpec describes one omic layer's input dimensionality.
type LayerSpec struct {
	Name string
	Dim  int
}

// Spec captures everything needed to build an architecture for a dataset.
type Spec struct {
	Layers        []LayerSpec
	Targets       []TargetSpec
	HiddenDim     int
	LatentDim     int
	Dropout       float64
	Fusion        FusionKind
	LossWeighting bool
	Seed          int64
}

// SpecFor derives a Spec from a prepared dataset and hyperparameters.
func SpecFor(ds *omics.Dataset, hiddenDim, latentDim int, dropout float64, fusion FusionKind, lossWeighting bool, seed int64) *Spec {
	spec := &Spec{
		HiddenDim:     hiddenDim,
		LatentDim:     latentDim,
		Dropout:       dropout,
		Fusion:        fusion,
		LossWeighting: lossWeighting,
		Seed:          seed,
	}
	for _, name := range ds.LayerNames() {
		spec.Layers = append(spec.Layers, LayerSpec{Name: name, Dim: ds.Dim(name)})
	}
	names := make([]string, 0, len(ds.Targets))
	for name := range ds.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := ds.Targets[name]
		target := TargetSpec{Name: name, Task: Regression}
		if v.Kind == omics.Categorical {
			target.Task = Classification
			target.NumClasses = v.NumClasses()
		}
		spec.Targets = append(spec.Targets, target)
	}
	return spec
}

// InputDim returns the total feature count across layers.
func (s *Spec) InputDim() int {
	total := 0
	for _, layer := range s.Layers {
		total += layer.Dim
	}
	return total
}

// FusedDim returns the dimensionality of the fused representation the
// supervisor heads see.
func (s *Spec) FusedDim() int {
	if s.Fusion == FusionEarly {
		return s.LatentDim
	}
	return s.LatentDim * len(s.Layers)
}

// Target returns the spec of a named target.
func (s *Spec) Target(name string) (TargetSpec, error) {
	for _, t := range s.Targets {
		if t.Name == name {
			return t, nil
		}
	}
	return TargetSpec{}, fmt.Errorf("target %q not in spec", name)
}

// Batch is a row subset of a dataset prepared for one gradient step.
type Batch struct {
	X       map[string]*mat.Dense
	Numeric map[string][]float64
	Classes map[string][]int
	Size    int
}

// NewBatch extracts the given sample indices from the dataset.
func NewBatch(ds *omics.Dataset, indices []int) *Batch {
	b := &Batch{
		X:       make(map[string]*mat.Dense, len(ds.Layers)),
		Numeric: map[string][]float64{},
		Classes: map[string][]int{},
		Size:    len(indices),
	}
	for name, m := range ds.Layers {
		_, cols := m.Dims()
		sub := mat.NewDense(len(indices), cols, nil)
		for i, idx := range indices {
			sub.SetRow(i, mat.Row(nil, idx, m))
		}
		b.X[name] = sub
	}
	for name, v := range ds.Targets {
		if v.Kind == omics.Categorical {
			classes := make([]int, len(indices))
			for i, idx := range indices {
				classes[i] = v.Class(idx)
			}
			b.Classes[name] = classes
		} else {
			values := make([]float64, len(indices))
			for i, idx := range indices {
				values[i] = v.Values[idx]
			}
			b.Numeric[name] = values
		}
	}
	return b
}

// Architecture is a trainable multi-omics prediction model.
type Architecture interface {
	// Name returns the registered architecture name.
	Name() string
	// Params exposes all trainable parameters.
	Params() []*nn.Param
	// TrainStep accumulates gradients for one batch and returns the total
	// (weighted) loss plus raw per-component losses.
	TrainStep(batch *Batch) (float64, map[string]float64)
	// Loss evaluates the batch without accumulating gradients.
	Loss(batch *Batch) (float64, map[string]float64)
	// Predict returns per-target predictions for the dataset: an n x 1
	// matrix for regression, n x classes softmax probabilities otherwise.
	Predict(ds *omics.Dataset) map[string]*mat.Dense
	// Embed returns the fused latent representation of every sample.
	Embed(ds *omics.Dataset) *mat.Dense
}

// concatBatch stacks batch layers column-wise in spec layer order.
func concatBatch(spec *Spec, b *Batch) *mat.Dense {
	out := mat.NewDense(b.Size, spec.InputDim(), nil)
	offset := 0
	for _, layer := range spec.Layers {
		m := b.X[layer.Name]
		for i := 0; i < b.Size; i++ {
			for j := 0; j < layer.Dim; j++ {
				out.Set(i, offset+j, m.At(i, j))
			}
		}
		offset += layer.Dim
	}
	return out
}

// hstack concatenates matrices with equal row counts column-wise.
func hstack(parts []*mat.Dense) *mat.Dense {
	rows, _ := parts[0].Dims()
	total := 0
	for _, p := range parts {
		_, c := p.Dims()
		total += c
	}
	out := mat.NewDense(rows, total, nil)
	offset := 0
	for _, p := range parts {
		_, c := p.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, offset+j, p.At(i, j))
			}
		}
		offset += c
	}
	return out
}

// splitCols slices a matrix back into column blocks of the given widths.
func splitCols(m *mat.Dense, widths []int) []*mat.Dense {
	rows, _ := m.Dims()
	out := make([]*mat.Dense, len(widths))
	offset := 0
	for k, w := range widths {
		part := mat.NewDense(rows, w, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j < w; j++ {
				part.Set(i, j, m.At(i, offset+j))
			}
		}
		out[k] = part
		offset += w
	}
	return out
}

// allIndices returns 0..n-1.
func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// addScaled accumulates dst += scale * src.
func addScaled(dst, src *mat.Dense, scale float64) {
	rows, cols := dst.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst.Set(i, j, dst.At(i, j)+scale*src.At(i, j))
		}
	}
}
