package omics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// VariableKind discriminates clinical endpoint types.
type VariableKind string

const (
	// Numerical marks a continuous endpoint (regression).
	Numerical VariableKind = "numerical"
	// Categorical marks a discrete endpoint (classification).
	Categorical VariableKind = "categorical"
)

// Variable holds one clinical endpoint aligned with Dataset.Samples.
// Values are float64 encoded; for categorical variables each value is the
// index into Levels. Missing observations are NaN.
type Variable struct {
	Name   string
	Kind   VariableKind
	Values []float64
	Levels []string
}

// NumClasses returns the number of observed levels for a categorical
// variable, or zero for numerical ones.
func (v *Variable) NumClasses() int {
	if v.Kind != Categorical {
		return 0
	}
	return len(v.Levels)
}

// Observed reports whether sample i has a value for this variable.
func (v *Variable) Observed(i int) bool {
	return !math.IsNaN(v.Values[i])
}

// Class returns the class index of sample i, or -1 when missing.
func (v *Variable) Class(i int) int {
	if !v.Observed(i) {
		return -1
	}
	return int(v.Values[i])
}

// Dataset is an aligned multi-omics dataset: one matrix per omic layer with
// rows = samples and columns = features, plus clinical target variables.
// All layer matrices share the same row order given by Samples.
type Dataset struct {
	Layers   map[string]*mat.Dense
	Features map[string][]string
	Samples  []string
	Targets  map[string]*Variable
}

// LayerNames returns layer names in deterministic order.
func (d *Dataset) LayerNames() []string {
	names := make([]string, 0, len(d.Layers))
	for name := range d.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NumSamples returns the number of aligned samples.
func (d *Dataset) NumSamples() int { return len(d.Samples) }

// Dim returns the feature count of the named layer.
func (d *Dataset) Dim(layer string) int { return len(d.Features[layer]) }

// Subset builds a new Dataset restricted to the given sample indices. Feature
// metadata is shared, matrices and target values are copied.
func (d *Dataset) Subset(indices []int) *Dataset {
	out := &Dataset{
		Layers:   make(map[string]*mat.Dense, len(d.Layers)),
		Features: d.Features,
		Samples:  make([]string, len(indices)),
		Targets:  make(map[string]*Variable, len(d.Targets)),
	}
	for i, idx := range indices {
		out.Samples[i] = d.Samples[idx]
	}
	for name, m := range d.Layers {
		_, cols := m.Dims()
		sub := mat.NewDense(len(indices), cols, nil)
		for i, idx := range indices {
			sub.SetRow(i, mat.Row(nil, idx, m))
		}
		out.Layers[name] = sub
	}
	for name, v := range d.Targets {
		values := make([]float64, len(indices))
		for i, idx := range indices {
			values[i] = v.Values[idx]
		}
		out.Targets[name] = &Variable{Name: v.Name, Kind: v.Kind, Values: values, Levels: v.Levels}
	}
	return out
}

// SelectFeatures restricts a layer to the named features, in the given order.
// Unknown feature names yield an error; this is what keeps the test split
// harmonized with the train split after feature selection.
func (d *Dataset) SelectFeatures(layer string, features []string) error {
	m, ok := d.Layers[layer]
	if !ok {
		return fmt.Errorf("layer %q not found", layer)
	}
	index := make(map[string]int, len(d.Features[layer]))
	for i, name := range d.Features[layer] {
		index[name] = i
	}
	rows, _ := m.Dims()
	sub := mat.NewDense(rows, len(features), nil)
	for j, name := range features {
		src, ok := index[name]
		if !ok {
			return fmt.Errorf("layer %q has no feature %q", layer, name)
		}
		for i := 0; i < rows; i++ {
			sub.Set(i, j, m.At(i, src))
		}
	}
	d.Layers[layer] = sub
	names := make([]string, len(features))
	copy(names, features)
	if d.Features == nil {
		d.Features = map[string][]string{}
	} else {
		// Features map may be shared with a sibling split; copy on write.
		shared := d.Features
		d.Features = make(map[string][]string, len(shared))
		for k, v := range shared {
			d.Features[k] = v
		}
	}
	d.Features[layer] = names
	return nil
}

// Concat stacks all layers column-wise into a single samples x features
// matrix, layers in LayerNames order.
func (d *Dataset) Concat() *mat.Dense {
	total := 0
	names := d.LayerNames()
	for _, name := range names {
		total += d.Dim(name)
	}
	out := mat.NewDense(d.NumSamples(), total, nil)
	offset := 0
	for _, name := range names {
		m := d.Layers[name]
		_, cols := m.Dims()
		for i := 0; i < d.NumSamples(); i++ {
			for j := 0; j < cols; j++ {
				out.Set(i, offset+j, m.At(i, j))
			}
		}
		offset += cols
	}
	return out
}

// Split partitions the dataset into train and validation subsets using the
// supplied shuffled index order and validation fraction.
func (d *Dataset) Split(order []int, valFraction float64) (train, val *Dataset) {
	n := len(order)
	nVal := int(float64(n) * valFraction)
	if nVal < 1 && valFraction > 0 && n > 1 {
		nVal = 1
	}
	return d.Subset(order[nVal:]), d.Subset(order[:nVal])
}
