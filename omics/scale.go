package omics

import (
	"fmt"
	"math"
)

// Log1p applies log(1+x) to every cell of every layer, in place. Negative
// cells are clamped at zero first; omic count matrices are non-negative and
// anything below zero indicates already-transformed input.
func Log1p(ds *Dataset) {
	for _, m := range ds.Layers {
		rows, cols := m.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				v := m.At(i, j)
				if math.IsNaN(v) {
					continue
				}
				if v < 0 {
					v = 0
				}
				m.Set(i, j, math.Log1p(v))
			}
		}
	}
}

// Scaler standardizes each feature of each layer to zero mean and unit
// variance using statistics from the split it was fitted on. Missing cells
// are imputed with the fitted feature mean before scaling, so a transformed
// matrix never contains NaN.
type Scaler struct {
	Mean map[string][]float64
	Std  map[string][]float64
}

// FitScaler computes per-feature means and standard deviations, ignoring
// missing cells.
func FitScaler(ds *Dataset) *Scaler {
	s := &Scaler{
		Mean: make(map[string][]float64, len(ds.Layers)),
		Std:  make(map[string][]float64, len(ds.Layers)),
	}
	for name, m := range ds.Layers {
		rows, cols := m.Dims()
		mean := make([]float64, cols)
		std := make([]float64, cols)
		for j := 0; j < cols; j++ {
			sum, count := 0.0, 0
			for i := 0; i < rows; i++ {
				if v := m.At(i, j); !math.IsNaN(v) {
					sum += v
					count++
				}
			}
			if count > 0 {
				mean[j] = sum / float64(count)
			}
			ss := 0.0
			for i := 0; i < rows; i++ {
				if v := m.At(i, j); !math.IsNaN(v) {
					d := v - mean[j]
					ss += d * d
				}
			}
			if count > 1 {
				std[j] = math.Sqrt(ss / float64(count-1))
			}
		}
		s.Mean[name] = mean
		s.Std[name] = std
	}
	return s
}

// Transform imputes and standardizes the dataset in place with the fitted
// statistics. The dataset must carry the same layers and feature order the
// scaler was fitted on.
func (s *Scaler) Transform(ds *Dataset) error {
	for name, m := range ds.Layers {
		mean, ok := s.Mean[name]
		if !ok {
			return fmt.Errorf("scaler was not fitted on layer %q", name)
		}
		std := s.Std[name]
		rows, cols := m.Dims()
		if cols != len(mean) {
			return fmt.Errorf("layer %q has %d features, scaler was fitted on %d", name, cols, len(mean))
		}
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				v := m.At(i, j)
				if math.IsNaN(v) {
					v = mean[j]
				}
				if std[j] > 0 {
					v = (v - mean[j]) / std[j]
				} else {
					v = 0
				}
				m.Set(i, j, v)
			}
		}
	}
	return nil
}

// Select restricts the fitted statistics to the named features of a layer,
// keeping the scaler usable after feature selection.
func (s *Scaler) Select(layer string, kept []int) {
	mean := make([]float64, len(kept))
	std := make([]float64, len(kept))
	for i, idx := range kept {
		mean[i] = s.Mean[layer][idx]
		std[i] = s.Std[layer][idx]
	}
	s.Mean[layer] = mean
	s.Std[layer] = std
}
