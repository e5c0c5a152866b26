// Package viz projects embeddings to two dimensions and renders scatter
// plots of the result.
package viz

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PCA projects x (samples in rows) onto its top two principal components.
// Columns are centered before decomposition; the returned matrix is
// samples×2.
func PCA(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("need at least 2 samples and 2 features, got %dx%d", rows, cols)
	}
	centered := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		mean := 0.0
		for i := 0; i < rows; i++ {
			mean += x.At(i, j)
		}
		mean /= float64(rows)
		for i := 0; i < rows; i++ {
			centered.Set(i, j, x.At(i, j)-mean)
		}
	}
	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd failed to factorize %dx%d matrix", rows, cols)
	}
	var v mat.Dense
	svd.VTo(&v)
	components := v.Slice(0, cols, 0, 2)
	var projected mat.Dense
	projected.Mul(centered, components)
	out := mat.NewDense(rows, 2, nil)
	out.Copy(&projected)
	return out, nil
}
