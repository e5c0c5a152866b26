// Package feature provides unsupervised feature selection for multi-omics
// matrices: a Laplacian-score filter that favors features preserving local
// sample geometry, and a mutual-information screen against batch variables.
package feature

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// SelectorConfig controls the Laplacian-score filter. Zero values are
// replaced with defaults: KNeighbors=5.
type SelectorConfig struct {
	// MinFeatures is the lower bound of features kept per layer.
	MinFeatures int `json:"minFeatures" yaml:"minFeatures"`
	// TopPercentile is the percentage (0-100] of features kept per layer.
	TopPercentile float64 `json:"topPercentile" yaml:"topPercentile"`
	// KNeighbors is the affinity graph neighborhood size.
	KNeighbors int `json:"kNeighbors" yaml:"kNeighbors"`
}

// KeepCount resolves the number of features to keep out of total:
// max(round(total*TopPercentile/100), MinFeatures), capped at total.
func (c SelectorConfig) KeepCount(total int) int {
	keep := int(math.Round(float64(total) * c.TopPercentile / 100))
	if keep < c.MinFeatures {
		keep = c.MinFeatures
	}
	if keep > total || keep <= 0 {
		keep = total
	}
	return keep
}

// LaplacianScores computes the Laplacian score of every feature (column) of
// x (rows = samples). Lower scores indicate features that better respect the
// local neighborhood structure of the samples.
func LaplacianScores(x *mat.Dense, kNeighbors int) ([]float64, error) {
	n, p := x.Dims()
	if n < 2 {
		return nil, fmt.Errorf("laplacian scores need at least 2 samples, got %d", n)
	}
	if kNeighbors <= 0 {
		kNeighbors = 5
	}
	if kNeighbors >= n {
		kNeighbors = n - 1
	}

	// Pairwise squared Euclidean distances between samples.
	dist := make([][]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := 0.0
			for f := 0; f < p; f++ {
				diff := x.At(i, f) - x.At(j, f)
				d += diff * diff
			}
			dist[i][j] = d
			dist[j][i] = d
			sum += d
		}
	}
	t := sum / float64(n*(n-1)/2)
	if t == 0 {
		t = 1
	}

	// Heat-kernel weights on the symmetrized kNN graph.
	w := make([][]float64, n)
	for i := range w {
		w[i] = make([]float64, n)
	}
	order := make([]int, n)
	for i := 0; i < n; i++ {
		for j := range order {
			order[j] = j
		}
		row := dist[i]
		sort.Slice(order, func(a, b int) bool { return row[order[a]] < row[order[b]] })
		picked := 0
		for _, j := range order {
			if j == i {
				continue
			}
			weight := math.Exp(-row[j] / t)
			w[i][j] = weight
			w[j][i] = weight
			picked++
			if picked == kNeighbors {
				break
			}
		}
	}

	// Degrees.
	deg := make([]float64, n)
	var degSum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			deg[i] += w[i][j]
		}
		degSum += deg[i]
	}

	scores := make([]float64, p)
	col := make([]float64, n)
	for f := 0; f < p; f++ {
		mat.Col(col, f, x)
		// Remove the degree-weighted mean.
		weighted := 0.0
		for i := 0; i < n; i++ {
			weighted += col[i] * deg[i]
		}
		shift := weighted / degSum
		for i := 0; i < n; i++ {
			col[i] -= shift
		}
		// f~' L f~ = sum_ij w_ij (f_i - f_j)^2 / 2 and f~' D f~.
		num, den := 0.0, 0.0
		for i := 0; i < n; i++ {
			den += deg[i] * col[i] * col[i]
			for j := i + 1; j < n; j++ {
				if w[i][j] != 0 {
					d := col[i] - col[j]
					num += w[i][j] * d * d
				}
			}
		}
		if den == 0 {
			// Constant feature carries no structure; rank it last.
			scores[f] = math.Inf(1)
			continue
		}
		scores[f] = num / den
	}
	return scores, nil
}

// SelectByLaplacian returns the indices (in original column order) of the
// keep lowest-scoring features of x.
func SelectByLaplacian(x *mat.Dense, keep, kNeighbors int) ([]int, error) {
	_, p := x.Dims()
	if keep >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	scores, err := LaplacianScores(x, kNeighbors)
	if err != nil {
		return nil, err
	}
	order := make([]int, p)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	kept := append([]int(nil), order[:keep]...)
	sort.Ints(kept)
	return kept, nil
}
