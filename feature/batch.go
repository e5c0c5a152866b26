package feature

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultMIThreshold is the mutual-information cutoff above which a feature
// is considered batch-associated.
const DefaultMIThreshold = 0.1

// MutualInformation estimates I(X;Y) in nats from a 2D histogram with the
// given number of equal-width bins per axis. Pairs with a missing value in
// either variable are skipped.
func MutualInformation(x, y []float64, bins int) float64 {
	if bins <= 0 {
		bins = 10
	}
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	n := len(xs)
	if n < 2 {
		return 0
	}
	bx := binify(xs, bins)
	by := binify(ys, bins)

	joint := make([][]float64, bins)
	for i := range joint {
		joint[i] = make([]float64, bins)
	}
	px := make([]float64, bins)
	py := make([]float64, bins)
	inc := 1 / float64(n)
	for i := 0; i < n; i++ {
		joint[bx[i]][by[i]] += inc
		px[bx[i]] += inc
		py[by[i]] += inc
	}
	mi := 0.0
	for i := 0; i < bins; i++ {
		for j := 0; j < bins; j++ {
			if joint[i][j] > 0 {
				mi += joint[i][j] * math.Log(joint[i][j]/(px[i]*py[j]))
			}
		}
	}
	if mi < 0 {
		mi = 0
	}
	return mi
}

func binify(values []float64, bins int) []int {
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	width := (hi - lo) / float64(bins)
	out := make([]int, len(values))
	if width == 0 {
		return out
	}
	for i, v := range values {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		out[i] = b
	}
	return out
}

// BatchAssociated returns the column indices of x whose mutual information
// with the batch variable exceeds the threshold. Those features leak batch
// identity and should be dropped before training.
func BatchAssociated(x *mat.Dense, batch []float64, threshold float64, bins int) []int {
	if threshold <= 0 {
		threshold = DefaultMIThreshold
	}
	_, p := x.Dims()
	var flagged []int
	col := make([]float64, len(batch))
	for f := 0; f < p; f++ {
		mat.Col(col, f, x)
		if MutualInformation(col, batch, bins) > threshold {
			flagged = append(flagged, f)
		}
	}
	return flagged
}

// Complement returns indices in [0,total) that are not in drop; drop must be
// sorted ascending.
func Complement(drop []int, total int) []int {
	kept := make([]int, 0, total-len(drop))
	next := 0
	for i := 0; i < total; i++ {
		if next < len(drop) && drop[next] == i {
			next++
			continue
		}
		kept = append(kept, i)
	}
	return kept
}
