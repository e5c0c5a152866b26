// Package evaluate computes endpoint metrics for trained models and the
// simple baselines used to sanity-check them: balanced accuracy, macro F1 and
// Cohen's kappa for classification; MSE, R² and Pearson r for regression.
package evaluate

import (
	"fmt"
	"math"
)

// ClassificationMetrics summarizes a classifier against true class labels.
type ClassificationMetrics struct {
	BalancedAccuracy float64 `json:"balancedAccuracy" yaml:"balancedAccuracy"`
	F1Macro          float64 `json:"f1Macro" yaml:"f1Macro"`
	Kappa            float64 `json:"kappa" yaml:"kappa"`
}

// RegressionMetrics summarizes a regressor against true values.
type RegressionMetrics struct {
	MSE     float64 `json:"mse" yaml:"mse"`
	R2      float64 `json:"r2" yaml:"r2"`
	Pearson float64 `json:"pearson" yaml:"pearson"`
}

// Classification computes metrics over paired class labels; entries with a
// negative true class (missing) are skipped. numClasses bounds the label
// range.
func Classification(yTrue, yPred []int, numClasses int) (ClassificationMetrics, error) {
	if len(yTrue) != len(yPred) {
		return ClassificationMetrics{}, fmt.Errorf("length mismatch: %d vs %d", len(yTrue), len(yPred))
	}
	// Confusion counts.
	confusion := make([][]float64, numClasses)
	for i := range confusion {
		confusion[i] = make([]float64, numClasses)
	}
	total := 0.0
	for i := range yTrue {
		if yTrue[i] < 0 {
			continue
		}
		if yTrue[i] >= numClasses || yPred[i] < 0 || yPred[i] >= numClasses {
			return ClassificationMetrics{}, fmt.Errorf("class out of range at %d", i)
		}
		confusion[yTrue[i]][yPred[i]]++
		total++
	}
	if total == 0 {
		return ClassificationMetrics{}, fmt.Errorf("no observed labels")
	}

	var m ClassificationMetrics

	// Balanced accuracy: mean per-class recall over classes with support.
	recallSum, observed := 0.0, 0
	for c := 0; c < numClasses; c++ {
		support := 0.0
		for j := 0; j < numClasses; j++ {
			support += confusion[c][j]
		}
		if support == 0 {
			continue
		}
		recallSum += confusion[c][c] / support
		observed++
	}
	m.BalancedAccuracy = recallSum / float64(observed)

	// Macro F1 over classes with any support or predictions.
	f1Sum, counted := 0.0, 0
	for c := 0; c < numClasses; c++ {
		tp := confusion[c][c]
		fn, fp := 0.0, 0.0
		for j := 0; j < numClasses; j++ {
			if j != c {
				fn += confusion[c][j]
				fp += confusion[j][c]
			}
		}
		if tp+fn+fp == 0 {
			continue
		}
		f1 := 0.0
		if 2*tp+fp+fn > 0 {
			f1 = 2 * tp / (2*tp + fp + fn)
		}
		f1Sum += f1
		counted++
	}
	if counted > 0 {
		m.F1Macro = f1Sum / float64(counted)
	}

	// Cohen's kappa.
	po := 0.0
	pe := 0.0
	for c := 0; c < numClasses; c++ {
		po += confusion[c][c] / total
		rowSum, colSum := 0.0, 0.0
		for j := 0; j < numClasses; j++ {
			rowSum += confusion[c][j]
			colSum += confusion[j][c]
		}
		pe += (rowSum / total) * (colSum / total)
	}
	if pe < 1 {
		m.Kappa = (po - pe) / (1 - pe)
	}
	return m, nil
}

// Regression computes metrics over paired values; NaN true values are
// skipped.
func Regression(yTrue, yPred []float64) (RegressionMetrics, error) {
	if len(yTrue) != len(yPred) {
		return RegressionMetrics{}, fmt.Errorf("length mismatch: %d vs %d", len(yTrue), len(yPred))
	}
	var xs, ys []float64
	for i := range yTrue {
		if math.IsNaN(yTrue[i]) || math.IsNaN(yPred[i]) {
			continue
		}
		xs = append(xs, yTrue[i])
		ys = append(ys, yPred[i])
	}
	n := float64(len(xs))
	if n < 2 {
		return RegressionMetrics{}, fmt.Errorf("need at least 2 observed pairs, got %d", len(xs))
	}
	var m RegressionMetrics
	meanTrue := 0.0
	for _, v := range xs {
		meanTrue += v
	}
	meanTrue /= n
	ssRes, ssTot := 0.0, 0.0
	for i := range xs {
		d := xs[i] - ys[i]
		ssRes += d * d
		t := xs[i] - meanTrue
		ssTot += t * t
	}
	m.MSE = ssRes / n
	if ssTot > 0 {
		m.R2 = 1 - ssRes/ssTot
	}
	m.Pearson = pearson(xs, ys)
	return m, nil
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	var sx, sy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/n, sy/n
	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// Argmax returns the per-row index of the maximum column, used to turn
// softmax probabilities into class predictions.
func Argmax(rows [][]float64) []int {
	out := make([]int, len(rows))
	for i, row := range rows {
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
