package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MSE returns the mean squared error over observed targets and the gradient
// w.r.t. pred. NaN targets are masked out of both the mean and the gradient.
func MSE(pred *mat.Dense, target []float64) (float64, *mat.Dense) {
	rows, cols := pred.Dims()
	grad := mat.NewDense(rows, cols, nil)
	valid := 0
	for i := range target {
		if !math.IsNaN(target[i]) {
			valid++
		}
	}
	if valid == 0 {
		return 0, grad
	}
	loss := 0.0
	for i := 0; i < rows; i++ {
		if math.IsNaN(target[i]) {
			continue
		}
		d := pred.At(i, 0) - target[i]
		loss += d * d
		grad.Set(i, 0, 2*d/float64(valid))
	}
	return loss / float64(valid), grad
}

// Softmax computes row-wise softmax probabilities of the logits.
func Softmax(logits *mat.Dense) *mat.Dense {
	rows, cols := logits.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		maxV := logits.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := logits.At(i, j); v > maxV {
				maxV = v
			}
		}
		sum := 0.0
		for j := 0; j < cols; j++ {
			e := math.Exp(logits.At(i, j) - maxV)
			out.Set(i, j, e)
			sum += e
		}
		for j := 0; j < cols; j++ {
			out.Set(i, j, out.At(i, j)/sum)
		}
	}
	return out
}

// CrossEntropy returns the mean negative log-likelihood of the true classes
// under row-wise softmax and the gradient w.r.t. the logits. Rows with class
// -1 (missing) contribute nothing.
func CrossEntropy(logits *mat.Dense, classes []int) (float64, *mat.Dense) {
	rows, cols := logits.Dims()
	probs := Softmax(logits)
	grad := mat.NewDense(rows, cols, nil)
	valid := 0
	for _, c := range classes {
		if c >= 0 {
			valid++
		}
	}
	if valid == 0 {
		return 0, grad
	}
	loss := 0.0
	inv := 1 / float64(valid)
	for i := 0; i < rows; i++ {
		c := classes[i]
		if c < 0 {
			continue
		}
		p := probs.At(i, c)
		if p < 1e-12 {
			p = 1e-12
		}
		loss -= math.Log(p)
		for j := 0; j < cols; j++ {
			g := probs.At(i, j)
			if j == c {
				g -= 1
			}
			grad.Set(i, j, g*inv)
		}
	}
	return loss * inv, grad
}

// BCE returns the mean binary cross-entropy between a sigmoid reconstruction
// and its target matrix, with the gradient w.r.t. pred.
func BCE(pred, target *mat.Dense) (float64, *mat.Dense) {
	rows, cols := pred.Dims()
	grad := mat.NewDense(rows, cols, nil)
	n := float64(rows * cols)
	loss := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := math.Min(math.Max(pred.At(i, j), 1e-12), 1-1e-12)
			t := target.At(i, j)
			loss -= t*math.Log(p) + (1-t)*math.Log(1-p)
			grad.Set(i, j, (p-t)/(p*(1-p)*n))
		}
	}
	return loss / n, grad
}

// KL returns the KL divergence of N(mean, exp(logVar)) from the unit
// Gaussian, averaged over the batch, with gradients w.r.t. mean and logVar.
func KL(mean, logVar *mat.Dense) (float64, *mat.Dense, *mat.Dense) {
	rows, cols := mean.Dims()
	dMean := mat.NewDense(rows, cols, nil)
	dLogVar := mat.NewDense(rows, cols, nil)
	m := float64(rows)
	loss := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			mu := mean.At(i, j)
			lv := logVar.At(i, j)
			loss += -0.5 * (1 + lv - mu*mu - math.Exp(lv))
			dMean.Set(i, j, mu/m)
			dLogVar.Set(i, j, 0.5*(math.Exp(lv)-1)/m)
		}
	}
	return loss / m, dMean, dLogVar
}

// TripletMargin returns the margin ranking loss over squared Euclidean
// distances of (anchor, positive, negative) embeddings and gradients w.r.t.
// each of the three matrices.
func TripletMargin(anchor, positive, negative *mat.Dense, margin float64) (float64, *mat.Dense, *mat.Dense, *mat.Dense) {
	rows, cols := anchor.Dims()
	dA := mat.NewDense(rows, cols, nil)
	dP := mat.NewDense(rows, cols, nil)
	dN := mat.NewDense(rows, cols, nil)
	m := float64(rows)
	loss := 0.0
	for i := 0; i < rows; i++ {
		dap, dan := 0.0, 0.0
		for j := 0; j < cols; j++ {
			ap := anchor.At(i, j) - positive.At(i, j)
			an := anchor.At(i, j) - negative.At(i, j)
			dap += ap * ap
			dan += an * an
		}
		l := dap - dan + margin
		if l <= 0 {
			continue
		}
		loss += l
		for j := 0; j < cols; j++ {
			ap := anchor.At(i, j) - positive.At(i, j)
			an := anchor.At(i, j) - negative.At(i, j)
			dA.Set(i, j, 2*(ap-an)/m)
			dP.Set(i, j, -2*ap/m)
			dN.Set(i, j, 2*an/m)
		}
	}
	return loss / m, dA, dP, dN
}
