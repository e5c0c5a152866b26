package model

import (
	"math"
	"math/rand"

	"github.com/omixlab/fuseomics/nn"
	"github.com/omixlab/fuseomics/omics"
	"gonum.org/v1/gonum/mat"
)

// SupervisedVAEName is the registry name of the variational architecture.
const SupervisedVAEName = "SupervisedVAE"

// Loss component keys reported by SupervisedVAE beside the target losses.
const (
	ReconLossKey = "reconstruction"
	KLLossKey    = "kl"
)

// SupervisedVAE learns a variational latent space over the concatenated omic
// layers, reconstructs the input from sampled latents, and supervises the
// latent mean with per-target MLP heads. The training objective is
// reconstruction + KL + (weighted) supervision.
type SupervisedVAE struct {
	spec    *Spec
	encoder *nn.Encoder
	decoder *nn.Sequential
	heads   map[string]*nn.Sequential

	weighter *nn.TaskWeighter
	rng      *rand.Rand
}

// NewSupervisedVAE builds the architecture for the given spec.
func NewSupervisedVAE(spec *Spec) *SupervisedVAE {
	rng := rand.New(rand.NewSource(spec.Seed))
	v := &SupervisedVAE{
		spec:    spec,
		encoder: nn.NewEncoder(spec.InputDim(), []int{spec.HiddenDim}, spec.LatentDim, rng),
		heads:   make(map[string]*nn.Sequential, len(spec.Targets)),
		rng:     rng,
	}
	// Gaussian reconstruction on standardized inputs: the decoder mirrors the
	// encoder stack but ends on a plain linear output.
	v.decoder = nn.NewSequential(
		nn.NewLinear(spec.LatentDim, spec.HiddenDim, rng),
		nn.NewLeakyReLU(0.2),
		nn.NewBatchNorm(spec.HiddenDim),
		nn.NewLinear(spec.HiddenDim, spec.InputDim(), rng),
	)
	for _, target := range spec.Targets {
		outDim := 1
		if target.Task == Classification {
			outDim = target.NumClasses
		}
		v.heads[target.Name] = nn.NewMLP(spec.LatentDim, spec.HiddenDim, outDim, spec.Dropout, rng)
	}
	if spec.LossWeighting && len(spec.Targets) > 1 {
		names := make([]string, len(spec.Targets))
		for i, t := range spec.Targets {
			names[i] = t.Name
		}
		v.weighter = nn.NewTaskWeighter(names)
	}
	return v
}

func (v *SupervisedVAE) Name() string { return SupervisedVAEName }

func (v *SupervisedVAE) Params() []*nn.Param {
	out := v.encoder.Params()
	out = append(out, v.decoder.Params()...)
	for _, target := range v.spec.Targets {
		out = append(out, v.heads[target.Name].Params()...)
	}
	if v.weighter != nil {
		out = append(out, v.weighter.Params()...)
	}
	return out
}

// reconLoss is the mean squared reconstruction error over all matrix cells
// with its gradient.
func reconLoss(pred, target *mat.Dense) (float64, *mat.Dense) {
	rows, cols := pred.Dims()
	grad := mat.NewDense(rows, cols, nil)
	n := float64(rows * cols)
	loss := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := pred.At(i, j) - target.At(i, j)
			loss += d * d
			grad.Set(i, j, 2*d/n)
		}
	}
	return loss / n, grad
}

func (v *SupervisedVAE) TrainStep(b *Batch) (float64, map[string]float64) {
	x := concatBatch(v.spec, b)
	mean, logVar := v.encoder.Forward(x, true)
	rows, cols := mean.Dims()

	// Reparameterization: z = mean + exp(logVar/2) * eps.
	eps := mat.NewDense(rows, cols, nil)
	sigma := mat.NewDense(rows, cols, nil)
	z := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			e := v.rng.NormFloat64()
			s := math.Exp(0.5 * logVar.At(i, j))
			eps.Set(i, j, e)
			sigma.Set(i, j, s)
			z.Set(i, j, mean.At(i, j)+s*e)
		}
	}

	losses := make(map[string]float64, len(v.spec.Targets)+2)
	dz := mat.NewDense(rows, cols, nil)

	xHat := v.decoder.Forward(z, true)
	recon, dXHat := reconLoss(xHat, x)
	losses[ReconLossKey] = recon
	addScaled(dz, v.decoder.Backward(dXHat), 1)

	kl, dMeanKL, dLogVarKL := nn.KL(mean, logVar)
	losses[KLLossKey] = kl

	total := recon + kl
	for _, target := range v.spec.Targets {
		head := v.heads[target.Name]
		out := head.Forward(z, true)
		loss, grad := headLoss(target, out, b)
		losses[target.Name] = loss
		scale := 1.0
		if v.weighter != nil {
			scale = v.weighter.Scale(target.Name, loss)
			total += v.weighter.Weighted(target.Name, loss)
		} else {
			total += loss
		}
		grad.Scale(scale, grad)
		addScaled(dz, head.Backward(grad), 1)
	}

	// dz/dmean = 1, dz/dlogVar = 0.5 * sigma * eps.
	dMean := mat.DenseCopyOf(dz)
	dMean.Add(dMean, dMeanKL)
	dLogVar := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dLogVar.Set(i, j, dz.At(i, j)*0.5*sigma.At(i, j)*eps.At(i, j)+dLogVarKL.At(i, j))
		}
	}
	v.encoder.Backward(dMean, dLogVar)
	return total, losses
}

func (v *SupervisedVAE) Loss(b *Batch) (float64, map[string]float64) {
	x := concatBatch(v.spec, b)
	mean, logVar := v.encoder.Forward(x, false)

	losses := make(map[string]float64, len(v.spec.Targets)+2)
	xHat := v.decoder.Forward(mean, false)
	recon, _ := reconLoss(xHat, x)
	kl, _, _ := nn.KL(mean, logVar)
	losses[ReconLossKey] = recon
	losses[KLLossKey] = kl

	total := recon + kl
	for _, target := range v.spec.Targets {
		out := v.heads[target.Name].Forward(mean, false)
		loss, _ := headLoss(target, out, b)
		losses[target.Name] = loss
		if v.weighter != nil {
			total += v.weighter.Weighted(target.Name, loss)
		} else {
			total += loss
		}
	}
	return total, losses
}

func (v *SupervisedVAE) Predict(ds *omics.Dataset) map[string]*mat.Dense {
	b := NewBatch(ds, allIndices(ds.NumSamples()))
	mean, _ := v.encoder.Forward(concatBatch(v.spec, b), false)
	out := make(map[string]*mat.Dense, len(v.spec.Targets))
	for _, target := range v.spec.Targets {
		pred := v.heads[target.Name].Forward(mean, false)
		if target.Task == Classification {
			pred = nn.Softmax(pred)
		}
		out[target.Name] = pred
	}
	return out
}

// Embed returns the latent means.
func (v *SupervisedVAE) Embed(ds *omics.Dataset) *mat.Dense {
	b := NewBatch(ds, allIndices(ds.NumSamples()))
	mean, _ := v.encoder.Forward(concatBatch(v.spec, b), false)
	return mean
}
