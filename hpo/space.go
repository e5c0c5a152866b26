// Package hpo implements random-search hyperparameter optimization: sampled
// candidates are dispatched through a message queue to a worker pool, each
// worker trains the candidate and scores it on validation loss, and the
// lowest-loss candidate wins.
package hpo

import (
	"math"
	"math/rand"

	"github.com/omixlab/fuseomics/internal/idgen"
)

// Space bounds the random search. Zero-valued fields inherit DefaultSpace.
type Space struct {
	LatentDims    []int      `json:"latentDims" yaml:"latentDims"`
	HiddenDims    []int      `json:"hiddenDims" yaml:"hiddenDims"`
	BatchSizes    []int      `json:"batchSizes" yaml:"batchSizes"`
	Dropouts      []float64  `json:"dropouts" yaml:"dropouts"`
	LearningRates [2]float64 `json:"learningRates" yaml:"learningRates"`
}

// DefaultSpace returns the stock search space.
func DefaultSpace() Space {
	return Space{
		LatentDims:    []int{16, 32, 64, 128},
		HiddenDims:    []int{32, 64, 128, 256},
		BatchSizes:    []int{16, 32, 64},
		Dropouts:      []float64{0.1, 0.2, 0.4},
		LearningRates: [2]float64{1e-4, 1e-1},
	}
}

func (s Space) withDefaults() Space {
	d := DefaultSpace()
	if len(s.LatentDims) == 0 {
		s.LatentDims = d.LatentDims
	}
	if len(s.HiddenDims) == 0 {
		s.HiddenDims = d.HiddenDims
	}
	if len(s.BatchSizes) == 0 {
		s.BatchSizes = d.BatchSizes
	}
	if len(s.Dropouts) == 0 {
		s.Dropouts = d.Dropouts
	}
	if s.LearningRates[0] <= 0 || s.LearningRates[1] <= 0 {
		s.LearningRates = d.LearningRates
	}
	return s
}

// Candidate is one sampled hyperparameter configuration.
type Candidate struct {
	ID           string  `json:"id" yaml:"id"`
	Index        int     `json:"index" yaml:"index"`
	LatentDim    int     `json:"latentDim" yaml:"latentDim"`
	HiddenDim    int     `json:"hiddenDim" yaml:"hiddenDim"`
	BatchSize    int     `json:"batchSize" yaml:"batchSize"`
	Dropout      float64 `json:"dropout" yaml:"dropout"`
	LearningRate float64 `json:"learningRate" yaml:"learningRate"`
}

// Sampler draws candidates from a space; the learning rate is log-uniform,
// all other dimensions are uniform over their grids.
type Sampler struct {
	space Space
	rng   *rand.Rand
}

// NewSampler creates a deterministic sampler.
func NewSampler(space Space, seed int64) *Sampler {
	return &Sampler{space: space.withDefaults(), rng: rand.New(rand.NewSource(seed))}
}

// Sample draws the next candidate.
func (s *Sampler) Sample(index int) Candidate {
	lo := math.Log(s.space.LearningRates[0])
	hi := math.Log(s.space.LearningRates[1])
	return Candidate{
		ID:           idgen.New(),
		Index:        index,
		LatentDim:    s.space.LatentDims[s.rng.Intn(len(s.space.LatentDims))],
		HiddenDim:    s.space.HiddenDims[s.rng.Intn(len(s.space.HiddenDims))],
		BatchSize:    s.space.BatchSizes[s.rng.Intn(len(s.space.BatchSizes))],
		Dropout:      s.space.Dropouts[s.rng.Intn(len(s.space.Dropouts))],
		LearningRate: math.Exp(lo + s.rng.Float64()*(hi-lo)),
	}
}
