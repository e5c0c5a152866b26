package omics

import (
	"fmt"
	"math/rand"
)

// Triplet references three sample indices: an anchor, a positive sharing the
// anchor's class and a negative from a different class.
type Triplet struct {
	Anchor, Positive, Negative int
}

// TripletSampler draws triplets from a categorical target variable. Train
// mode samples fresh positives/negatives every call; Fixed produces a
// deterministic triplet per sample for evaluation.
type TripletSampler struct {
	classes  []int
	byClass  map[int][]int
	observed []int
	rng      *rand.Rand
}

// NewTripletSampler indexes the dataset's samples by the classes of the
// given categorical target. Samples with a missing target are excluded.
func NewTripletSampler(v *Variable, seed int64) (*TripletSampler, error) {
	if v.Kind != Categorical {
		return nil, fmt.Errorf("triplet sampling requires a categorical target, %q is %v", v.Name, v.Kind)
	}
	s := &TripletSampler{
		byClass: map[int][]int{},
		rng:     rand.New(rand.NewSource(seed)),
	}
	for i := range v.Values {
		class := v.Class(i)
		if class < 0 {
			continue
		}
		if len(s.byClass[class]) == 0 {
			s.classes = append(s.classes, class)
		}
		s.byClass[class] = append(s.byClass[class], i)
		s.observed = append(s.observed, i)
	}
	if len(s.classes) < 2 {
		return nil, fmt.Errorf("triplet sampling requires at least 2 observed classes for %q, got %d", v.Name, len(s.classes))
	}
	// Every class needs a second member to draw a positive from.
	for class, members := range s.byClass {
		if len(members) < 2 {
			return nil, fmt.Errorf("class %d of %q has a single sample, cannot form triplets", class, v.Name)
		}
	}
	return s, nil
}

// Sample draws one random triplet anchored at the given observed sample.
func (s *TripletSampler) Sample(anchor int, class int) Triplet {
	members := s.byClass[class]
	positive := anchor
	for positive == anchor {
		positive = members[s.rng.Intn(len(members))]
	}
	other := class
	for other == class {
		other = s.classes[s.rng.Intn(len(s.classes))]
	}
	negatives := s.byClass[other]
	return Triplet{Anchor: anchor, Positive: positive, Negative: negatives[s.rng.Intn(len(negatives))]}
}

// Batch draws triplets for the given anchor indices using their classes from
// the variable.
func (s *TripletSampler) Batch(v *Variable, anchors []int) []Triplet {
	out := make([]Triplet, 0, len(anchors))
	for _, anchor := range anchors {
		class := v.Class(anchor)
		if class < 0 {
			continue
		}
		out = append(out, s.Sample(anchor, class))
	}
	return out
}

// Observed returns indices of all samples with an observed class.
func (s *TripletSampler) Observed() []int { return s.observed }

// Fixed generates one deterministic triplet per observed sample; evaluation
// uses a stable set so repeated runs are comparable.
func (s *TripletSampler) Fixed(v *Variable) []Triplet {
	rng := rand.New(rand.NewSource(42))
	out := make([]Triplet, 0, len(s.observed))
	for _, anchor := range s.observed {
		class := v.Class(anchor)
		members := s.byClass[class]
		positive := anchor
		for positive == anchor {
			positive = members[rng.Intn(len(members))]
		}
		other := class
		for other == class {
			other = s.classes[rng.Intn(len(s.classes))]
		}
		negatives := s.byClass[other]
		out = append(out, Triplet{Anchor: anchor, Positive: positive, Negative: negatives[rng.Intn(len(negatives))]})
	}
	return out
}
