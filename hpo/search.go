package hpo

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/omixlab/fuseomics/omics"
	"github.com/omixlab/fuseomics/progress"
	"github.com/omixlab/fuseomics/service/messaging"
	"github.com/omixlab/fuseomics/service/messaging/memory"
	"github.com/omixlab/fuseomics/tracing"
)

// ErrNoTrials is returned when every trial failed.
var ErrNoTrials = fmt.Errorf("hpo: no successful trials")

// Evaluator trains one candidate and returns its validation loss. The search
// treats it as a black box; the runtime wires it to the model builder and
// trainer.
type Evaluator func(ctx context.Context, c Candidate, train, val *omics.Dataset) (float64, error)

// Result is the outcome of one trial.
type Result struct {
	Candidate Candidate `json:"candidate" yaml:"candidate"`
	ValLoss   float64   `json:"valLoss" yaml:"valLoss"`
	Err       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Search runs random-search HPO with a queue-fed worker pool.
type Search struct {
	space      Space
	iterations int
	workers    int
	seed       int64
	tracker    *progress.Tracker
	queue      messaging.Queue[Candidate]
}

// SearchOption customizes a Search.
type SearchOption func(*Search)

// WithSpace overrides the default search space.
func WithSpace(space Space) SearchOption {
	return func(s *Search) { s.space = space }
}

// WithWorkers sets the number of concurrent trial workers.
func WithWorkers(workers int) SearchOption {
	return func(s *Search) { s.workers = workers }
}

// WithSeed makes candidate sampling deterministic.
func WithSeed(seed int64) SearchOption {
	return func(s *Search) { s.seed = seed }
}

// WithTracker attaches a progress tracker.
func WithTracker(tracker *progress.Tracker) SearchOption {
	return func(s *Search) { s.tracker = tracker }
}

// WithQueue overrides the trial dispatch queue.
func WithQueue(queue messaging.Queue[Candidate]) SearchOption {
	return func(s *Search) { s.queue = queue }
}

// NewSearch creates a Search over the given number of trials.
func NewSearch(iterations int, options ...SearchOption) *Search {
	s := &Search{
		space:      DefaultSpace(),
		iterations: iterations,
		workers:    1,
		seed:       42,
	}
	for _, option := range options {
		option(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.queue == nil {
		cfg := memory.DefaultConfig()
		if cfg.QueueBuffer < iterations {
			cfg.QueueBuffer = iterations
		}
		s.queue = memory.NewQueue[Candidate](cfg)
	}
	return s
}

// Run samples and evaluates all trials and returns the best result along
// with every trial outcome (ordered by trial index). Failed trials are
// recorded but not fatal unless all fail.
func (s *Search) Run(ctx context.Context, evaluate Evaluator, train, val *omics.Dataset) (*Result, []Result, error) {
	if s.iterations <= 0 {
		return nil, nil, fmt.Errorf("hpo: iterations must be > 0")
	}
	ctx, span := tracing.StartSpan(ctx, "hpo.Search", fmt.Sprintf("trials=%d", s.iterations))
	var runErr error
	defer func() { tracing.EndSpan(span, runErr) }()

	sampler := NewSampler(s.space, s.seed)
	for i := 0; i < s.iterations; i++ {
		candidate := sampler.Sample(i)
		if err := s.queue.Publish(ctx, &candidate); err != nil {
			runErr = err
			return nil, nil, err
		}
	}
	if s.tracker != nil {
		s.tracker.Update(progress.Delta{Trials: s.iterations})
	}

	results := make([]Result, s.iterations)
	var (
		wg        sync.WaitGroup
		remaining = make(chan struct{}, s.iterations)
	)
	for i := 0; i < s.iterations; i++ {
		remaining <- struct{}{}
	}
	close(remaining)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range remaining {
				msg, err := s.queue.Consume(workerCtx)
				if err != nil {
					return
				}
				candidate := *msg.T()
				_, trialSpan := tracing.StartSpan(workerCtx, "hpo.Trial", candidate.ID)
				loss, err := evaluate(workerCtx, candidate, train, val)
				tracing.EndSpan(trialSpan, err)
				result := Result{Candidate: candidate, ValLoss: loss}
				if err != nil {
					result.Err = err.Error()
					result.ValLoss = math.Inf(1)
					_ = msg.Nack(err)
					if s.tracker != nil {
						s.tracker.Update(progress.Delta{TrialsFailed: 1})
					}
				} else {
					_ = msg.Ack()
					if s.tracker != nil {
						s.tracker.Update(progress.Delta{TrialsCompleted: 1})
					}
				}
				results[candidate.Index] = result
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		runErr = err
		return nil, results, err
	}

	best := -1
	for i := range results {
		if results[i].Err != "" {
			continue
		}
		if best < 0 || results[i].ValLoss < results[best].ValLoss {
			best = i
		}
	}
	if best < 0 {
		runErr = ErrNoTrials
		return nil, results, ErrNoTrials
	}
	return &results[best], results, nil
}
