// Package progress provides a lightweight tracker for aggregated experiment
// counters (epochs, HPO trials). The tracker instance is shared by the
// trainer and the HPO search; every component updates the counters atomically
// via the Delta helper without requiring a global registry.
package progress

import (
	"sync"
	"time"
)

// Delta is an incremental counter change emitted by the trainer or the HPO
// worker pool. Fields are signed so corrections can decrement.
type Delta struct {
	Epochs          int
	EpochsCompleted int
	Trials          int
	TrialsCompleted int
	TrialsFailed    int
}

// Tracker keeps aggregated counters for one experiment run. It is safe for
// concurrent use.
type Tracker struct {
	// Identification, filled when the run starts.
	RunID     string
	Model     string
	StartedAt time.Time

	// Counters, modified via Update().
	Epochs          int
	EpochsCompleted int
	Trials          int
	TrialsCompleted int
	TrialsFailed    int

	sync.Mutex
	onChange func(Tracker)
}

// Update applies the supplied delta. If an onChange callback is registered it
// is invoked with a copy of the updated tracker outside the critical section
// so slow consumers (logging, encoding) never block training.
func (t *Tracker) Update(d Delta) {
	if t == nil {
		return
	}
	t.Lock()
	t.Epochs += d.Epochs
	t.EpochsCompleted += d.EpochsCompleted
	t.Trials += d.Trials
	t.TrialsCompleted += d.TrialsCompleted
	t.TrialsFailed += d.TrialsFailed

	snapshot := *t
	cb := t.onChange
	t.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy for read-only inspection.
func (t *Tracker) Snapshot() Tracker {
	if t == nil {
		return Tracker{}
	}
	t.Lock()
	defer t.Unlock()
	return *t
}

// OnChange registers a callback invoked after every update.
func (t *Tracker) OnChange(cb func(Tracker)) {
	t.Lock()
	defer t.Unlock()
	t.onChange = cb
}
