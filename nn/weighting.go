package nn

import "math"

// TaskWeighter balances multi-task losses with learned homoscedastic
// uncertainty: total = sum_i exp(-s_i)*L_i + s_i where s_i is a trainable
// log-variance per task. Tasks with noisy targets are automatically
// down-weighted as their s grows.
type TaskWeighter struct {
	s map[string]*Param
}

// NewTaskWeighter creates one log-variance parameter per task name.
func NewTaskWeighter(tasks []string) *TaskWeighter {
	w := &TaskWeighter{s: make(map[string]*Param, len(tasks))}
	for _, task := range tasks {
		w.s[task] = NewParam(1, 1)
	}
	return w
}

// Scale returns the factor exp(-s) the task's loss gradient must be
// multiplied by, and accumulates the gradient of s itself for the given raw
// loss value.
func (w *TaskWeighter) Scale(task string, loss float64) float64 {
	p := w.s[task]
	factor := math.Exp(-p.Value.At(0, 0))
	p.Grad.Set(0, 0, p.Grad.At(0, 0)-factor*loss+1)
	return factor
}

// Weighted returns the weighted contribution of a raw task loss,
// exp(-s)*loss + s.
func (w *TaskWeighter) Weighted(task string, loss float64) float64 {
	s := w.s[task].Value.At(0, 0)
	return math.Exp(-s)*loss + s
}

// Params exposes the log-variance parameters to the optimizer.
func (w *TaskWeighter) Params() []*Param {
	out := make([]*Param, 0, len(w.s))
	for _, p := range w.s {
		out = append(out, p)
	}
	return out
}
