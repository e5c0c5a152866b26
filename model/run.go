package model

import "time"

// RunRecord captures one completed modelling run: the chosen hyperparameters,
// training outcome and held-out metrics. Records are persisted through the
// dao services so past runs can be listed and compared.
type RunRecord struct {
	ID              string             `json:"id" yaml:"id"`
	Model           string             `json:"model" yaml:"model"`
	Targets         []string           `json:"targets" yaml:"targets"`
	StartedAt       time.Time          `json:"startedAt" yaml:"startedAt"`
	CompletedAt     time.Time          `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Hyperparameters map[string]float64 `json:"hyperparameters,omitempty" yaml:"hyperparameters,omitempty"`
	Epochs          int                `json:"epochs" yaml:"epochs"`
	BestEpoch       int                `json:"bestEpoch" yaml:"bestEpoch"`
	ValLoss         float64            `json:"valLoss" yaml:"valLoss"`

	// Metrics maps target name to metric name to value.
	Metrics map[string]map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Clone returns a deep copy so stored records stay isolated from caller
// mutation.
func (r *RunRecord) Clone() *RunRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Targets = append([]string(nil), r.Targets...)
	if r.Hyperparameters != nil {
		clone.Hyperparameters = make(map[string]float64, len(r.Hyperparameters))
		for k, v := range r.Hyperparameters {
			clone.Hyperparameters[k] = v
		}
	}
	if r.Metrics != nil {
		clone.Metrics = make(map[string]map[string]float64, len(r.Metrics))
		for target, values := range r.Metrics {
			inner := make(map[string]float64, len(values))
			for k, v := range values {
				inner[k] = v
			}
			clone.Metrics[target] = inner
		}
	}
	return &clone
}
