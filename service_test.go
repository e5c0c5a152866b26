package fuseomics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omixlab/fuseomics/model"
	"github.com/omixlab/fuseomics/progress"
)

// writeStudy materializes a small two-class study: the first feature
// separates the classes, the rest is structured noise.
func writeStudy(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(split string, nSamples int, sample func(int) string) {
		assert.Nil(t, os.MkdirAll(filepath.Join(dir, split), 0o755))

		var gex strings.Builder
		for j := 0; j < nSamples; j++ {
			gex.WriteString("," + sample(j))
		}
		gex.WriteString("\n")
		for k := 1; k <= 6; k++ {
			gex.WriteString(fmt.Sprintf("g%d", k))
			for j := 0; j < nSamples; j++ {
				value := float64((j*k)%7 + 1)
				if k == 1 {
					// Class signal: the second half of each split sits on a
					// shifted scale.
					value = float64(10 + j)
					if j >= nSamples/2 {
						value += 50
					}
				}
				gex.WriteString(fmt.Sprintf(",%g", value))
			}
			gex.WriteString("\n")
		}
		assert.Nil(t, os.WriteFile(filepath.Join(dir, split, "gex.csv"), []byte(gex.String()), 0o644))

		var clin strings.Builder
		clin.WriteString(",Subtype,Age\n")
		for j := 0; j < nSamples; j++ {
			class := "A"
			if j >= nSamples/2 {
				class = "B"
			}
			clin.WriteString(fmt.Sprintf("%s,%s,%d\n", sample(j), class, 20+j))
		}
		assert.Nil(t, os.WriteFile(filepath.Join(dir, split, "clin.csv"), []byte(clin.String()), 0o644))
	}

	write("train", 20, func(j int) string { return fmt.Sprintf("s%02d", j+1) })
	write("test", 6, func(j int) string { return fmt.Sprintf("t%d", j+1) })
	return dir
}

func studyConfig(t *testing.T, studyDir string) *Config {
	config := DefaultConfig()
	config.Data.Path = studyDir
	config.Data.DataTypes = []string{"gex"}
	config.Data.Targets = []string{"Subtype", "Age"}
	config.Features.MinFeatures = 4
	config.Features.TopPercentile = 50
	config.Features.KNeighbors = 3
	config.Model.HiddenDim = 8
	config.Model.LatentDim = 4
	config.Model.Dropout = 0
	config.HPO.Iterations = 0
	config.Training.Epochs = 10
	config.Training.BatchSize = 8
	config.Evaluation.Baselines = true
	config.Output.Dir = filepath.Join(t.TempDir(), "out")
	config.Output.Plot = false
	return config
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	srv := New()
	config := studyConfig(t, writeStudy(t))

	record, err := srv.Runtime().Run(ctx, config)
	assert.Nil(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, model.DirectPredName, record.Model)
	assert.EqualValues(t, []string{"Subtype", "Age"}, record.Targets)
	assert.True(t, record.CompletedAt.After(record.StartedAt) || record.CompletedAt.Equal(record.StartedAt))
	assert.Equal(t, 4.0, record.Hyperparameters["latentDim"])

	// Metrics cover both endpoints and the baselines on the test split.
	assert.Contains(t, record.Metrics, "Subtype")
	assert.Contains(t, record.Metrics, "Age")
	assert.Contains(t, record.Metrics["Subtype"], "balancedAccuracy")
	assert.Contains(t, record.Metrics["Subtype"], "baseline.majority.balancedAccuracy")
	assert.Contains(t, record.Metrics["Age"], "mse")
	assert.Contains(t, record.Metrics["Age"], "baseline.knn.mse")

	// Artifacts.
	for _, name := range []string{"job.predictions.csv", "job.embeddings.csv", "job.stats.yaml"} {
		_, err := os.Stat(filepath.Join(config.Output.Dir, name))
		assert.Nil(t, err, name)
	}
	data, err := os.ReadFile(filepath.Join(config.Output.Dir, "job.predictions.csv"))
	assert.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(data), "sample,target,prediction,probability"))

	// The record is persisted and retrievable.
	loaded, err := srv.Runtime().Record(ctx, record.ID)
	assert.Nil(t, err)
	assert.Equal(t, record.Model, loaded.Model)

	records, err := srv.Runtime().Records(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(records))
}

func TestService_RunWithHPO(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var lastSnapshot progress.Tracker
	srv := New(WithProgressListener(func(snapshot progress.Tracker) {
		mu.Lock()
		lastSnapshot = snapshot
		mu.Unlock()
	}))
	config := studyConfig(t, writeStudy(t))
	config.HPO.Iterations = 2
	config.HPO.Workers = 2
	config.Training.Epochs = 3
	config.Evaluation.Baselines = false

	record, err := srv.Runtime().Run(ctx, config)
	assert.Nil(t, err)
	// The best trial's hyperparameters replace the config fallbacks.
	assert.NotEqual(t, 4.0, record.Hyperparameters["latentDim"])
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, lastSnapshot.Trials)
	assert.Equal(t, 2, lastSnapshot.TrialsCompleted+lastSnapshot.TrialsFailed)
}

func TestService_RunInvalidConfig(t *testing.T) {
	srv := New()
	_, err := srv.Runtime().Run(context.Background(), DefaultConfig())
	assert.NotNil(t, err)
}

func TestService_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	configYAML := `
data:
  path: /data/study
  dataTypes: [gex, cnv]
  targets: [Subtype]
training:
  epochs: 25
`
	location := filepath.Join(dir, "run.yaml")
	assert.Nil(t, os.WriteFile(location, []byte(configYAML), 0o644))

	srv := New()
	config, err := srv.LoadConfig(context.Background(), location)
	assert.Nil(t, err)
	assert.Equal(t, "/data/study", config.Data.Path)
	assert.EqualValues(t, []string{"gex", "cnv"}, config.Data.DataTypes)
	assert.Equal(t, 25, config.Training.Epochs)
	// Unset fields keep their defaults.
	assert.Equal(t, model.DirectPredName, config.Model.Class)
	assert.Equal(t, 0.2, config.Data.ValFraction)

	_, err = srv.LoadConfig(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.NotNil(t, err)
}
