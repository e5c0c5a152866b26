package fuseomics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/omixlab/fuseomics/evaluate"
	"github.com/omixlab/fuseomics/model"
	"github.com/omixlab/fuseomics/omics"
	"github.com/omixlab/fuseomics/tracing"
	"github.com/omixlab/fuseomics/viz"
)

// export writes run artifacts to the output dir: per-sample predictions,
// sample embeddings, the metrics/record YAML and, when enabled, a 2D
// embedding scatter.
func (r *Runtime) export(ctx context.Context, config *Config, record *model.RunRecord, arch model.Architecture, ds *omics.Dataset, groupVar *omics.Variable) (err error) {
	ctx, span := tracing.StartSpan(ctx, "runtime.Export", config.Output.Dir)
	defer func() { tracing.EndSpan(span, err) }()

	fs := afs.New()
	baseURL := url.Normalize(config.Output.Dir, file.Scheme)
	if exists, _ := fs.Exists(ctx, baseURL); !exists {
		if err = fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	upload := func(name string, data []byte) error {
		URL := url.Join(baseURL, config.Output.Prefix+"."+name)
		return fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
	}

	predictions, err := predictionsCSV(arch, ds)
	if err != nil {
		return err
	}
	if err = upload("predictions.csv", predictions); err != nil {
		return err
	}

	embedding := arch.Embed(ds)
	embeddings, err := embeddingsCSV(ds.Samples, embedding)
	if err != nil {
		return err
	}
	if err = upload("embeddings.csv", embeddings); err != nil {
		return err
	}

	stats, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err = upload("stats.yaml", stats); err != nil {
		return err
	}

	// The plot renderer writes through the OS, so remote output schemes only
	// get the CSV/YAML artifacts.
	if config.Output.Plot && !strings.Contains(config.Output.Dir, "://") {
		if err = exportPlot(config, record, embedding, groupVar); err != nil {
			return err
		}
	}
	return nil
}

func exportPlot(config *Config, record *model.RunRecord, embedding *mat.Dense, groupVar *omics.Variable) error {
	_, cols := embedding.Dims()
	projected := embedding
	if cols > 2 {
		var err error
		if projected, err = viz.PCA(embedding); err != nil {
			return fmt.Errorf("failed to project embeddings: %w", err)
		}
	} else if cols < 2 {
		return nil
	}
	title := fmt.Sprintf("%s embeddings", record.Model)
	target := path.Join(config.Output.Dir, config.Output.Prefix+".embeddings.png")
	return viz.ScatterEmbeddings(projected, groupVar, title, target)
}

// predictionsCSV renders one row per sample and target; categorical targets
// are reported as the predicted level plus its probability.
func predictionsCSV(arch model.Architecture, ds *omics.Dataset) ([]byte, error) {
	predictions := arch.Predict(ds)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"sample", "target", "prediction", "probability"}); err != nil {
		return nil, err
	}
	for _, name := range targetNames(ds) {
		v := ds.Targets[name]
		pred, ok := predictions[name]
		if !ok {
			continue
		}
		var classes []int
		if v.Kind == omics.Categorical {
			classes = evaluate.Argmax(matRows(pred))
		}
		for i, sample := range ds.Samples {
			row := []string{sample, name, "", ""}
			if v.Kind == omics.Categorical {
				class := classes[i]
				row[2] = v.Levels[class]
				row[3] = strconv.FormatFloat(pred.At(i, class), 'f', 6, 64)
			} else {
				row[2] = strconv.FormatFloat(pred.At(i, 0), 'f', 6, 64)
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func embeddingsCSV(samples []string, embedding *mat.Dense) ([]byte, error) {
	_, cols := embedding.Dims()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, 0, cols+1)
	header = append(header, "sample")
	for j := 0; j < cols; j++ {
		header = append(header, fmt.Sprintf("e%d", j+1))
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	row := make([]string, cols+1)
	for i, sample := range samples {
		row[0] = sample
		for j := 0; j < cols; j++ {
			row[j+1] = strconv.FormatFloat(embedding.At(i, j), 'f', 6, 64)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func targetNames(ds *omics.Dataset) []string {
	names := make([]string, 0, len(ds.Targets))
	for name := range ds.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
