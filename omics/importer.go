package omics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gonum.org/v1/gonum/mat"
)

// clinFile is the clinical annotation file expected next to the omic layers.
const clinFile = "clin.csv"

// Importer loads a multi-omics study from a base URL holding a train/ folder
// and optionally a test/ folder. Each folder contains one CSV per omic layer
// (rows = features, columns = samples) plus clin.csv (rows = samples,
// columns = clinical variables). The base URL can point to any scheme
// supported by afs (file, embed, s3, ...).
type Importer struct {
	fs        afs.Service
	baseURL   string
	dataTypes []string
	targets   []string
	fsOptions []storage.Option
}

// ImporterOption customizes an Importer.
type ImporterOption func(*Importer)

// WithFS overrides the afs service (used by tests with embedded data).
func WithFS(fs afs.Service) ImporterOption {
	return func(i *Importer) { i.fs = fs }
}

// WithFsOptions passes storage options to every afs call.
func WithFsOptions(options ...storage.Option) ImporterOption {
	return func(i *Importer) { i.fsOptions = options }
}

// NewImporter creates an importer for the given base URL, omic layer names
// and target variable names.
func NewImporter(baseURL string, dataTypes, targets []string, options ...ImporterOption) *Importer {
	ret := &Importer{baseURL: baseURL, dataTypes: dataTypes, targets: targets}
	for _, option := range options {
		option(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	return ret
}

// Import loads the train split and, when a test/ folder exists, the test
// split. Both splits carry the requested layers and targets; sample rows are
// aligned across layers.
func (i *Importer) Import(ctx context.Context) (train, test *Dataset, err error) {
	trainURL := url.Join(i.baseURL, "train")
	testURL := url.Join(i.baseURL, "test")

	if err = i.validateSplit(ctx, trainURL); err != nil {
		return nil, nil, err
	}
	hasTest, err := i.fs.Exists(ctx, url.Join(testURL, clinFile), i.fsOptions...)
	if err != nil {
		return nil, nil, err
	}
	if hasTest {
		if err = i.validateSplit(ctx, testURL); err != nil {
			return nil, nil, err
		}
	}

	if train, err = i.loadSplit(ctx, trainURL); err != nil {
		return nil, nil, fmt.Errorf("failed to load train split: %w", err)
	}
	if hasTest {
		if test, err = i.loadSplit(ctx, testURL); err != nil {
			return nil, nil, fmt.Errorf("failed to load test split: %w", err)
		}
		// Categorical level encodings must agree across splits.
		if err = alignLevels(train, test); err != nil {
			return nil, nil, err
		}
	}
	return train, test, nil
}

// validateSplit ensures every required file is present, reporting all missing
// files at once.
func (i *Importer) validateSplit(ctx context.Context, splitURL string) error {
	required := make([]string, 0, len(i.dataTypes)+1)
	required = append(required, clinFile)
	for _, dt := range i.dataTypes {
		required = append(required, dt+".csv")
	}
	var missing []string
	for _, name := range required {
		exists, err := i.fs.Exists(ctx, url.Join(splitURL, name), i.fsOptions...)
		if err != nil {
			return err
		}
		if !exists {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing files in %v: %v", splitURL, strings.Join(missing, ", "))
	}
	return nil
}

func (i *Importer) loadSplit(ctx context.Context, splitURL string) (*Dataset, error) {
	layers := make(map[string]*layerTable, len(i.dataTypes))
	for _, dt := range i.dataTypes {
		table, err := i.readLayer(ctx, url.Join(splitURL, dt+".csv"))
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", dt, err)
		}
		layers[dt] = table
	}
	clin, err := i.readClin(ctx, url.Join(splitURL, clinFile))
	if err != nil {
		return nil, err
	}
	return assemble(layers, clin, i.targets)
}

// layerTable is a parsed omic layer CSV before sample alignment.
type layerTable struct {
	features []string
	samples  map[string]int
	// values[f][s] in file orientation: rows features, columns samples
	values [][]float64
}

func (i *Importer) readLayer(ctx context.Context, URL string) (*layerTable, error) {
	records, err := i.readCSV(ctx, URL)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 || len(records[0]) < 2 {
		return nil, fmt.Errorf("%v: matrix is empty", URL)
	}
	header := records[0][1:]
	table := &layerTable{samples: make(map[string]int, len(header))}
	for idx, sample := range header {
		table.samples[sample] = idx
	}
	for _, record := range records[1:] {
		if len(record) != len(header)+1 {
			return nil, fmt.Errorf("%v: row %q has %d values, expected %d", URL, record[0], len(record)-1, len(header))
		}
		row := make([]float64, len(header))
		for j, cell := range record[1:] {
			row[j] = parseCell(cell)
		}
		table.features = append(table.features, record[0])
		table.values = append(table.values, row)
	}
	return table, nil
}

// clinTable holds raw clinical annotations keyed by variable name.
type clinTable struct {
	samples map[string]int
	columns map[string][]string
}

func (i *Importer) readClin(ctx context.Context, URL string) (*clinTable, error) {
	records, err := i.readCSV(ctx, URL)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 || len(records[0]) < 2 {
		return nil, fmt.Errorf("%v: annotation is empty", URL)
	}
	header := records[0][1:]
	table := &clinTable{
		samples: make(map[string]int, len(records)-1),
		columns: make(map[string][]string, len(header)),
	}
	for _, name := range header {
		table.columns[name] = make([]string, len(records)-1)
	}
	for rowIdx, record := range records[1:] {
		if len(record) != len(header)+1 {
			return nil, fmt.Errorf("%v: row %q has %d values, expected %d", URL, record[0], len(record)-1, len(header))
		}
		table.samples[record[0]] = rowIdx
		for j, name := range header {
			table.columns[name][rowIdx] = record[j+1]
		}
	}
	return table, nil
}

func (i *Importer) readCSV(ctx context.Context, URL string) ([][]string, error) {
	data, err := i.fs.DownloadWithURL(ctx, URL, i.fsOptions...)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(data))
	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%v: %w", URL, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// assemble aligns layers and clinical targets on the shared sample set and
// transposes layer matrices to samples x features.
func assemble(layers map[string]*layerTable, clin *clinTable, targets []string) (*Dataset, error) {
	for _, name := range targets {
		if _, ok := clin.columns[name]; !ok {
			return nil, fmt.Errorf("target variable %q not found in %v", name, clinFile)
		}
	}

	// Samples present in every layer.
	var shared []string
	for sample := range clin.samples {
		inAll := true
		for _, table := range layers {
			if _, ok := table.samples[sample]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, sample)
		}
	}
	sort.Strings(shared)

	// Keep samples with at least one observed target.
	samples := make([]string, 0, len(shared))
	for _, sample := range shared {
		row := clin.samples[sample]
		for _, name := range targets {
			if !isMissing(clin.columns[name][row]) {
				samples = append(samples, sample)
				break
			}
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples shared between omic layers and observed targets")
	}

	ds := &Dataset{
		Layers:   make(map[string]*mat.Dense, len(layers)),
		Features: make(map[string][]string, len(layers)),
		Samples:  samples,
		Targets:  make(map[string]*Variable, len(targets)),
	}
	for name, table := range layers {
		m := mat.NewDense(len(samples), len(table.features), nil)
		for i, sample := range samples {
			col := table.samples[sample]
			for f := range table.features {
				m.Set(i, f, table.values[f][col])
			}
		}
		ds.Layers[name] = m
		ds.Features[name] = table.features
	}
	for _, name := range targets {
		variable, err := encodeVariable(name, clin, samples)
		if err != nil {
			return nil, err
		}
		ds.Targets[name] = variable
	}
	return ds, nil
}

// encodeVariable infers the variable kind: numerical when every observed
// value parses as a float, categorical otherwise (levels sorted, encoded as
// level indices).
func encodeVariable(name string, clin *clinTable, samples []string) (*Variable, error) {
	raw := make([]string, len(samples))
	numerical := true
	for i, sample := range samples {
		raw[i] = clin.columns[name][clin.samples[sample]]
		if isMissing(raw[i]) {
			continue
		}
		if _, err := strconv.ParseFloat(raw[i], 64); err != nil {
			numerical = false
		}
	}
	v := &Variable{Name: name, Values: make([]float64, len(samples))}
	if numerical {
		v.Kind = Numerical
		for i, cell := range raw {
			v.Values[i] = parseCell(cell)
		}
		return v, nil
	}
	v.Kind = Categorical
	levelSet := map[string]bool{}
	for _, cell := range raw {
		if !isMissing(cell) {
			levelSet[cell] = true
		}
	}
	for level := range levelSet {
		v.Levels = append(v.Levels, level)
	}
	sort.Strings(v.Levels)
	if len(v.Levels) < 2 {
		return nil, fmt.Errorf("categorical target %q has %d observed level(s), need at least 2", name, len(v.Levels))
	}
	index := make(map[string]int, len(v.Levels))
	for i, level := range v.Levels {
		index[level] = i
	}
	for i, cell := range raw {
		if isMissing(cell) {
			v.Values[i] = math.NaN()
		} else {
			v.Values[i] = float64(index[cell])
		}
	}
	return v, nil
}

// alignLevels re-encodes categorical test targets with the train level
// indices. Test-only levels become missing values.
func alignLevels(train, test *Dataset) error {
	for name, tv := range train.Targets {
		sv, ok := test.Targets[name]
		if !ok || tv.Kind != Categorical {
			continue
		}
		index := make(map[string]int, len(tv.Levels))
		for i, level := range tv.Levels {
			index[level] = i
		}
		for i := range sv.Values {
			if math.IsNaN(sv.Values[i]) {
				continue
			}
			level := sv.Levels[int(sv.Values[i])]
			if code, ok := index[level]; ok {
				sv.Values[i] = float64(code)
			} else {
				sv.Values[i] = math.NaN()
			}
		}
		sv.Levels = tv.Levels
		sv.Kind = Categorical
	}
	return nil
}

func parseCell(cell string) float64 {
	if isMissing(cell) {
		return math.NaN()
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return math.NaN()
	}
	return value
}

func isMissing(cell string) bool {
	switch strings.TrimSpace(strings.ToLower(cell)) {
	case "", "na", "nan", "none", "null":
		return true
	}
	return false
}
