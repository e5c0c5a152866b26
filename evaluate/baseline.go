package evaluate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/omixlab/fuseomics/omics"
)

// BaselineResult holds the metrics of one baseline predictor for one target.
type BaselineResult struct {
	Method         string                 `json:"method" yaml:"method"`
	Target         string                 `json:"target" yaml:"target"`
	Classification *ClassificationMetrics `json:"classification,omitempty" yaml:"classification,omitempty"`
	Regression     *RegressionMetrics     `json:"regression,omitempty" yaml:"regression,omitempty"`
}

// Baselines evaluates constant and k-nearest-neighbour predictors for every
// target of the training set against the test set. Constant baselines predict
// the training mean (regression) or majority class (classification); kNN uses
// Euclidean distance on the concatenated feature matrix with k=5.
func Baselines(train, test *omics.Dataset) ([]BaselineResult, error) {
	xTrain := train.Concat()
	xTest := test.Concat()
	var results []BaselineResult
	names := make([]string, 0, len(train.Targets))
	for name := range train.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		trainVar := train.Targets[name]
		testVar, ok := test.Targets[name]
		if !ok {
			continue
		}
		switch trainVar.Kind {
		case omics.Categorical:
			constant, err := majorityBaseline(trainVar, testVar)
			if err == nil {
				results = append(results, constant)
			}
			knn, err := knnClassify(xTrain, xTest, trainVar, testVar, defaultK)
			if err == nil {
				results = append(results, knn)
			}
		case omics.Numerical:
			constant, err := meanBaseline(trainVar, testVar)
			if err == nil {
				results = append(results, constant)
			}
			knn, err := knnRegress(xTrain, xTest, trainVar, testVar, defaultK)
			if err == nil {
				results = append(results, knn)
			}
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no target could be baselined")
	}
	return results, nil
}

const defaultK = 5

func majorityBaseline(trainVar, testVar *omics.Variable) (BaselineResult, error) {
	counts := make(map[int]int)
	for i := range trainVar.Values {
		if c := trainVar.Class(i); c >= 0 {
			counts[c]++
		}
	}
	majority, best := -1, -1
	for c, n := range counts {
		if n > best || (n == best && c < majority) {
			majority, best = c, n
		}
	}
	if majority < 0 {
		return BaselineResult{}, fmt.Errorf("target %v has no observed classes", trainVar.Name)
	}
	yTrue := make([]int, len(testVar.Values))
	yPred := make([]int, len(testVar.Values))
	for i := range testVar.Values {
		yTrue[i] = testVar.Class(i)
		yPred[i] = majority
	}
	m, err := Classification(yTrue, yPred, trainVar.NumClasses())
	if err != nil {
		return BaselineResult{}, err
	}
	return BaselineResult{Method: "majority", Target: trainVar.Name, Classification: &m}, nil
}

func meanBaseline(trainVar, testVar *omics.Variable) (BaselineResult, error) {
	sum, n := 0.0, 0
	for _, v := range trainVar.Values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return BaselineResult{}, fmt.Errorf("target %v has no observed values", trainVar.Name)
	}
	mean := sum / float64(n)
	yPred := make([]float64, len(testVar.Values))
	for i := range yPred {
		yPred[i] = mean
	}
	m, err := Regression(testVar.Values, yPred)
	if err != nil {
		return BaselineResult{}, err
	}
	return BaselineResult{Method: "mean", Target: trainVar.Name, Regression: &m}, nil
}

func knnClassify(xTrain, xTest *mat.Dense, trainVar, testVar *omics.Variable, k int) (BaselineResult, error) {
	var observed []int
	for i := range trainVar.Values {
		if trainVar.Class(i) >= 0 {
			observed = append(observed, i)
		}
	}
	if len(observed) == 0 {
		return BaselineResult{}, fmt.Errorf("target %v has no observed classes", trainVar.Name)
	}
	rows, _ := xTest.Dims()
	yTrue := make([]int, rows)
	yPred := make([]int, rows)
	for i := 0; i < rows; i++ {
		yTrue[i] = testVar.Class(i)
		neighbours := nearest(xTrain, xTest.RawRowView(i), observed, k)
		votes := make(map[int]int)
		for _, j := range neighbours {
			votes[trainVar.Class(j)]++
		}
		best, bestVotes := -1, -1
		for c, n := range votes {
			if n > bestVotes || (n == bestVotes && c < best) {
				best, bestVotes = c, n
			}
		}
		yPred[i] = best
	}
	m, err := Classification(yTrue, yPred, trainVar.NumClasses())
	if err != nil {
		return BaselineResult{}, err
	}
	return BaselineResult{Method: "knn", Target: trainVar.Name, Classification: &m}, nil
}

func knnRegress(xTrain, xTest *mat.Dense, trainVar, testVar *omics.Variable, k int) (BaselineResult, error) {
	var observed []int
	for i, v := range trainVar.Values {
		if !math.IsNaN(v) {
			observed = append(observed, i)
		}
	}
	if len(observed) == 0 {
		return BaselineResult{}, fmt.Errorf("target %v has no observed values", trainVar.Name)
	}
	rows, _ := xTest.Dims()
	yPred := make([]float64, rows)
	for i := 0; i < rows; i++ {
		neighbours := nearest(xTrain, xTest.RawRowView(i), observed, k)
		sum := 0.0
		for _, j := range neighbours {
			sum += trainVar.Values[j]
		}
		yPred[i] = sum / float64(len(neighbours))
	}
	m, err := Regression(testVar.Values, yPred)
	if err != nil {
		return BaselineResult{}, err
	}
	return BaselineResult{Method: "knn", Target: trainVar.Name, Regression: &m}, nil
}

// nearest returns the indices of the k training samples (restricted to
// candidates) closest to query by Euclidean distance.
func nearest(xTrain *mat.Dense, query []float64, candidates []int, k int) []int {
	type scored struct {
		index int
		dist  float64
	}
	all := make([]scored, 0, len(candidates))
	for _, i := range candidates {
		row := xTrain.RawRowView(i)
		d := 0.0
		for j := range row {
			diff := row[j] - query[j]
			d += diff * diff
		}
		all = append(all, scored{index: i, dist: d})
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].dist != all[b].dist {
			return all[a].dist < all[b].dist
		}
		return all[a].index < all[b].index
	})
	if k > len(all) {
		k = len(all)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].index
	}
	return out
}
