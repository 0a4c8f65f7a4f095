package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ForestParams are the hyperparameters of a RandomForestRegressor.
type ForestParams struct {
	NEstimators     int
	Bootstrap       bool
	MaxDepth        int    // 0 => no limit
	MaxFeatures     string // "auto", "sqrt", "log2", "none", an integer count or a fraction in (0, 1]
	MinSamplesLeaf  int
	MinSamplesSplit int
	RandomState     int64
}

// DefaultForestParams mirrors the training job's command-line defaults.
func DefaultForestParams() ForestParams {
	return ForestParams{
		NEstimators:     500,
		Bootstrap:       true,
		MaxDepth:        10,
		MaxFeatures:     "auto",
		MinSamplesLeaf:  4,
		MinSamplesSplit: 5,
		RandomState:     0,
	}
}

// RandomForestRegressor averages the predictions of decision trees grown on
// bootstrap samples of the training set.
type RandomForestRegressor struct {
	ForestParams

	// Fitted state, exported for gob.
	Estimators []*DecisionTreeRegressor
	NFeatures  int
}

var _ Regressor = (*RandomForestRegressor)(nil)

// RandomForestOption functional config for RandomForestRegressor
type RandomForestOption func(*RandomForestRegressor)

func WithParams(p ForestParams) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.ForestParams = p }
}
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}
func WithBootstrap(b bool) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.Bootstrap = b }
}
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.RandomState = seed }
}

// NewRandomForestRegressor initializes the forest with DefaultForestParams.
func NewRandomForestRegressor(opts ...RandomForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{ForestParams: DefaultForestParams()}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest. Hyperparameters are validated here, so a bad value
// surfaces as a fit error rather than at construction time.
func (rf *RandomForestRegressor) Fit(X mat.Matrix, y []float64) error {
	n, p := X.Dims()
	if n == 0 {
		return errors.New("randomforest: empty X")
	}
	if len(y) != n {
		return fmt.Errorf("randomforest: X has %d rows but y has %d values", n, len(y))
	}
	if rf.NEstimators < 1 {
		return fmt.Errorf("randomforest: n_estimators must be >= 1, got %d", rf.NEstimators)
	}
	k, err := ResolveMaxFeatures(rf.MaxFeatures, p)
	if err != nil {
		return fmt.Errorf("randomforest: %w", err)
	}
	cols, err := columnsOf(X)
	if err != nil {
		return fmt.Errorf("randomforest: %w", err)
	}
	if err := checkFinite(y); err != nil {
		return fmt.Errorf("randomforest: y %w", err)
	}

	// Seeds are drawn up front so the fitted forest does not depend on
	// goroutine scheduling.
	master := rand.New(rand.NewSource(rf.RandomState))
	seeds := make([]int64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*DecisionTreeRegressor, rf.NEstimators)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		i := i // per-iteration copy (Go 1.22 loopvar semantics under go 1.21)
		g.Go(func() error {
			treeRand := rand.New(rand.NewSource(seeds[i]))

			// Bootstrap sampling: an index slice, not a copy of the data.
			sampleIndices := make([]int, n)
			for j := range sampleIndices {
				if rf.Bootstrap {
					sampleIndices[j] = treeRand.Intn(n)
				} else {
					sampleIndices[j] = j
				}
			}

			tree := NewDecisionTreeRegressor(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(k),
				WithRandomState(treeRand.Int63()),
			)
			if err := tree.fitIndices(cols, y, sampleIndices); err != nil {
				return fmt.Errorf("randomforest: tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.Estimators = trees
	rf.NFeatures = p
	return nil
}

// Predict returns the mean prediction of all trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if len(rf.Estimators) == 0 {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	if p != rf.NFeatures {
		return nil, fmt.Errorf("randomforest: X has %d features, forest was fitted with %d", p, rf.NFeatures)
	}

	perTree := make([][]float64, len(rf.Estimators))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tree := range rf.Estimators {
		i, tree := i, tree // per-iteration copy (Go 1.22 loopvar semantics under go 1.21)
		g.Go(func() error {
			preds, err := tree.Predict(X)
			if err != nil {
				return err
			}
			perTree[i] = preds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Summed in tree order to keep results bit-for-bit reproducible.
	out := make([]float64, n)
	for _, preds := range perTree {
		for i, v := range preds {
			out[i] += v
		}
	}
	inv := 1 / float64(len(perTree))
	for i := range out {
		out[i] *= inv
	}
	return out, nil
}

// Trees returns the number of fitted trees.
func (rf *RandomForestRegressor) Trees() int { return len(rf.Estimators) }

// ResolveMaxFeatures turns a max_features setting into the number of
// features examined per split for p input features.
func ResolveMaxFeatures(setting string, p int) (int, error) {
	if p < 1 {
		return 0, errors.New("max_features: no input features")
	}
	s := strings.ToLower(strings.TrimSpace(setting))
	switch s {
	case "", "auto", "none":
		return p, nil
	case "sqrt":
		return max(1, int(math.Sqrt(float64(p)))), nil
	case "log2":
		return max(1, int(math.Log2(float64(p)))), nil
	}
	if k, err := strconv.Atoi(s); err == nil {
		if k < 1 || k > p {
			return 0, fmt.Errorf("max_features must be in [1, %d], got %d", p, k)
		}
		return k, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if !(f > 0 && f <= 1) {
			return 0, fmt.Errorf("max_features fraction must be in (0, 1], got %v", f)
		}
		return max(1, int(f*float64(p))), nil
	}
	return 0, fmt.Errorf("invalid max_features %q: want auto, sqrt, log2, none, an integer or a fraction", setting)
}
