package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeRegressor is a CART regression tree. Splits minimise the
// within-node squared error and each leaf predicts the mean target of the
// training samples that reach it.
type DecisionTreeRegressor struct {
	// Hyperparameters / options
	MaxDepth        int   // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit int   // minimum samples to attempt a split
	MinSamplesLeaf  int   // minimum samples required in each leaf
	MaxFeatures     int   // 0 => use all features, >0 => number of features sampled per split
	RandomState     int64 // seed for feature subsampling

	// internals
	root      *treeNode
	nFeatures int
}

var _ Regressor = (*DecisionTreeRegressor)(nil)

// treeNode holds a node in the tree. Fields are exported for gob.
type treeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64 // x <= Threshold => Left
	Value     float64 // mean target of the samples in this node
	Samples   int
	Left      *treeNode
	Right     *treeNode
}

// Option functional config
type Option func(*DecisionTreeRegressor)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeRegressor) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}
func WithMaxFeatures(k int) Option { return func(t *DecisionTreeRegressor) { t.MaxFeatures = k } }
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor returns a regressor with sensible defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		RandomState:     0,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// ---------------------------
// Public API
// ---------------------------

// Fit trains the tree on X (n x p) and y (n targets).
func (t *DecisionTreeRegressor) Fit(X mat.Matrix, y []float64) error {
	n, _ := X.Dims()
	if n == 0 {
		return errors.New("dtree: empty X")
	}
	if len(y) != n {
		return fmt.Errorf("dtree: X has %d rows but y has %d values", n, len(y))
	}
	cols, err := columnsOf(X)
	if err != nil {
		return err
	}
	if err := checkFinite(y); err != nil {
		return fmt.Errorf("dtree: y %w", err)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.fitIndices(cols, y, idx)
}

// fitIndices grows the tree on the samples listed in idx. Repeated indices
// (bootstrap draws) count once per occurrence.
func (t *DecisionTreeRegressor) fitIndices(cols [][]float64, y []float64, idx []int) error {
	if len(idx) == 0 {
		return errors.New("dtree: no samples")
	}
	if err := t.validate(); err != nil {
		return err
	}
	t.nFeatures = len(cols)
	b := &treeBuilder{
		tree: t,
		cols: cols,
		y:    y,
		rnd:  rand.New(rand.NewSource(t.RandomState)),
		buf:  make([]sample, 0, len(idx)),
	}
	t.root = b.build(idx, 0)
	return nil
}

// Predict returns one prediction per row of X.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	if p != t.nFeatures {
		return nil, fmt.Errorf("dtree: X has %d features, tree was fitted with %d", p, t.nFeatures)
	}
	out := make([]float64, n)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		out[i] = t.predictSingle(row)
	}
	return out, nil
}

// Depth returns the depth of the fitted tree (a single leaf has depth 0).
func (t *DecisionTreeRegressor) Depth() int { return nodeDepth(t.root) }

// Leaves returns the number of leaves in the fitted tree.
func (t *DecisionTreeRegressor) Leaves() int { return nodeLeaves(t.root) }

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (t *DecisionTreeRegressor) MarshalBinary() ([]byte, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, v := range []any{t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf, t.MaxFeatures, t.RandomState, t.nFeatures} {
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}
	if err := enc.Encode(t.root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (t *DecisionTreeRegressor) UnmarshalBinary(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	for _, v := range []any{&t.MaxDepth, &t.MinSamplesSplit, &t.MinSamplesLeaf, &t.MaxFeatures, &t.RandomState, &t.nFeatures} {
		if err := dec.Decode(v); err != nil {
			return err
		}
	}
	t.root = nil
	return dec.Decode(&t.root)
}

// ---------------------------
// Internal builders & helpers
// ---------------------------

func (t *DecisionTreeRegressor) validate() error {
	switch {
	case t.MaxDepth < 0:
		return fmt.Errorf("dtree: max_depth must be >= 0, got %d", t.MaxDepth)
	case t.MinSamplesSplit < 2:
		return fmt.Errorf("dtree: min_samples_split must be >= 2, got %d", t.MinSamplesSplit)
	case t.MinSamplesLeaf < 1:
		return fmt.Errorf("dtree: min_samples_leaf must be >= 1, got %d", t.MinSamplesLeaf)
	case t.MaxFeatures < 0:
		return fmt.Errorf("dtree: max_features must be >= 0, got %d", t.MaxFeatures)
	}
	return nil
}

// sample is a (feature value, target) pair used while scanning thresholds.
type sample struct {
	v float64
	y float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

type treeBuilder struct {
	tree *DecisionTreeRegressor
	cols [][]float64
	y    []float64
	rnd  *rand.Rand
	buf  []sample
}

func (b *treeBuilder) build(idx []int, depth int) *treeNode {
	t := b.tree
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	node := &treeNode{Value: sum / n, Samples: len(idx), Leaf: true}

	impurity := sumSq/n - (sum/n)*(sum/n)
	if impurity <= 1e-12 ||
		len(idx) < t.MinSamplesSplit ||
		len(idx) < 2*t.MinSamplesLeaf ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return node
	}

	best, ok := b.bestSplit(idx, sum)
	if !ok {
		return node
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	col := b.cols[best.feature]
	for _, i := range idx {
		if col[i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.Leaf = false
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

// candidateFeatures returns the features examined at one node, sampled
// without replacement when MaxFeatures limits them.
func (b *treeBuilder) candidateFeatures() []int {
	p := len(b.cols)
	feats := make([]int, p)
	for j := range feats {
		feats[j] = j
	}
	k := b.tree.MaxFeatures
	if k <= 0 || k >= p {
		return feats
	}
	for i := 0; i < k; i++ {
		j := i + b.rnd.Intn(p-i)
		feats[i], feats[j] = feats[j], feats[i]
	}
	return feats[:k]
}

// bestSplit scans every candidate feature for the threshold that maximises
// the reduction in summed squared error.
func (b *treeBuilder) bestSplit(idx []int, total float64) (split, bool) {
	minLeaf := b.tree.MinSamplesLeaf
	n := len(idx)
	parent := total * total / float64(n)

	best := split{feature: -1}
	for _, f := range b.candidateFeatures() {
		col := b.cols[f]
		b.buf = b.buf[:0]
		for _, i := range idx {
			b.buf = append(b.buf, sample{v: col[i], y: b.y[i]})
		}
		sort.Slice(b.buf, func(a, c int) bool { return b.buf[a].v < b.buf[c].v })

		leftSum := 0.0
		for s := 1; s < n; s++ {
			leftSum += b.buf[s-1].y
			if b.buf[s].v == b.buf[s-1].v {
				continue
			}
			if s < minLeaf || n-s < minLeaf {
				continue
			}
			rightSum := total - leftSum
			proxy := leftSum*leftSum/float64(s) + rightSum*rightSum/float64(n-s)
			gain := proxy - parent
			if gain > best.gain {
				thr := (b.buf[s-1].v + b.buf[s].v) / 2
				if thr == b.buf[s].v {
					thr = b.buf[s-1].v
				}
				best = split{feature: f, threshold: thr, gain: gain}
			}
		}
	}
	return best, best.feature >= 0 && best.gain > 0
}

func (t *DecisionTreeRegressor) predictSingle(x []float64) float64 {
	node := t.root
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func nodeDepth(n *treeNode) int {
	if n == nil || n.Leaf {
		return 0
	}
	return 1 + max(nodeDepth(n.Left), nodeDepth(n.Right))
}

func nodeLeaves(n *treeNode) int {
	if n == nil {
		return 0
	}
	if n.Leaf {
		return 1
	}
	return nodeLeaves(n.Left) + nodeLeaves(n.Right)
}

// columnsOf copies X into column-major slices and rejects NaN or Inf.
func columnsOf(X mat.Matrix) ([][]float64, error) {
	_, p := X.Dims()
	if p == 0 {
		return nil, errors.New("model: X has no features")
	}
	cols := make([][]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = mat.Col(nil, j, X)
		if err := checkFinite(cols[j]); err != nil {
			return nil, fmt.Errorf("model: input X column %d %w", j, err)
		}
	}
	return cols, nil
}

func checkFinite(v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) {
			return fmt.Errorf("contains NaN at row %d", i)
		}
		if math.IsInf(x, 0) {
			return fmt.Errorf("contains infinity at row %d", i)
		}
	}
	return nil
}
