package dataprep

import (
	"fmt"
	"sort"

	"github.com/sarthakverma11/mlops-project-template/pkg/model"
	"gonum.org/v1/gonum/mat"
)

// OneHotEncoder maps each categorical column onto dense indicator columns,
// one per category seen in Fit. Categories are sorted per column.
type OneHotEncoder struct {
	Names      []string
	Categories [][]string

	index []map[string]int
}

func NewOneHotEncoder() *OneHotEncoder { return &OneHotEncoder{} }

// Fit collects the categories of every column of X (rows x columns).
func (e *OneHotEncoder) Fit(X [][]string, names []string) error {
	e.Names = append([]string(nil), names...)
	e.Categories = make([][]string, len(names))
	for j, name := range names {
		seen := map[string]struct{}{}
		for _, row := range X {
			if IsMissing(row[j]) {
				return fmt.Errorf("one-hot: column %q contains a missing value", name)
			}
			seen[row[j]] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.Categories[j] = cats
	}
	e.buildIndex()
	return nil
}

// Width is the number of output columns.
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, cats := range e.Categories {
		w += len(cats)
	}
	return w
}

// FeatureNames returns "<column>_<category>" for every output column.
func (e *OneHotEncoder) FeatureNames() []string {
	out := make([]string, 0, e.Width())
	for j, cats := range e.Categories {
		for _, c := range cats {
			out = append(out, e.Names[j]+"_"+c)
		}
	}
	return out
}

// Transform encodes X. A category not seen in Fit is an error.
func (e *OneHotEncoder) Transform(X [][]string) (*mat.Dense, error) {
	if e.Categories == nil {
		return nil, fmt.Errorf("one-hot: %w", model.ErrNotFitted)
	}
	if e.index == nil {
		e.buildIndex()
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("one-hot: no rows")
	}
	out := mat.NewDense(len(X), e.Width(), nil)
	for i, row := range X {
		if len(row) != len(e.Categories) {
			return nil, fmt.Errorf("one-hot: row %d has %d columns, fitted on %d", i, len(row), len(e.Categories))
		}
		offset := 0
		for j, v := range row {
			k, ok := e.index[j][v]
			if !ok {
				return nil, fmt.Errorf("one-hot: unknown category %q in column %q", v, e.Names[j])
			}
			out.Set(i, offset+k, 1)
			offset += len(e.Categories[j])
		}
	}
	return out, nil
}

func (e *OneHotEncoder) buildIndex() {
	e.index = make([]map[string]int, len(e.Categories))
	for j, cats := range e.Categories {
		m := make(map[string]int, len(cats))
		for k, c := range cats {
			m[c] = k
		}
		e.index[j] = m
	}
}
