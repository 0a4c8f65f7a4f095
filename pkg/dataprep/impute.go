package dataprep

import (
	"fmt"
	"math"

	"github.com/sarthakverma11/mlops-project-template/pkg/model"
	"github.com/sarthakverma11/mlops-project-template/pkg/stats"
	"gonum.org/v1/gonum/mat"
)

// Missing marks an absent categorical value. The data loader maps every
// configured missing marker onto it.
const Missing = "\x00NA"

// IsMissing reports whether a categorical value is absent.
func IsMissing(v string) bool { return v == Missing }

// StringImputer replaces missing categorical values with the most frequent
// value seen in Fit, per column.
type StringImputer struct {
	Fill []string
}

func NewStringImputer() *StringImputer { return &StringImputer{} }

// Fit learns the fill value for every column of X (rows x columns).
func (m *StringImputer) Fit(X [][]string, names []string) error {
	m.Fill = make([]string, len(names))
	for j, name := range names {
		col := make([]string, 0, len(X))
		for _, row := range X {
			if !IsMissing(row[j]) {
				col = append(col, row[j])
			}
		}
		mode, ok := stats.ModeString(col)
		if !ok {
			return fmt.Errorf("imputer: column %q has no observed values", name)
		}
		m.Fill[j] = mode
	}
	return nil
}

// Transform returns a copy of X with missing cells filled.
func (m *StringImputer) Transform(X [][]string) ([][]string, error) {
	if m.Fill == nil {
		return nil, fmt.Errorf("imputer: %w", model.ErrNotFitted)
	}
	out := make([][]string, len(X))
	for i, row := range X {
		if len(row) != len(m.Fill) {
			return nil, fmt.Errorf("imputer: row %d has %d columns, fitted on %d", i, len(row), len(m.Fill))
		}
		cp := make([]string, len(row))
		for j, v := range row {
			if IsMissing(v) {
				v = m.Fill[j]
			}
			cp[j] = v
		}
		out[i] = cp
	}
	return out, nil
}

// NumericImputer replaces NaNs with the most frequent value of each column.
type NumericImputer struct {
	Fill []float64
}

func NewNumericImputer() *NumericImputer { return &NumericImputer{} }

func (m *NumericImputer) Fit(X mat.Matrix) error {
	_, c := X.Dims()
	m.Fill = make([]float64, c)
	for j := 0; j < c; j++ {
		mode, ok := stats.Mode(stats.Observed(mat.Col(nil, j, X)))
		if !ok {
			return fmt.Errorf("imputer: column %d has no observed values", j)
		}
		m.Fill[j] = mode
	}
	return nil
}

func (m *NumericImputer) Transform(X mat.Matrix) (*mat.Dense, error) {
	if m.Fill == nil {
		return nil, fmt.Errorf("imputer: %w", model.ErrNotFitted)
	}
	_, c := X.Dims()
	if c != len(m.Fill) {
		return nil, fmt.Errorf("imputer: X has %d columns, fitted on %d", c, len(m.Fill))
	}
	var out mat.Dense
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return m.Fill[j]
		}
		return v
	}, X)
	return &out, nil
}
