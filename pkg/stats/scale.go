package stats

import (
	"fmt"
	"math"

	"github.com/sarthakverma11/mlops-project-template/pkg/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler standardizes each column to zero mean and unit variance
// using the population standard deviation. NaNs are ignored while fitting
// and passed through by Transform.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func NewStandardScaler() *StandardScaler { return &StandardScaler{} }

func (s *StandardScaler) Fit(X mat.Matrix) error {
	_, c := X.Dims()
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		vals := Observed(mat.Col(nil, j, X))
		if len(vals) == 0 {
			s.Scale[j] = 1
			continue
		}
		mean, std := stat.PopMeanStdDev(vals, nil)
		s.Mean[j] = mean
		// constant columns pass through centred
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
	return nil
}

func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if s.Scale == nil {
		return nil, fmt.Errorf("standard scaler: %w", model.ErrNotFitted)
	}
	_, c := X.Dims()
	if c != len(s.Scale) {
		return nil, fmt.Errorf("standard scaler: X has %d columns, fitted on %d", c, len(s.Scale))
	}
	var out mat.Dense
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return &out, nil
}

// MinMaxScaler scales each column to [0, 1] using the range seen in Fit.
type MinMaxScaler struct {
	Min   []float64
	Range []float64
}

func NewMinMaxScaler() *MinMaxScaler { return &MinMaxScaler{} }

func (s *MinMaxScaler) Fit(X mat.Matrix) error {
	_, c := X.Dims()
	s.Min = make([]float64, c)
	s.Range = make([]float64, c)
	for j := 0; j < c; j++ {
		vals := Observed(mat.Col(nil, j, X))
		if len(vals) == 0 {
			s.Range[j] = 1
			continue
		}
		lo, hi := floats.Min(vals), floats.Max(vals)
		s.Min[j] = lo
		s.Range[j] = hi - lo
		if s.Range[j] == 0 {
			s.Range[j] = 1
		}
	}
	return nil
}

func (s *MinMaxScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if s.Range == nil {
		return nil, fmt.Errorf("min-max scaler: %w", model.ErrNotFitted)
	}
	_, c := X.Dims()
	if c != len(s.Range) {
		return nil, fmt.Errorf("min-max scaler: X has %d columns, fitted on %d", c, len(s.Range))
	}
	var out mat.Dense
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return v
		}
		return (v - s.Min[j]) / s.Range[j]
	}, X)
	return &out, nil
}
