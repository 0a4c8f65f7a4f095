package model

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned when Predict or Transform is called before Fit.
var ErrNotFitted = errors.New("model: not fitted")

// Regressor is a supervised model predicting one continuous target.
type Regressor interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
}

// Transformer is for preprocessing steps (fit on train, transform both).
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
}

// FitTransform fits t on X and returns the transformed copy.
func FitTransform(t Transformer, X mat.Matrix) (*mat.Dense, error) {
	if err := t.Fit(X); err != nil {
		return nil, err
	}
	return t.Transform(X)
}
