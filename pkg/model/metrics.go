package model

import (
	"errors"
	"fmt"
	"math"
)

// RegressionMetrics holds the scores reported after training.
type RegressionMetrics struct {
	R2   float64
	MSE  float64
	RMSE float64
	MAE  float64
}

// Evaluate scores yPred against yTrue. RMSE is exactly math.Sqrt(MSE).
func Evaluate(yTrue, yPred []float64) (RegressionMetrics, error) {
	if len(yTrue) == 0 {
		return RegressionMetrics{}, errors.New("metrics: no samples")
	}
	if len(yTrue) != len(yPred) {
		return RegressionMetrics{}, fmt.Errorf("metrics: %d targets but %d predictions", len(yTrue), len(yPred))
	}
	mse := MSE(yTrue, yPred)
	return RegressionMetrics{
		R2:   R2(yTrue, yPred),
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  MAE(yTrue, yPred),
	}, nil
}

func MSE(yTrue, yPred []float64) float64 {
	n := float64(len(yTrue))
	s := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		s += d * d
	}
	return s / n
}

func MAE(yTrue, yPred []float64) float64 {
	n := float64(len(yTrue))
	s := 0.0
	for i := range yTrue {
		s += math.Abs(yPred[i] - yTrue[i])
	}
	return s / n
}

func RMSE(yTrue, yPred []float64) float64 { return math.Sqrt(MSE(yTrue, yPred)) }

// R2 is the coefficient of determination. A constant target scores 1 when
// predicted perfectly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	m := 0.0
	for _, v := range yTrue {
		m += v
	}
	m /= float64(len(yTrue))
	ssTot := 0.0
	ssRes := 0.0
	for i := range yTrue {
		d := yTrue[i] - m
		ssTot += d * d
		r := yTrue[i] - yPred[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
