// Package trainer runs the fare regression training job end to end: load the
// prepared data, fit the pipeline, evaluate it, plot the fit and persist it.
package trainer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sarthakverma11/mlops-project-template/pkg/config"
	"github.com/sarthakverma11/mlops-project-template/pkg/ctxlog"
	"github.com/sarthakverma11/mlops-project-template/pkg/data"
	"github.com/sarthakverma11/mlops-project-template/pkg/model"
	"github.com/sarthakverma11/mlops-project-template/pkg/pipeline"
	"github.com/sarthakverma11/mlops-project-template/pkg/report"
	"github.com/sarthakverma11/mlops-project-template/pkg/tracking"
)

// ModelFile is the name of the persisted pipeline inside the model output
// directory.
const ModelFile = "model.pkl"

// ModelName is logged as the "model" parameter of every run.
const ModelName = "RandomForestRegressor"

// Result summarizes a completed training run.
type Result struct {
	Rows      int
	Features  int
	Trees     int
	Metrics   model.RegressionMetrics
	ModelPath string
	PlotPath  string
}

// Run trains the pipeline described by cfg and records it through tracker.
// Any failure aborts the job; nothing is retried.
func Run(ctx context.Context, cfg *config.Config, tracker tracking.Tracker) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	logger.Info("Input data path.", "path", cfg.PreparedData)
	logger.Info("Model output path.", "path", cfg.ModelOutput)
	if _, err := data.ListFiles(ctx, cfg.PreparedData); err != nil {
		return nil, err
	}

	schema := pipeline.TripSchema()
	ds, err := data.LoadTrainingSet(ctx, cfg.PreparedData, schema)
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(schema, cfg.Forest)
	if err := logParams(ctx, tracker, cfg.Forest); err != nil {
		return nil, err
	}

	logger.Info("Training model.", "n_estimators", cfg.Forest.NEstimators, "rows", ds.Rows())
	if err := pipe.Fit(ctx, ds.Features, ds.Target); err != nil {
		return nil, fmt.Errorf("train pipeline: %w", err)
	}

	yhat, err := pipe.Predict(ds.Features)
	if err != nil {
		return nil, fmt.Errorf("predict training set: %w", err)
	}
	metrics, err := model.Evaluate(ds.Target, yhat)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if err := logMetrics(ctx, tracker, metrics); err != nil {
		return nil, err
	}
	logger.Info("Training metrics.", "r2", metrics.R2, "mse", metrics.MSE, "rmse", metrics.RMSE, "mae", metrics.MAE)

	plotPath := filepath.Join(cfg.PlotOutput, report.PlotFile)
	if err := os.MkdirAll(cfg.PlotOutput, 0o755); err != nil {
		return nil, fmt.Errorf("create plot directory: %w", err)
	}
	if err := report.ScatterPlot(plotPath, ds.Target, yhat); err != nil {
		return nil, err
	}
	if err := tracker.LogArtifact(ctx, plotPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.ModelOutput, 0o755); err != nil {
		return nil, fmt.Errorf("create model output directory: %w", err)
	}
	modelPath := filepath.Join(cfg.ModelOutput, ModelFile)
	if err := pipe.Save(modelPath); err != nil {
		return nil, err
	}

	_, features := ds.Features.Dims()
	logger.Info("Model saved.", "path", modelPath, "duration", time.Since(start))
	return &Result{
		Rows:      ds.Rows(),
		Features:  features,
		Trees:     pipe.Regressor.Trees(),
		Metrics:   metrics,
		ModelPath: modelPath,
		PlotPath:  plotPath,
	}, nil
}

func logParams(ctx context.Context, tracker tracking.Tracker, p model.ForestParams) error {
	bootstrap := 0
	if p.Bootstrap {
		bootstrap = 1
	}
	params := []struct {
		key   string
		value any
	}{
		{"model", ModelName},
		{"n_estimators", p.NEstimators},
		{"bootstrap", bootstrap},
		{"max_depth", p.MaxDepth},
		{"max_features", p.MaxFeatures},
		{"min_samples_leaf", p.MinSamplesLeaf},
		{"min_samples_split", p.MinSamplesSplit},
	}
	for _, kv := range params {
		if err := tracker.LogParam(ctx, kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

func logMetrics(ctx context.Context, tracker tracking.Tracker, m model.RegressionMetrics) error {
	metrics := []struct {
		key   string
		value float64
	}{
		{"train r2", m.R2},
		{"train mse", m.MSE},
		{"train rmse", m.RMSE},
		{"train mae", m.MAE},
	}
	for _, kv := range metrics {
		if err := tracker.LogMetric(ctx, kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}
