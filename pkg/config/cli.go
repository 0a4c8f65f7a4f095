package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
)

// Parse processes command-line arguments into a Config. It returns true when
// the program should exit cleanly (help was requested) and an *ExitError for
// any argument problem.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("train", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
train - fits the trip fare regression pipeline and records the run.

Usage:
  train --prepared_data DIR --model_output DIR [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	def := Default()
	preparedData := flagSet.String("prepared_data", def.PreparedData, "Directory containing train.csv.")
	modelOutput := flagSet.String("model_output", def.ModelOutput, "Directory the fitted pipeline (model.pkl) is written to.")
	plotOutput := flagSet.String("plot_output", def.PlotOutput, "Directory the regression_results.png plot is written to.")
	nEstimators := flagSet.Int("regressor__n_estimators", def.Forest.NEstimators, "Number of trees in the forest.")
	bootstrap := flagSet.Int("regressor__bootstrap", boolToInt(def.Forest.Bootstrap), "Whether trees are fitted on bootstrap samples (nonzero = true).")
	maxDepth := flagSet.Int("regressor__max_depth", def.Forest.MaxDepth, "Maximum tree depth (0 = unlimited).")
	maxFeatures := flagSet.String("regressor__max_features", def.Forest.MaxFeatures, "Features considered per split: auto, sqrt, log2, a count or a fraction.")
	minSamplesLeaf := flagSet.Int("regressor__min_samples_leaf", def.Forest.MinSamplesLeaf, "Minimum samples in a leaf.")
	minSamplesSplit := flagSet.Int("regressor__min_samples_split", def.Forest.MinSamplesSplit, "Minimum samples needed to split a node.")
	configPath := flagSet.String("config", "", "Optional HCL job file; explicit flags take precedence over it.")
	logLevel := flagSet.String("log-level", def.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormat := flagSet.String("log-format", def.LogFormat, "Log output format. Options: 'text' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %v", flagSet.Args())}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := Default()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		slog.Debug("Job file loaded.", "path", *configPath)
	}
	cfg.applyEnv()

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "prepared_data":
			cfg.PreparedData = *preparedData
		case "model_output":
			cfg.ModelOutput = *modelOutput
		case "plot_output":
			cfg.PlotOutput = *plotOutput
		case "regressor__n_estimators":
			cfg.Forest.NEstimators = *nEstimators
		case "regressor__bootstrap":
			cfg.Forest.Bootstrap = *bootstrap != 0
		case "regressor__max_depth":
			cfg.Forest.MaxDepth = *maxDepth
		case "regressor__max_features":
			cfg.Forest.MaxFeatures = *maxFeatures
		case "regressor__min_samples_leaf":
			cfg.Forest.MinSamplesLeaf = *minSamplesLeaf
		case "regressor__min_samples_split":
			cfg.Forest.MinSamplesSplit = *minSamplesSplit
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})

	if err := cfg.normalize(); err != nil {
		return nil, false, err
	}

	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
