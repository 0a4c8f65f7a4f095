// Package config resolves the training job configuration from built-in
// defaults, an optional HCL job file, the tracking environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"strings"

	"github.com/sarthakverma11/mlops-project-template/pkg/model"
)

// Tracking environment variables.
const (
	EnvTrackingURI    = "MLFLOW_TRACKING_URI"
	EnvExperimentName = "MLFLOW_EXPERIMENT_NAME"
	EnvRunID          = "MLFLOW_RUN_ID"
)

const (
	DefaultTrackingURI = "sqlite:///mlruns/tracking.db"
	DefaultExperiment  = "Default"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Tracking locates the experiment tracking store and run.
type Tracking struct {
	URI        string
	Experiment string
	// RunID, when set, names an existing run to log into instead of
	// starting a new one.
	RunID string
}

// Config holds everything the training job needs.
type Config struct {
	PreparedData string
	ModelOutput  string
	PlotOutput   string

	Forest   model.ForestParams
	Tracking Tracking

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		PlotOutput: ".",
		Forest:     model.DefaultForestParams(),
		Tracking: Tracking{
			URI:        DefaultTrackingURI,
			Experiment: DefaultExperiment,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// applyEnv overrides the tracking settings with any non-empty tracking
// environment variables.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvTrackingURI); ok && v != "" {
		c.Tracking.URI = v
	}
	if v, ok := os.LookupEnv(EnvExperimentName); ok && v != "" {
		c.Tracking.Experiment = v
	}
	if v, ok := os.LookupEnv(EnvRunID); ok && v != "" {
		c.Tracking.RunID = v
	}
}

// normalize lower-cases the logging settings and rejects unknown values.
func (c *Config) normalize() error {
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	c.LogLevel = strings.ToLower(c.LogLevel)
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return nil
}
