package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarthakverma11/mlops-project-template/pkg/model"
)

// clearTrackingEnv keeps ambient tracking variables from leaking into a test.
func clearTrackingEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvTrackingURI, EnvExperimentName, EnvRunID} {
		t.Setenv(k, "")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearTrackingEnv(t)

	// --- Act ---
	cfg, shouldExit, err := Parse([]string{"--prepared_data", "data", "--model_output", "out"}, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	want := &Config{
		PreparedData: "data",
		ModelOutput:  "out",
		PlotOutput:   ".",
		Forest: model.ForestParams{
			NEstimators:     500,
			Bootstrap:       true,
			MaxDepth:        10,
			MaxFeatures:     "auto",
			MinSamplesLeaf:  4,
			MinSamplesSplit: 5,
			RandomState:     0,
		},
		Tracking:  Tracking{URI: DefaultTrackingURI, Experiment: DefaultExperiment},
		LogLevel:  "info",
		LogFormat: "text",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RegressorFlags(t *testing.T) {
	clearTrackingEnv(t)

	cfg, _, err := Parse([]string{
		"-regressor__n_estimators=20",
		"--regressor__bootstrap=0",
		"--regressor__max_depth", "0",
		"--regressor__max_features", "sqrt",
		"--regressor__min_samples_leaf=2",
		"--regressor__min_samples_split=3",
		"--plot_output", "plots",
		"--log-level", "DEBUG",
		"--log-format", "json",
	}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Forest.NEstimators)
	assert.False(t, cfg.Forest.Bootstrap)
	assert.Equal(t, 0, cfg.Forest.MaxDepth)
	assert.Equal(t, "sqrt", cfg.Forest.MaxFeatures)
	assert.Equal(t, 2, cfg.Forest.MinSamplesLeaf)
	assert.Equal(t, 3, cfg.Forest.MinSamplesSplit)
	assert.Equal(t, "plots", cfg.PlotOutput)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestParse_BootstrapNonzeroIsTrue(t *testing.T) {
	clearTrackingEnv(t)

	cfg, _, err := Parse([]string{"--regressor__bootstrap=7"}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.True(t, cfg.Forest.Bootstrap)
}

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "regressor__n_estimators")
}

func TestParse_ArgumentErrors(t *testing.T) {
	clearTrackingEnv(t)

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{"unknown flag", []string{"--learning_rate=0.1"}, "flag provided but not defined"},
		{"bad int", []string{"--regressor__n_estimators=many"}, "invalid value"},
		{"bad log level", []string{"--log-level=trace"}, "invalid log-level"},
		{"bad log format", []string{"--log-format=xml"}, "invalid log-format"},
		{"positional", []string{"data"}, "unexpected arguments"},
		{"missing config", []string{"--config", "/nonexistent/job.hcl"}, "failed to parse"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, shouldExit, err := Parse(tc.args, &bytes.Buffer{})

			require.Error(t, err)
			assert.False(t, shouldExit)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.errMsg)
		})
	}
}

func writeJobFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse_JobFileLayering(t *testing.T) {
	clearTrackingEnv(t)
	t.Setenv("DATA_ROOT", "/mnt/data")
	t.Setenv(EnvExperimentName, "from-env")

	// --- Arrange ---
	path := writeJobFile(t, `
prepared_data = "${env.DATA_ROOT}/prepared"
model_output  = "outputs"

regressor {
  n_estimators = 200
  bootstrap    = 0
  max_features = "0.5"
}

tracking {
  uri        = "sqlite:///runs/job.db"
  experiment = "from-file"
}

logging {
  level = "warn"
}
`)

	// --- Act ---
	cfg, _, err := Parse([]string{"--config", path, "--regressor__n_estimators", "50"}, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "/mnt/data/prepared", cfg.PreparedData)
	assert.Equal(t, "outputs", cfg.ModelOutput)
	assert.Equal(t, 50, cfg.Forest.NEstimators, "explicit flags win over the job file")
	assert.False(t, cfg.Forest.Bootstrap)
	assert.Equal(t, "0.5", cfg.Forest.MaxFeatures)
	assert.Equal(t, 10, cfg.Forest.MaxDepth, "unset settings keep their defaults")
	assert.Equal(t, "sqlite:///runs/job.db", cfg.Tracking.URI)
	assert.Equal(t, "from-env", cfg.Tracking.Experiment, "environment wins over the job file")
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParse_JobFileErrors(t *testing.T) {
	clearTrackingEnv(t)

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"syntax", "regressor {\n", "failed to parse"},
		{"unknown attribute", "learning_rate = 0.1\n", "failed to decode"},
		{"wrong type", "regressor {\n  n_estimators = \"lots\"\n}\n", "failed to decode"},
		{"unknown env var", "model_output = env.NOT_A_REAL_VARIABLE_FOR_TESTS\n", "failed to decode"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeJobFile(t, tc.content)

			_, _, err := Parse([]string{"--config", path}, &bytes.Buffer{})

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.errMsg)
		})
	}
}

func TestParse_TrackingEnvironment(t *testing.T) {
	t.Setenv(EnvTrackingURI, "sqlite:///elsewhere.db")
	t.Setenv(EnvExperimentName, "")
	t.Setenv(EnvRunID, "abc123")

	cfg, _, err := Parse(nil, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, Tracking{URI: "sqlite:///elsewhere.db", Experiment: DefaultExperiment, RunID: "abc123"}, cfg.Tracking)
}
