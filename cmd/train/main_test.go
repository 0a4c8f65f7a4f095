package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarthakverma11/mlops-project-template/pkg/config"
	"github.com/sarthakverma11/mlops-project-template/pkg/tracking"
)

const sampleCSV = `distance,dropoff_latitude,dropoff_longitude,passengers,pickup_latitude,pickup_longitude,pickup_weekday,pickup_month,pickup_monthday,pickup_hour,pickup_minute,pickup_second,dropoff_weekday,dropoff_month,dropoff_monthday,dropoff_hour,dropoff_minute,dropoff_second,store_forward,vendor,cost
1.2,40.71,-73.99,1,40.72,-73.98,1,6,3,8,15,2,1,6,3,8,25,40,N,1,7.5
3.4,40.75,-73.97,2,40.73,-73.99,2,6,4,9,5,12,2,6,4,9,20,3,N,2,13.0
0.8,40.70,-74.00,1,40.71,-73.99,3,6,5,10,45,33,3,6,5,10,52,10,Y,1,5.0
5.9,40.78,-73.95,3,40.72,-73.99,4,6,6,11,0,0,4,6,6,11,22,59,N,2,21.25
2.2,40.74,-73.98,1,40.72,-73.98,5,6,7,12,30,30,5,6,7,12,41,8,N,1,9.75
4.1,40.76,-73.96,2,40.71,-74.00,6,6,8,13,10,10,6,6,8,13,31,44,,2,16.5
`

// setTrackingEnv points the tracking store at a temporary database.
func setTrackingEnv(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "mlruns", "tracking.db")
	t.Setenv(config.EnvTrackingURI, "sqlite:///"+db)
	t.Setenv(config.EnvExperimentName, "")
	t.Setenv(config.EnvRunID, "")
	return db
}

func prepareData(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.csv"), []byte(content), 0o600))
	return dir
}

func TestRun_TrainsAndRecords(t *testing.T) {
	// --- Arrange ---
	db := setTrackingEnv(t)
	data := prepareData(t, sampleCSV)
	modelDir := filepath.Join(t.TempDir(), "model")
	plotDir := t.TempDir()
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, []string{
		"--prepared_data", data,
		"--model_output", modelDir,
		"--plot_output", plotDir,
		"--regressor__n_estimators", "5",
		"--regressor__min_samples_leaf", "1",
		"--regressor__min_samples_split", "2",
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(modelDir, "model.pkl"))
	assert.FileExists(t, filepath.Join(plotDir, "regression_results.png"))
	assert.Contains(t, out.String(), "Training complete.")
	assert.Contains(t, out.String(), "Mounted path files.")

	ctx := context.Background()
	store, err := tracking.Open(ctx, db)
	require.NoError(t, err)
	defer store.Close()
	runID := lastRunID(t, out.String())
	status, err := store.RunStatus(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFinished, status)
}

func TestRun_FailedRunIsMarkedFailed(t *testing.T) {
	db := setTrackingEnv(t)
	data := prepareData(t, "distance,cost\n1,2\n")
	out := &bytes.Buffer{}

	err := run(out, []string{"--prepared_data", data, "--model_output", t.TempDir()})

	require.Error(t, err)
	var exitErr *config.ExitError
	assert.NotErrorAs(t, err, &exitErr, "runtime failures are not argument errors")

	ctx := context.Background()
	store, err := tracking.Open(ctx, db)
	require.NoError(t, err)
	defer store.Close()
	status, err := store.RunStatus(ctx, lastRunID(t, out.String()))
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFailed, status)
}

func TestRun_ResumesAmbientRun(t *testing.T) {
	// --- Arrange ---
	db := setTrackingEnv(t)
	ctx := context.Background()
	store, err := tracking.Open(ctx, db)
	require.NoError(t, err)
	ambient, err := store.StartRun(ctx, "pipeline")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	t.Setenv(config.EnvRunID, ambient.ID())

	data := prepareData(t, sampleCSV)
	out := &bytes.Buffer{}

	// --- Act ---
	err = run(out, []string{
		"--prepared_data", data,
		"--model_output", t.TempDir(),
		"--plot_output", t.TempDir(),
		"--regressor__n_estimators", "3",
	})

	// --- Assert ---
	require.NoError(t, err)
	store, err = tracking.Open(ctx, db)
	require.NoError(t, err)
	defer store.Close()
	params, err := store.Params(ctx, ambient.ID())
	require.NoError(t, err)
	assert.Equal(t, "3", params["n_estimators"])
	status, err := store.RunStatus(ctx, ambient.ID())
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusRunning, status, "the ambient run is left for its owner to end")
}

func TestRun_ShouldExit(t *testing.T) {
	// --- Arrange ---
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when help is requested")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	out := &bytes.Buffer{}

	err := run(out, []string{"--this-is-not-a-valid-flag"})

	var exitErr *config.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

// lastRunID extracts the run_id attribute from text-formatted log output.
func lastRunID(t *testing.T, logs string) string {
	t.Helper()
	var id string
	for _, field := range strings.Fields(logs) {
		if v, ok := strings.CutPrefix(field, "run_id="); ok {
			id = v
		}
	}
	require.NotEmpty(t, id, "no run_id in logs:\n%s", logs)
	return id
}
