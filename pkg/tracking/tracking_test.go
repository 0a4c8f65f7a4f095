package tracking

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(context.Background(), "sqlite:///"+filepath.Join(dir, "tracking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestDBPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "sqlite:///mlruns/tracking.db", want: "mlruns/tracking.db"},
		{uri: "sqlite:////tmp/tracking.db", want: "/tmp/tracking.db"},
		{uri: "runs.db", want: "runs.db"},
		{uri: "", wantErr: true},
		{uri: "sqlite:///", wantErr: true},
		{uri: "http://tracking.example.com", wantErr: true},
	}
	for _, tc := range tests {
		got, err := DBPath(tc.uri)
		if tc.wantErr {
			assert.Error(t, err, tc.uri)
			continue
		}
		require.NoError(t, err, tc.uri)
		assert.Equal(t, tc.want, got)
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	store, _ := openStore(t)

	// --- Act ---
	run, err := store.StartRun(ctx, "taxi-fare")
	require.NoError(t, err)
	require.NoError(t, run.LogParam(ctx, "model", "RandomForestRegressor"))
	require.NoError(t, run.LogParam(ctx, "n_estimators", 500))
	require.NoError(t, run.LogParam(ctx, "bootstrap", 1))
	require.NoError(t, run.LogMetric(ctx, "train r2", 0.75))
	require.NoError(t, run.LogMetric(ctx, "train r2", 0.8))
	require.NoError(t, run.End(ctx, StatusFinished))

	// --- Assert ---
	assert.Len(t, run.ID(), 32)
	params, err := store.Params(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"model":        "RandomForestRegressor",
		"n_estimators": "500",
		"bootstrap":    "1",
	}, params)

	metrics, err := store.Metrics(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"train r2": 0.8}, metrics)

	status, err := store.RunStatus(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, status)
}

func TestRun_ParamsAreImmutable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openStore(t)
	run, err := store.StartRun(ctx, "")
	require.NoError(t, err)

	require.NoError(t, run.LogParam(ctx, "max_depth", 10))
	require.NoError(t, run.LogParam(ctx, "max_depth", "10"), "same value logged again is accepted")

	err = run.LogParam(ctx, "max_depth", 12)

	assert.ErrorIs(t, err, ErrParamConflict)
}

func TestStore_ResumeRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openStore(t)
	started, err := store.StartRun(ctx, "Default")
	require.NoError(t, err)

	resumed, err := store.ResumeRun(ctx, started.ID())
	require.NoError(t, err)
	assert.Equal(t, started.ExperimentID(), resumed.ExperimentID())
	assert.Equal(t, started.ArtifactDir(), resumed.ArtifactDir())

	_, err = store.ResumeRun(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_ExperimentsAreReused(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := openStore(t)

	a, err := store.StartRun(ctx, "taxi-fare")
	require.NoError(t, err)
	b, err := store.StartRun(ctx, "taxi-fare")
	require.NoError(t, err)
	c, err := store.StartRun(ctx, "other")
	require.NoError(t, err)

	assert.Equal(t, a.ExperimentID(), b.ExperimentID())
	assert.NotEqual(t, a.ExperimentID(), c.ExperimentID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestRun_LogArtifact(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	store, dir := openStore(t)
	run, err := store.StartRun(ctx, "Default")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "regression_results.png")
	require.NoError(t, os.WriteFile(src, []byte("png bytes"), 0o600))

	// --- Act ---
	err = run.LogArtifact(ctx, src)

	// --- Assert ---
	require.NoError(t, err)
	copied := filepath.Join(run.ArtifactDir(), "regression_results.png")
	content, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(content))
	assert.Equal(t, dir, filepath.Dir(filepath.Dir(filepath.Dir(run.ArtifactDir()))), "artifacts live under <root>/<experiment>/<run>/artifacts")

	artifacts, err := store.Artifacts(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"regression_results.png"}, artifacts)

	require.NoError(t, run.LogArtifact(ctx, src), "logging the same artifact twice overwrites it")
	assert.Error(t, run.LogArtifact(ctx, filepath.Join(t.TempDir(), "missing.png")))
}

func TestOpen_IsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	uri := filepath.Join(t.TempDir(), "nested", "tracking.db")

	first, err := Open(ctx, uri)
	require.NoError(t, err)
	run, err := first.StartRun(ctx, "Default")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, uri)
	require.NoError(t, err)
	defer second.Close()
	status, err := second.RunStatus(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)
}
