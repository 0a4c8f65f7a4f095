package report

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScatterPlot_WritesPNG(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), PlotFile)
	actual := []float64{4, 8, 15, 16, 23, 42}
	predicted := []float64{5, 7, 14, 18, 22, 40}

	// --- Act ---
	err := ScatterPlot(path, actual, predicted)

	// --- Assert ---
	require.NoError(t, err)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, cfg.Height, "4:3 landscape figure")
}

func TestScatterPlot_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.Error(t, ScatterPlot(filepath.Join(dir, PlotFile), nil, nil))
	assert.Error(t, ScatterPlot(filepath.Join(dir, PlotFile), []float64{1, 2}, []float64{1}))
	assert.Error(t, ScatterPlot(filepath.Join(dir, "missing", PlotFile), []float64{1}, []float64{1}))
}
