package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/sarthakverma11/mlops-project-template/pkg/ctxlog"
	"github.com/sarthakverma11/mlops-project-template/pkg/pipeline"
)

// TrainFile is the only file read from the prepared data directory.
const TrainFile = "train.csv"

// MissingMarkers are the CSV cell values treated as absent.
var MissingMarkers = []string{"", "NA", "NaN", "nan", "<nil>", "null"}

// Dataset is a loaded training set: the selected feature columns and the
// target vector, row-aligned.
type Dataset struct {
	Path     string
	Features dataframe.DataFrame
	Target   []float64
}

// Rows returns the number of samples.
func (d *Dataset) Rows() int { return len(d.Target) }

// ListFiles logs the contents of the mounted data directory.
func ListFiles(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	ctxlog.FromContext(ctx).Info("Mounted path files.", "path", dir, "files", names)
	return names, nil
}

// LoadTrainingSet reads dir/train.csv and splits it into the schema's
// feature columns and target. Columns outside the schema are not selected.
func LoadTrainingSet(ctx context.Context, dir string, schema pipeline.Schema) (*Dataset, error) {
	logger := ctxlog.FromContext(ctx)
	path := filepath.Join(dir, TrainFile)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training data: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.WithTypes(columnTypes(schema)),
		dataframe.NaNValues(MissingMarkers),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read %s: %w", path, df.Err)
	}
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("read %s: no data rows", path)
	}
	logger.Debug("Training CSV parsed.", "path", path, "rows", df.Nrow(), "columns", df.Ncol())

	features := df.Select(schema.Features())
	if features.Err != nil {
		return nil, fmt.Errorf("select feature columns from %s: %w", path, features.Err)
	}

	if !hasColumn(df, schema.Target) {
		return nil, fmt.Errorf("select target column from %s: column %q not found", path, schema.Target)
	}
	targetCol := df.Col(schema.Target)
	if targetCol.Err != nil {
		return nil, fmt.Errorf("select target column from %s: %w", path, targetCol.Err)
	}
	target := targetCol.Float()
	for i, v := range target {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("target column %q: %w at row %d", schema.Target, ErrMissingTarget, i)
		}
	}

	logger.Info("Training data loaded.", "path", path, "rows", len(target), "features", features.Ncol())
	return &Dataset{Path: path, Features: features, Target: target}, nil
}

// ErrMissingTarget is returned when a target cell is empty or not numeric.
var ErrMissingTarget = errors.New("missing or non-numeric target value")

func columnTypes(schema pipeline.Schema) map[string]series.Type {
	types := make(map[string]series.Type)
	for _, c := range schema.Numeric {
		types[c] = series.Float
	}
	for _, c := range schema.Ordinal {
		types[c] = series.Float
	}
	for _, c := range schema.Nominal {
		types[c] = series.String
	}
	types[schema.Target] = series.Float
	return types
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}
