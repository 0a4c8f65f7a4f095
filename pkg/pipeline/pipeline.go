package pipeline

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"

	"github.com/sarthakverma11/mlops-project-template/pkg/ctxlog"
	"github.com/sarthakverma11/mlops-project-template/pkg/dataprep"
	"github.com/sarthakverma11/mlops-project-template/pkg/model"
	"github.com/sarthakverma11/mlops-project-template/pkg/stats"
)

func init() {
	gob.Register(&NumericBranch{})
	gob.Register(&NominalBranch{})
	gob.Register(&stats.StandardScaler{})
	gob.Register(&stats.MinMaxScaler{})
	gob.Register(&dataprep.NumericImputer{})
}

// Pipeline chains the column preprocessor and the regressor into a single
// fit/predict unit.
type Pipeline struct {
	Preprocessor *ColumnTransformer
	Regressor    *model.RandomForestRegressor
}

// New builds an unfitted pipeline for schema with the given forest settings.
func New(schema Schema, params model.ForestParams) *Pipeline {
	return &Pipeline{
		Preprocessor: NewPreprocessor(schema),
		Regressor:    model.NewRandomForestRegressor(model.WithParams(params)),
	}
}

// Fit fits the preprocessor on X, then the regressor on the transformed X and y.
func (p *Pipeline) Fit(ctx context.Context, X dataframe.DataFrame, y []float64) error {
	logger := ctxlog.FromContext(ctx)

	Xt, err := p.Preprocessor.FitTransform(X)
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	rows, cols := Xt.Dims()
	logger.Debug("Preprocessor fitted.", "rows", rows, "features", cols, "feature_names", p.Preprocessor.FeatureNames())

	if err := p.Regressor.Fit(Xt, y); err != nil {
		return fmt.Errorf("fit regressor: %w", err)
	}
	logger.Debug("Regressor fitted.", "trees", p.Regressor.Trees())
	return nil
}

// Predict transforms X with the fitted preprocessor and returns the
// regressor's predictions.
func (p *Pipeline) Predict(X dataframe.DataFrame) ([]float64, error) {
	Xt, err := p.Preprocessor.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	return p.Regressor.Predict(Xt)
}

// Save gob-encodes the pipeline to path. The write is not atomic.
func (p *Pipeline) Save(path string) error {
	if p.Regressor == nil || p.Regressor.Trees() == 0 {
		return fmt.Errorf("save pipeline: %w", model.ErrNotFitted)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save pipeline: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		return fmt.Errorf("save pipeline: encode: %w", err)
	}
	return f.Close()
}

// Load reads a pipeline written by Save.
func Load(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}
	defer f.Close()

	var p Pipeline
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("load pipeline: decode: %w", err)
	}
	if p.Preprocessor == nil || p.Regressor == nil {
		return nil, errors.New("load pipeline: incomplete pipeline")
	}
	return &p, nil
}
