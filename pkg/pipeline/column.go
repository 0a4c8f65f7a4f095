package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/sarthakverma11/mlops-project-template/pkg/dataprep"
	"github.com/sarthakverma11/mlops-project-template/pkg/model"
	"github.com/sarthakverma11/mlops-project-template/pkg/stats"
)

// RemainderDrop excludes every column not claimed by a branch.
const RemainderDrop = "drop"

// Branch is one column group of a ColumnTransformer together with the
// transformation chain applied to it.
type Branch interface {
	BranchName() string
	InputColumns() []string
	Fit(df dataframe.DataFrame) error
	Transform(df dataframe.DataFrame) (*mat.Dense, error)
	FeatureNames() []string
}

// ColumnTransformer routes disjoint column groups to their branches and
// concatenates the branch outputs, in branch order, into one matrix.
type ColumnTransformer struct {
	Branches  []Branch
	Remainder string
}

// NewColumnTransformer builds a transformer that drops unlisted columns.
func NewColumnTransformer(branches ...Branch) *ColumnTransformer {
	return &ColumnTransformer{Branches: branches, Remainder: RemainderDrop}
}

// NewPreprocessor wires the numeric and nominal branches of schema. The
// ordinal branch is left out; see NewOrdinalBranch.
func NewPreprocessor(schema Schema) *ColumnTransformer {
	return NewColumnTransformer(
		NewNumericBranch("numeric", schema.Numeric),
		NewNominalBranch("nominal", schema.Nominal),
	)
}

// Fit fits every non-empty branch on its own columns.
func (ct *ColumnTransformer) Fit(df dataframe.DataFrame) error {
	if ct.Remainder != RemainderDrop {
		return fmt.Errorf("column transformer: unsupported remainder %q", ct.Remainder)
	}
	claimed := map[string]string{}
	for _, b := range ct.Branches {
		for _, c := range b.InputColumns() {
			if other, ok := claimed[c]; ok {
				return fmt.Errorf("column transformer: column %q claimed by %q and %q", c, other, b.BranchName())
			}
			claimed[c] = b.BranchName()
		}
	}
	if len(claimed) == 0 {
		return errors.New("column transformer: no input columns")
	}
	for _, b := range ct.active() {
		if err := b.Fit(df); err != nil {
			return fmt.Errorf("column transformer: branch %q: %w", b.BranchName(), err)
		}
	}
	return nil
}

// Transform applies the fitted branches and stacks their outputs side by side.
func (ct *ColumnTransformer) Transform(df dataframe.DataFrame) (*mat.Dense, error) {
	var out *mat.Dense
	for _, b := range ct.active() {
		part, err := b.Transform(df)
		if err != nil {
			return nil, fmt.Errorf("column transformer: branch %q: %w", b.BranchName(), err)
		}
		if out == nil {
			out = part
			continue
		}
		var joined mat.Dense
		joined.Augment(out, part)
		out = &joined
	}
	if out == nil {
		return nil, errors.New("column transformer: no input columns")
	}
	return out, nil
}

// FitTransform fits the transformer on df and transforms it.
func (ct *ColumnTransformer) FitTransform(df dataframe.DataFrame) (*mat.Dense, error) {
	if err := ct.Fit(df); err != nil {
		return nil, err
	}
	return ct.Transform(df)
}

// FeatureNames returns "<branch>__<feature>" for every output column.
func (ct *ColumnTransformer) FeatureNames() []string {
	var out []string
	for _, b := range ct.active() {
		for _, f := range b.FeatureNames() {
			out = append(out, b.BranchName()+"__"+f)
		}
	}
	return out
}

func (ct *ColumnTransformer) active() []Branch {
	out := make([]Branch, 0, len(ct.Branches))
	for _, b := range ct.Branches {
		if len(b.InputColumns()) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// NumericBranch reads float columns and runs them through Steps in order.
type NumericBranch struct {
	Name    string
	Columns []string
	Steps   []model.Transformer
}

// NewNumericBranch standardizes its columns; no imputation, so missing
// values reach the regressor and fail the fit.
func NewNumericBranch(name string, columns []string) *NumericBranch {
	return &NumericBranch{
		Name:    name,
		Columns: columns,
		Steps:   []model.Transformer{stats.NewStandardScaler()},
	}
}

// NewOrdinalBranch imputes the most frequent value then min-max scales.
func NewOrdinalBranch(name string, columns []string) *NumericBranch {
	return &NumericBranch{
		Name:    name,
		Columns: columns,
		Steps: []model.Transformer{
			dataprep.NewNumericImputer(),
			stats.NewMinMaxScaler(),
		},
	}
}

func (b *NumericBranch) BranchName() string     { return b.Name }
func (b *NumericBranch) InputColumns() []string { return b.Columns }
func (b *NumericBranch) FeatureNames() []string { return append([]string(nil), b.Columns...) }

func (b *NumericBranch) Fit(df dataframe.DataFrame) error {
	X, err := floatMatrix(df, b.Columns)
	if err != nil {
		return err
	}
	for _, step := range b.Steps {
		if X, err = model.FitTransform(step, X); err != nil {
			return err
		}
	}
	return nil
}

func (b *NumericBranch) Transform(df dataframe.DataFrame) (*mat.Dense, error) {
	X, err := floatMatrix(df, b.Columns)
	if err != nil {
		return nil, err
	}
	for _, step := range b.Steps {
		if X, err = step.Transform(X); err != nil {
			return nil, err
		}
	}
	return X, nil
}

// NominalBranch imputes missing categories with the most frequent value and
// one-hot encodes the result.
type NominalBranch struct {
	Name    string
	Columns []string
	Imputer *dataprep.StringImputer
	Encoder *dataprep.OneHotEncoder
}

func NewNominalBranch(name string, columns []string) *NominalBranch {
	return &NominalBranch{
		Name:    name,
		Columns: columns,
		Imputer: dataprep.NewStringImputer(),
		Encoder: dataprep.NewOneHotEncoder(),
	}
}

func (b *NominalBranch) BranchName() string     { return b.Name }
func (b *NominalBranch) InputColumns() []string { return b.Columns }
func (b *NominalBranch) FeatureNames() []string { return b.Encoder.FeatureNames() }

func (b *NominalBranch) Fit(df dataframe.DataFrame) error {
	X, err := stringRows(df, b.Columns)
	if err != nil {
		return err
	}
	if err := b.Imputer.Fit(X, b.Columns); err != nil {
		return err
	}
	filled, err := b.Imputer.Transform(X)
	if err != nil {
		return err
	}
	return b.Encoder.Fit(filled, b.Columns)
}

func (b *NominalBranch) Transform(df dataframe.DataFrame) (*mat.Dense, error) {
	X, err := stringRows(df, b.Columns)
	if err != nil {
		return nil, err
	}
	filled, err := b.Imputer.Transform(X)
	if err != nil {
		return nil, err
	}
	return b.Encoder.Transform(filled)
}

// floatMatrix copies the named columns of df into a rows x len(columns) matrix.
func floatMatrix(df dataframe.DataFrame, columns []string) (*mat.Dense, error) {
	if err := requireColumns(df, columns); err != nil {
		return nil, err
	}
	rows := df.Nrow()
	if rows == 0 {
		return nil, errors.New("no rows")
	}
	X := mat.NewDense(rows, len(columns), nil)
	for j, name := range columns {
		X.SetCol(j, df.Col(name).Float())
	}
	return X, nil
}

// stringRows returns the named columns of df row by row, with NA cells
// replaced by dataprep.Missing.
func stringRows(df dataframe.DataFrame, columns []string) ([][]string, error) {
	if err := requireColumns(df, columns); err != nil {
		return nil, err
	}
	rows := df.Nrow()
	if rows == 0 {
		return nil, errors.New("no rows")
	}
	out := make([][]string, rows)
	for i := range out {
		out[i] = make([]string, len(columns))
	}
	for j, name := range columns {
		s := df.Col(name)
		for i := 0; i < rows; i++ {
			e := s.Elem(i)
			if e.IsNA() {
				out[i][j] = dataprep.Missing
			} else {
				out[i][j] = e.String()
			}
		}
	}
	return out, nil
}

func requireColumns(df dataframe.DataFrame, columns []string) error {
	have := make(map[string]struct{}, df.Ncol())
	for _, n := range df.Names() {
		have[n] = struct{}{}
	}
	for _, c := range columns {
		if _, ok := have[c]; !ok {
			return fmt.Errorf("column %q not found", c)
		}
	}
	return nil
}
