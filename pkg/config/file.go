package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// fileConfig is the shape of an HCL job file. Every setting is optional.
type fileConfig struct {
	PreparedData *string         `hcl:"prepared_data,optional"`
	ModelOutput  *string         `hcl:"model_output,optional"`
	PlotOutput   *string         `hcl:"plot_output,optional"`
	Regressor    *regressorBlock `hcl:"regressor,block"`
	Tracking     *trackingBlock  `hcl:"tracking,block"`
	Logging      *loggingBlock   `hcl:"logging,block"`
}

type regressorBlock struct {
	NEstimators     *int    `hcl:"n_estimators,optional"`
	Bootstrap       *int    `hcl:"bootstrap,optional"`
	MaxDepth        *int    `hcl:"max_depth,optional"`
	MaxFeatures     *string `hcl:"max_features,optional"`
	MinSamplesLeaf  *int    `hcl:"min_samples_leaf,optional"`
	MinSamplesSplit *int    `hcl:"min_samples_split,optional"`
}

type trackingBlock struct {
	URI        *string `hcl:"uri,optional"`
	Experiment *string `hcl:"experiment,optional"`
	RunID      *string `hcl:"run_id,optional"`
}

type loggingBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

// LoadFile overlays the settings of the HCL job file at path onto c.
// Expressions may read the process environment through the env object,
// e.g. env.HOME.
func (c *Config) LoadFile(path string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, envContext(), &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	fc.apply(c)
	return nil
}

func (fc *fileConfig) apply(c *Config) {
	setString(&c.PreparedData, fc.PreparedData)
	setString(&c.ModelOutput, fc.ModelOutput)
	setString(&c.PlotOutput, fc.PlotOutput)

	if r := fc.Regressor; r != nil {
		setInt(&c.Forest.NEstimators, r.NEstimators)
		if r.Bootstrap != nil {
			c.Forest.Bootstrap = *r.Bootstrap != 0
		}
		setInt(&c.Forest.MaxDepth, r.MaxDepth)
		setString(&c.Forest.MaxFeatures, r.MaxFeatures)
		setInt(&c.Forest.MinSamplesLeaf, r.MinSamplesLeaf)
		setInt(&c.Forest.MinSamplesSplit, r.MinSamplesSplit)
	}
	if t := fc.Tracking; t != nil {
		setString(&c.Tracking.URI, t.URI)
		setString(&c.Tracking.Experiment, t.Experiment)
		setString(&c.Tracking.RunID, t.RunID)
	}
	if l := fc.Logging; l != nil {
		setString(&c.LogLevel, l.Level)
		setString(&c.LogFormat, l.Format)
	}
}

// envContext exposes the process environment to HCL expressions as the
// env object.
func envContext() *hcl.EvalContext {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
