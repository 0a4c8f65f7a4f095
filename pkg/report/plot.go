// Package report renders training diagnostics.
package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotFile is the file name of the actual-vs-predicted scatter plot.
const PlotFile = "regression_results.png"

// Plot size matches a 6.4 x 4.8 inch figure.
const (
	plotWidth  = 6.4 * vg.Inch
	plotHeight = 4.8 * vg.Inch
)

// ScatterPlot draws predicted against actual values with the y = x reference
// line and writes the image to path. The format follows the extension.
func ScatterPlot(path string, actual, predicted []float64) error {
	if len(actual) == 0 {
		return errors.New("scatter plot: no points")
	}
	if len(actual) != len(predicted) {
		return fmt.Errorf("scatter plot: %d actual values, %d predicted", len(actual), len(predicted))
	}

	p := plot.New()
	p.X.Label.Text = "Real value"
	p.Y.Label.Text = "Predicted value"

	pts := make(plotter.XYs, len(actual))
	for i := range actual {
		pts[i].X = actual[i]
		pts[i].Y = predicted[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("scatter plot: %w", err)
	}
	s.GlyphStyle.Color = color.Black
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(s)

	lo, hi := floats.Min(actual), floats.Max(actual)
	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return fmt.Errorf("scatter plot: reference line: %w", err)
	}
	l.LineStyle.Color = color.RGBA{B: 255, A: 255}
	l.LineStyle.Width = vg.Points(3)
	p.Add(l)

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("scatter plot: save %s: %w", path, err)
	}
	return nil
}
