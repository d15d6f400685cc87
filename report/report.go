// Package report renders model diagnostics as image files. The output
// format follows the file extension (.png, .svg, .pdf, ...).
package report

import (
	"image/color"
	"math"

	"github.com/YuminosukeSato/watertemp/explain/lime"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Figure size.
const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch
)

var (
	positiveColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	negativeColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	identityColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// PlotPredictions draws predicted against observed values with the 1:1
// line for reference.
func PlotPredictions(yTrue, yPred mat.Vector, path string) error {
	n := yTrue.Len()
	if n == 0 {
		return errors.NewValueError("PlotPredictions", "no values to plot")
	}
	if yPred.Len() != n {
		return errors.NewDimensionError("PlotPredictions", n, yPred.Len(), 0)
	}

	pts := make(plotter.XYs, n)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range pts {
		pts[i].X, pts[i].Y = yTrue.AtVec(i), yPred.AtVec(i)
		lo = math.Min(lo, math.Min(pts[i].X, pts[i].Y))
		hi = math.Max(hi, math.Max(pts[i].X, pts[i].Y))
	}

	p := plot.New()
	p.Title.Text = "Observed vs predicted"
	p.X.Label.Text = "observed"
	p.Y.Label.Text = "predicted"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "scatter")
	}
	identity, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "identity line")
	}
	identity.Color = identityColor
	identity.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(plotter.NewGrid(), identity, scatter)

	return save(p, path, "predictions")
}

// PlotLossCurve draws the training loss per epoch.
func PlotLossCurve(curve []float64, path string) error {
	if len(curve) == 0 {
		return errors.NewValueError("PlotLossCurve", "loss curve is empty")
	}
	pts := make(plotter.XYs, len(curve))
	for i, v := range curve {
		pts[i].X, pts[i].Y = float64(i+1), v
	}

	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "loss line")
	}
	p.Add(plotter.NewGrid(), line)

	return save(p, path, "loss_curve")
}

// PlotExplanation draws the LIME weights of label as horizontal bars, the
// strongest feature on top, positive weights green and negative red.
func PlotExplanation(exp *lime.Explanation, label int, path string) error {
	if exp == nil {
		return errors.NewValueError("PlotExplanation", "explanation is nil")
	}
	list, err := exp.AsList(label)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return errors.NewValueError("PlotExplanation", "explanation has no features")
	}

	n := len(list)
	pos := make(plotter.Values, n)
	neg := make(plotter.Values, n)
	names := make([]string, n)
	for i, fw := range list {
		k := n - 1 - i
		names[k] = fw.Feature
		if fw.Weight >= 0 {
			pos[k] = fw.Weight
		} else {
			neg[k] = fw.Weight
		}
	}

	p := plot.New()
	p.Title.Text = "Local explanation"
	if exp.Mode == lime.ModeClassification && label < len(exp.ClassNames) {
		p.Title.Text += " for class " + exp.ClassNames[label]
	}
	p.X.Label.Text = "weight"

	barWidth := vg.Points(14)
	for _, bars := range []struct {
		values plotter.Values
		color  color.Color
	}{{pos, positiveColor}, {neg, negativeColor}} {
		bc, err := plotter.NewBarChart(bars.values, barWidth)
		if err != nil {
			return errors.Wrap(err, "bar chart")
		}
		bc.Horizontal = true
		bc.Color = bars.color
		bc.LineStyle.Width = 0
		p.Add(bc)
	}
	p.NominalY(names...)

	return save(p, path, "explanation")
}

func save(p *plot.Plot, path, kind string) error {
	if path == "" {
		return errors.NewValidationError("path", "must not be empty", path)
	}
	if err := p.Save(width, height, path); err != nil {
		return errors.Wrapf(err, "save %s plot", kind)
	}
	log.GetLoggerWithName("report").Debug("Plot saved",
		log.ComponentKey, kind,
		log.PathKey, path,
	)
	return nil
}
