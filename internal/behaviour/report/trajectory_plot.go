package report

import (
	"bytes"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l4metrics"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/security"
)

// PlotSize is the edge length of saved trajectory plots.
const PlotSize = 6 * vg.Inch

var (
	leftColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rightColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	portColor   = color.RGBA{A: 255}
	averageDash = []vg.Length{vg.Points(6), vg.Points(3)}
)

func destinationColor(d behaviour.Destination) color.Color {
	if d == behaviour.DestinationRight {
		return rightColor
	}
	return leftColor
}

// finiteXYs drops NaN samples; plotter rejects them.
func finiteXYs(points []behaviour.Point2D) plotter.XYs {
	xys := make(plotter.XYs, 0, len(points))
	for _, p := range points {
		if p.IsNaN() {
			continue
		}
		xys = append(xys, plotter.XY{X: p.X, Y: p.Y})
	}
	return xys
}

// TrajectoryPlot draws every trajectory of a recording in image coordinates
// (y grows downward), the three ports with their proximity radius, and the
// average trajectory per destination as a dashed line.
func TrajectoryPlot(title string, set behaviour.TrajectorySet, ports behaviour.PortSet, averages map[behaviour.Destination]l4metrics.Deviation, thresholdPx float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Legend.Top = true

	for _, d := range []behaviour.Destination{behaviour.DestinationLeft, behaviour.DestinationRight} {
		trajs := set.ByDestination(d)
		for i, t := range trajs {
			xys := finiteXYs(t.Points())
			if len(xys) == 0 {
				continue
			}
			line, err := plotter.NewLine(xys)
			if err != nil {
				return nil, fmt.Errorf("trajectory %s/%d: %w", d, i, err)
			}
			line.Color = destinationColor(d)
			line.Width = vg.Points(0.75)
			p.Add(line)
			if i == 0 {
				p.Legend.Add(fmt.Sprintf("%s (%d)", d, len(trajs)), line)
			}
		}

		dev, ok := averages[d]
		if !ok || len(dev.Average) == 0 {
			continue
		}
		avg, err := plotter.NewLine(finiteXYs(dev.Average))
		if err != nil {
			return nil, fmt.Errorf("average %s: %w", d, err)
		}
		avg.Color = destinationColor(d)
		avg.Width = vg.Points(2.5)
		avg.Dashes = averageDash
		p.Add(avg)
		p.Legend.Add(fmt.Sprintf("%s average", d), avg)
	}

	portXYs := finiteXYs([]behaviour.Point2D{ports.Center.Point2D, ports.Left.Point2D, ports.Right.Point2D})
	if len(portXYs) > 0 {
		marks, err := plotter.NewScatter(portXYs)
		if err != nil {
			return nil, fmt.Errorf("ports: %w", err)
		}
		marks.GlyphStyle.Shape = draw.CircleGlyph{}
		marks.GlyphStyle.Color = portColor
		marks.GlyphStyle.Radius = vg.Points(3)
		p.Add(marks)

		radius, err := plotter.NewScatter(portXYs)
		if err != nil {
			return nil, fmt.Errorf("port radius: %w", err)
		}
		radius.GlyphStyle.Shape = draw.RingGlyph{}
		radius.GlyphStyle.Color = portColor
		radius.GlyphStyle.Radius = radiusLength(p, thresholdPx)
		p.Add(radius)
		p.Legend.Add("ports", marks)
	}

	return p, nil
}

// radiusLength approximates a data-space radius as a canvas length for a
// plot of PlotSize, using the wider of the two axis ranges.
func radiusLength(p *plot.Plot, px float64) vg.Length {
	span := p.X.Max - p.X.Min
	if ys := p.Y.Max - p.Y.Min; ys > span {
		span = ys
	}
	if !(span > 0) || !(px > 0) {
		return vg.Points(3)
	}
	return vg.Length(px / span * float64(PlotSize))
}

// WritePlot saves p atomically. The format follows the file extension (png,
// svg, pdf, eps, jpg or tif).
func WritePlot(p *plot.Plot, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return fmt.Errorf("plot %s: no file extension", path)
	}
	wt, err := p.WriterTo(PlotSize, PlotSize, format)
	if err != nil {
		return fmt.Errorf("plot %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes())
}

// TrajectoryPlotName is the file name of a recording's trajectory plot.
func TrajectoryPlotName(expName string) string {
	return security.SanitizeFilename(expName) + "_trajectories.png"
}
