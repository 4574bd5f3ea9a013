package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
	"github.com/banshee-data/trajectory.report/internal/security"
)

// DistancePlotMaxMM is the default upper y limit of distance plots. Larger
// distances widen the axis instead of being clipped.
const DistancePlotMaxMM = 5.0

// DistancePlot scatters each trajectory's distance from its optimal line
// against its trial number, one series per destination.
func DistancePlot(expName string, distances []l5cohort.LineDistance) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Distance from optimal trajectory\n" + expName
	p.X.Label.Text = "Trial number"
	p.Y.Label.Text = "Distance from optimal tra. (mm)"
	p.Legend.Top = true

	maxMM := DistancePlotMaxMM
	for _, d := range []behaviour.Destination{behaviour.DestinationLeft, behaviour.DestinationRight} {
		var xys plotter.XYs
		for _, ld := range distances {
			if ld.Destination != d {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(ld.Trial), Y: ld.MM})
			if ld.MM > maxMM {
				maxMM = ld.MM
			}
		}
		if len(xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("distance %s: %w", d, err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Color = destinationColor(d)
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("%s tra.", d), s)
	}

	p.Y.Min = 0
	p.Y.Max = maxMM
	if p.X.Min > p.X.Max {
		p.X.Min, p.X.Max = 0, 1
	}
	return p, nil
}

// DistancePlotName is the file name of a recording's distance plot.
func DistancePlotName(expName string) string {
	return security.SanitizeFilename(expName) + "_dist.pdf"
}
