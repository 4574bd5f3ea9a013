package l4metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// AverageSpeed is the mean distance between consecutive samples, scaled by
// the frame rate and converted to metres per second.
func AverageSpeed(points []behaviour.Point2D, fps float64, calib units.Calibration) (float64, error) {
	if len(points) < 2 {
		return 0, fmt.Errorf("%w: speed needs at least 2 samples, got %d", behaviour.ErrInsufficientSamples, len(points))
	}
	steps := make([]float64, len(points)-1)
	for i := 1; i < len(points); i++ {
		steps[i-1] = points[i].DistanceTo(points[i-1])
	}
	return calib.PixelsPerFrameToMPS(stat.Mean(steps, nil), fps), nil
}

// DistanceToLine is the mean perpendicular distance from each point to the
// infinite line through p1 and p2, in millimeters. The line is undirected.
func DistanceToLine(points []behaviour.Point2D, p1, p2 behaviour.Point2D, calib units.Calibration) (float64, error) {
	if len(points) == 0 {
		return 0, fmt.Errorf("%w: distance to line needs at least 1 sample", behaviour.ErrInsufficientSamples)
	}
	norm := math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
	if !(norm > 0) {
		return 0, fmt.Errorf("%w: (%.2f, %.2f) and (%.2f, %.2f)", behaviour.ErrDegenerateLine, p1.X, p1.Y, p2.X, p2.Y)
	}
	d := make([]float64, len(points))
	for i, p := range points {
		d[i] = math.Abs((p2.X-p1.X)*(p1.Y-p.Y)-(p1.X-p.X)*(p2.Y-p1.Y)) / norm
	}
	return calib.PixelsToMillimeters(stat.Mean(d, nil)), nil
}
