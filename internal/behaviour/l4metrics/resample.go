package l4metrics

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
)

// Resample linearly interpolates x and y independently over a normalised time
// axis [0, 1] spanning the original samples and evaluates it at n evenly
// spaced parameter values. n == 1 returns the first point.
func Resample(points []behaviour.Point2D, n int) ([]behaviour.Point2D, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: resample needs at least 2 samples, got %d", behaviour.ErrInsufficientSamples, len(points))
	}
	if n < 1 {
		return nil, fmt.Errorf("resample point count must be positive, got %d", n)
	}

	t := linspace(len(points))
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}

	var fx, fy interp.PiecewiseLinear
	if err := fx.Fit(t, xs); err != nil {
		return nil, fmt.Errorf("fit x: %w", err)
	}
	if err := fy.Fit(t, ys); err != nil {
		return nil, fmt.Errorf("fit y: %w", err)
	}

	out := make([]behaviour.Point2D, n)
	for i, u := range linspace(n) {
		out[i] = behaviour.Point2D{X: fx.Predict(u), Y: fy.Predict(u)}
	}
	return out, nil
}

// ResampleTrajectory resamples a trajectory's positions.
func ResampleTrajectory(t behaviour.Trajectory, n int) ([]behaviour.Point2D, error) {
	return Resample(t.Points(), n)
}

// linspace returns n evenly spaced values on [0, 1]; n == 1 gives [0].
func linspace(n int) []float64 {
	if n == 1 {
		return []float64{0}
	}
	return floats.Span(make([]float64, n), 0, 1)
}
