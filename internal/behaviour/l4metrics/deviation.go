package l4metrics

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// Deviation is the result of comparing a trajectory set to its own average.
type Deviation struct {
	// Average is the pointwise mean of the resampled trajectories.
	Average []behaviour.Point2D
	// PerTrajectory is each trajectory's mean distance to Average, in mm.
	PerTrajectory []float64
	// Dispersion is each trajectory's distance to Average at the phase
	// index, in mm.
	Dispersion []float64
	PhaseIndex int
}

// MeanDeviation returns the mean of PerTrajectory.
func (d Deviation) MeanDeviation() float64 { return stat.Mean(d.PerTrajectory, nil) }

// MeanDispersion returns the mean of Dispersion.
func (d Deviation) MeanDispersion() float64 { return stat.Mean(d.Dispersion, nil) }

// AverageTrajectory resamples every trajectory to n points and returns the
// pointwise mean along with the resampled trajectories.
func AverageTrajectory(trajs []behaviour.Trajectory, n int) ([]behaviour.Point2D, [][]behaviour.Point2D, error) {
	if len(trajs) == 0 {
		return nil, nil, behaviour.ErrEmptySet
	}
	resampled := make([][]behaviour.Point2D, len(trajs))
	for i, t := range trajs {
		r, err := ResampleTrajectory(t, n)
		if err != nil {
			return nil, nil, fmt.Errorf("trajectory %d (frame %d): %w", i, t.FirstFrame(), err)
		}
		resampled[i] = r
	}

	avg := make([]behaviour.Point2D, n)
	xs := make([]float64, len(trajs))
	ys := make([]float64, len(trajs))
	for k := 0; k < n; k++ {
		for i, r := range resampled {
			xs[i], ys[i] = r[k].X, r[k].Y
		}
		avg[k] = behaviour.Point2D{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
	}
	return avg, resampled, nil
}

// DeviationFromAverage resamples every trajectory to n points, averages them
// and measures each trajectory against the average: its mean pointwise
// distance, and its distance at phaseIndex as the dispersion.
func DeviationFromAverage(trajs []behaviour.Trajectory, n, phaseIndex int, calib units.Calibration) (Deviation, error) {
	if phaseIndex < 0 || phaseIndex >= n {
		return Deviation{}, fmt.Errorf("phase index %d outside [0, %d)", phaseIndex, n)
	}
	avg, resampled, err := AverageTrajectory(trajs, n)
	if err != nil {
		return Deviation{}, err
	}

	dev := Deviation{
		Average:       avg,
		PerTrajectory: make([]float64, len(resampled)),
		Dispersion:    make([]float64, len(resampled)),
		PhaseIndex:    phaseIndex,
	}
	dist := make([]float64, n)
	for i, r := range resampled {
		for k := range r {
			dist[k] = r[k].DistanceTo(avg[k])
		}
		dev.PerTrajectory[i] = calib.PixelsToMillimeters(stat.Mean(dist, nil))
		dev.Dispersion[i] = calib.PixelsToMillimeters(dist[phaseIndex])
	}
	return dev, nil
}
