package l5cohort

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l3segments"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l4metrics"
	"github.com/banshee-data/trajectory.report/internal/config"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// Metric names, also used as summary table columns.
const (
	MetricNumTra          = "num_tra"
	MetricNumLeftTra      = "num_left_tra"
	MetricNumRightTra     = "num_right_tra"
	MetricAvgTraDis       = "avg_tra_dis"   // mm
	MetricAvgTraVel       = "avg_tra_vel"   // m/s
	MetricAvgDevLeft      = "avg_dev_left"  // mm
	MetricAvgDevRight     = "avg_dev_right" // mm
	MetricAvgDev          = "avg_dev"       // mm
	MetricDispersionLeft  = "dispersion_left"
	MetricDispersionRight = "dispersion_right"
	MetricNumAborted      = "num_aborted"
	MetricNumTooLong      = "num_too_long"
)

// Metrics lists every metric in column order.
var Metrics = []string{
	MetricNumTra, MetricNumLeftTra, MetricNumRightTra,
	MetricAvgTraDis, MetricAvgTraVel,
	MetricAvgDevLeft, MetricAvgDevRight, MetricAvgDev,
	MetricDispersionLeft, MetricDispersionRight,
	MetricNumAborted, MetricNumTooLong,
}

// MetricUnit returns the display unit of a metric.
func MetricUnit(name string) string {
	switch name {
	case MetricAvgTraVel:
		return "m/s"
	case MetricAvgTraDis, MetricAvgDevLeft, MetricAvgDevRight, MetricAvgDev,
		MetricDispersionLeft, MetricDispersionRight:
		return "mm"
	default:
		return "count"
	}
}

// RecordingSummary maps metric names to values for one recording. A metric
// that could not be computed is absent, never zero.
type RecordingSummary struct {
	Key    behaviour.RecordingKey
	values map[string]float64
}

// NewRecordingSummary returns an empty summary for a recording.
func NewRecordingSummary(key behaviour.RecordingKey) *RecordingSummary {
	return &RecordingSummary{Key: key, values: make(map[string]float64)}
}

// Set records a metric value.
func (s *RecordingSummary) Set(name string, v float64) {
	if s.values == nil {
		s.values = make(map[string]float64)
	}
	s.values[name] = v
}

// Value returns a metric and whether it is set.
func (s *RecordingSummary) Value(name string) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Values returns a copy of the set metrics.
func (s *RecordingSummary) Values() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Params are the fixed system parameters the metrics depend on.
type Params struct {
	FPS             float64
	Calibration     units.Calibration
	ResamplePoints  int
	DispersionIndex int
}

// ParamsFromTuning extracts metric parameters from a tuning config.
func ParamsFromTuning(c *config.TuningConfig) Params {
	return Params{
		FPS:             c.GetFrameRateFPS(),
		Calibration:     units.Calibration{Pixels: c.GetCalibrationPixels(), Meters: c.GetCalibrationMeters()},
		ResamplePoints:  c.GetResamplePoints(),
		DispersionIndex: c.GetDispersionIndex(),
	}
}

// Analysis is a recording summary plus the intermediate results reports use.
type Analysis struct {
	Summary *RecordingSummary
	// Distances holds each finite trajectory's distance to its port line,
	// in the order of TrajectorySet.All.
	Distances []LineDistance
	// Deviations are per destination; absent when no trajectory qualifies.
	Deviations map[behaviour.Destination]l4metrics.Deviation
	// Excluded counts trajectories left out of speed and deviation metrics
	// for having fewer than two samples or a NaN sample. Single-sample
	// trajectories still count towards the line distance.
	Excluded int
}

// LineDistance is one trajectory's mean distance to the straight line from
// the center port to its destination port. Trial is the trajectory's
// 1-based position among the recording's trajectories to Destination.
type LineDistance struct {
	Destination behaviour.Destination
	Trial       int
	MM          float64
}

// DistancesTo returns the line distances of trajectories to d.
func (a *Analysis) DistancesTo(d behaviour.Destination) []LineDistance {
	var out []LineDistance
	for _, ld := range a.Distances {
		if ld.Destination == d {
			out = append(out, ld)
		}
	}
	return out
}

func finite(t behaviour.Trajectory) bool {
	for _, s := range t.Samples {
		if s.Point().IsNaN() {
			return false
		}
	}
	return true
}

// usable reports whether a trajectory can feed speed and resample metrics.
func usable(t behaviour.Trajectory) bool {
	return t.Len() >= 2 && finite(t)
}

// Summarize computes every metric for one recording's trajectory set. stats
// is optional; episode counters are set only when it is non-nil.
func Summarize(key behaviour.RecordingKey, set behaviour.TrajectorySet, ports behaviour.PortSet, stats *l3segments.Stats, p Params) (*Analysis, error) {
	if err := p.Calibration.Validate(); err != nil {
		return nil, err
	}
	sum := NewRecordingSummary(key)
	a := &Analysis{Summary: sum, Deviations: make(map[behaviour.Destination]l4metrics.Deviation)}

	sum.Set(MetricNumTra, float64(len(set.All)))
	sum.Set(MetricNumLeftTra, float64(len(set.Left)))
	sum.Set(MetricNumRightTra, float64(len(set.Right)))
	if stats != nil {
		sum.Set(MetricNumAborted, float64(stats.Aborted))
		sum.Set(MetricNumTooLong, float64(stats.TooLong))
	}

	var speeds, distances []float64
	trials := make(map[behaviour.Destination]int)
	for _, t := range set.All {
		trials[t.Destination]++
		if !usable(t) {
			a.Excluded++
		}
		if !finite(t) {
			continue
		}
		side := ports.Side(t.Destination)
		d, err := l4metrics.DistanceToLine(t.Points(), ports.Center.Point2D, side.Point2D, p.Calibration)
		if err != nil {
			return nil, fmt.Errorf("%s: distance to %s line: %w", key.ExpName(), t.Destination, err)
		}
		a.Distances = append(a.Distances, LineDistance{Destination: t.Destination, Trial: trials[t.Destination], MM: d})
		distances = append(distances, d)

		if t.Len() < 2 {
			continue
		}
		v, err := l4metrics.AverageSpeed(t.Points(), p.FPS, p.Calibration)
		if err != nil {
			return nil, fmt.Errorf("%s: speed: %w", key.ExpName(), err)
		}
		speeds = append(speeds, v)
	}
	if len(distances) > 0 {
		sum.Set(MetricAvgTraDis, stat.Mean(distances, nil))
	}
	if len(speeds) > 0 {
		sum.Set(MetricAvgTraVel, stat.Mean(speeds, nil))
	}

	var allDev []float64
	sides := []struct {
		dest       behaviour.Destination
		devName    string
		dispersion string
	}{
		{behaviour.DestinationLeft, MetricAvgDevLeft, MetricDispersionLeft},
		{behaviour.DestinationRight, MetricAvgDevRight, MetricDispersionRight},
	}
	for _, s := range sides {
		var trajs []behaviour.Trajectory
		for _, t := range set.ByDestination(s.dest) {
			if usable(t) {
				trajs = append(trajs, t)
			}
		}
		dev, err := l4metrics.DeviationFromAverage(trajs, p.ResamplePoints, p.DispersionIndex, p.Calibration)
		if errors.Is(err, behaviour.ErrEmptySet) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %s deviation: %w", key.ExpName(), s.dest, err)
		}
		a.Deviations[s.dest] = dev
		sum.Set(s.devName, dev.MeanDeviation())
		sum.Set(s.dispersion, dev.MeanDispersion())
		allDev = append(allDev, dev.PerTrajectory...)
	}
	if len(allDev) > 0 {
		sum.Set(MetricAvgDev, stat.Mean(allDev, nil))
	}

	return a, nil
}
