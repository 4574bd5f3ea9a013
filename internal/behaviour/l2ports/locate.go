package l2ports

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l1pose"
)

// Locator reduces one port keypoint series to a centroid.
type Locator interface {
	Locate(name behaviour.PortName, samples []l1pose.KeypointSample) behaviour.PortLocation
}

// ConfidenceLocator averages the frames whose likelihood reaches Threshold.
type ConfidenceLocator struct {
	Threshold float64
}

// Locate implements Locator.
func (l ConfidenceLocator) Locate(name behaviour.PortName, samples []l1pose.KeypointSample) behaviour.PortLocation {
	return LocatePort(name, samples, l.Threshold)
}

// MedianLocator takes the per-axis median of the frames whose likelihood
// reaches Threshold. It tolerates a few confident but misplaced detections.
type MedianLocator struct {
	Threshold float64
}

// Locate implements Locator.
func (l MedianLocator) Locate(name behaviour.PortName, samples []l1pose.KeypointSample) behaviour.PortLocation {
	xs, ys := confident(samples, l.Threshold)
	loc := behaviour.PortLocation{Name: name, Point2D: behaviour.NaNPoint()}
	if len(xs) == 0 {
		return loc
	}
	loc.X = median(xs)
	loc.Y = median(ys)
	return loc
}

// median sorts x in place. An even count averages the two middle values.
func median(x []float64) float64 {
	sort.Float64s(x)
	n := len(x)
	if n%2 == 1 {
		return x[n/2]
	}
	return (x[n/2-1] + x[n/2]) / 2
}

// LocatePort returns the mean position of the samples with likelihood at or
// above threshold. The result is NaN when no sample qualifies.
func LocatePort(name behaviour.PortName, samples []l1pose.KeypointSample, threshold float64) behaviour.PortLocation {
	xs, ys := confident(samples, threshold)
	loc := behaviour.PortLocation{Name: name, Point2D: behaviour.NaNPoint()}
	if len(xs) == 0 {
		return loc
	}
	loc.X = stat.Mean(xs, nil)
	loc.Y = stat.Mean(ys, nil)
	return loc
}

// confident keeps samples at or above threshold with finite coordinates.
func confident(samples []l1pose.KeypointSample, threshold float64) (xs, ys []float64) {
	for _, s := range samples {
		if !(s.Likelihood >= threshold) || math.IsNaN(s.X) || math.IsNaN(s.Y) {
			continue
		}
		xs = append(xs, s.X)
		ys = append(ys, s.Y)
	}
	return xs, ys
}

var keypointForPort = map[behaviour.PortName]string{
	behaviour.PortCenter: l1pose.KeypointCenterPort,
	behaviour.PortLeft:   l1pose.KeypointLeftPort,
	behaviour.PortRight:  l1pose.KeypointRightPort,
}

// LocateAll locates the three ports of a recording. A port with no usable
// frame fails with ErrUnusablePort.
func LocateAll(table *l1pose.PoseTable, loc Locator) (behaviour.PortSet, error) {
	var ports behaviour.PortSet
	for _, name := range []behaviour.PortName{behaviour.PortCenter, behaviour.PortLeft, behaviour.PortRight} {
		samples, err := table.Keypoint(keypointForPort[name])
		if err != nil {
			return behaviour.PortSet{}, err
		}
		p := loc.Locate(name, samples)
		if p.IsNaN() {
			return behaviour.PortSet{}, fmt.Errorf("%w: %s port has no frame above the confidence threshold", behaviour.ErrUnusablePort, name)
		}
		switch name {
		case behaviour.PortCenter:
			ports.Center = p
		case behaviour.PortLeft:
			ports.Left = p
		case behaviour.PortRight:
			ports.Right = p
		}
	}
	return ports, nil
}
