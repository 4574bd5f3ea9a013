package behaviour

import (
	"errors"
	"fmt"
)

var (
	// ErrUnusablePort means a port centroid could not be computed because no
	// frame reached the confidence threshold.
	ErrUnusablePort = errors.New("unusable port location")

	// ErrPortGeometry means two ports are too close for their proximity
	// radii to be disjoint.
	ErrPortGeometry = errors.New("invalid port geometry")

	// ErrInsufficientSamples is returned by metrics that need at least two
	// samples.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrDegenerateLine is returned when a reference line is defined by two
	// coincident points.
	ErrDegenerateLine = errors.New("degenerate reference line")

	// ErrEmptySet is returned by set-level metrics given no trajectories.
	ErrEmptySet = errors.New("empty trajectory set")

	// ErrNoSource marks a recording without a pose file or trajectory record.
	ErrNoSource = errors.New("recording has no source")
)

// SimultaneousPortError reports a frame judged inside the center port and a
// side port at once. It aborts extraction for the recording.
type SimultaneousPortError struct {
	Frame       int
	Side        PortName
	CenterDist  float64
	SideDist    float64
	ThresholdPx float64
}

func (e *SimultaneousPortError) Error() string {
	return fmt.Sprintf("frame %d: nose within %.1fpx of center (%.2fpx) and %s (%.2fpx) port",
		e.Frame, e.ThresholdPx, e.CenterDist, e.Side, e.SideDist)
}

// Is lets errors.Is(err, ErrPortGeometry) match simultaneous-port failures,
// which always indicate overlapping port radii.
func (e *SimultaneousPortError) Is(target error) bool {
	return target == ErrPortGeometry
}
