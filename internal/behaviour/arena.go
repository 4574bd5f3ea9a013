package behaviour

import (
	"encoding/json"
	"fmt"
	"math"
)

//
// 0) Coordinates
//

// Point2D is a pixel coordinate in the camera image. Either component may be
// NaN when the source keypoint was below its confidence threshold.
type Point2D struct {
	X float64
	Y float64
}

// NaNPoint returns a point with both coordinates unset.
func NaNPoint() Point2D { return Point2D{X: math.NaN(), Y: math.NaN()} }

// IsNaN reports whether either coordinate is NaN.
func (p Point2D) IsNaN() bool { return math.IsNaN(p.X) || math.IsNaN(p.Y) }

// DistanceTo returns the Euclidean distance in pixels. NaN propagates.
func (p Point2D) DistanceTo(q Point2D) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// MarshalJSON encodes the point as [x, y] with null for NaN components.
func (p Point2D) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*float64{nanToNil(p.X), nanToNil(p.Y)})
}

// UnmarshalJSON decodes [x, y], mapping null back to NaN.
func (p *Point2D) UnmarshalJSON(data []byte) error {
	var raw [2]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	p.X, p.Y = nilToNaN(raw[0]), nilToNaN(raw[1])
	return nil
}

//
// 1) Ports
//

// PortName identifies one of the three reward ports.
type PortName string

const (
	PortCenter PortName = "center"
	PortLeft   PortName = "left"
	PortRight  PortName = "right"
)

// PortLocation is the centroid of a named port for one recording. It is a
// value type and is never mutated after the locator returns it.
type PortLocation struct {
	Name PortName
	Point2D
}

// PortSet bundles the three port centroids of a recording.
type PortSet struct {
	Center PortLocation `json:"center"`
	Left   PortLocation `json:"left"`
	Right  PortLocation `json:"right"`
}

// All returns the ports in center, left, right order.
func (s PortSet) All() []PortLocation {
	return []PortLocation{s.Center, s.Left, s.Right}
}

// Side returns the port for a destination.
func (s PortSet) Side(d Destination) PortLocation {
	if d == DestinationLeft {
		return s.Left
	}
	return s.Right
}

// MarshalJSON writes the port as its bare [x, y] pair.
func (p PortLocation) MarshalJSON() ([]byte, error) { return p.Point2D.MarshalJSON() }

// UnmarshalJSON reads a bare [x, y] pair. The name is restored by PortSet.
func (p *PortLocation) UnmarshalJSON(data []byte) error { return p.Point2D.UnmarshalJSON(data) }

// UnmarshalJSON restores port names after decoding the coordinates.
func (s *PortSet) UnmarshalJSON(data []byte) error {
	type plain PortSet
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = PortSet(v)
	s.Center.Name, s.Left.Name, s.Right.Name = PortCenter, PortLeft, PortRight
	return nil
}

//
// 2) Raw nose track
//

// Frame is one video frame of the nose keypoint.
type Frame struct {
	Index int
	Nose  Point2D
}

// RawTrack is the ordered per-frame nose series of one recording. The core
// only reads it.
type RawTrack []Frame

//
// 3) Trajectories
//

// Destination is the side port a trajectory ended in.
type Destination string

const (
	DestinationLeft  Destination = "left"
	DestinationRight Destination = "right"
)

// Sample is one (x, y, frame_index) entry of a trajectory. It is persisted as
// a three-element array.
type Sample struct {
	X     float64
	Y     float64
	Frame int
}

// Point returns the sample position.
func (s Sample) Point() Point2D { return Point2D{X: s.X, Y: s.Y} }

// MarshalJSON encodes the sample as [x, y, frame]; NaN coordinates become null.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{nanToNil(s.X), nanToNil(s.Y), s.Frame})
}

// UnmarshalJSON decodes [x, y, frame]. Frame indices written as floats by
// other tools are accepted when integral.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode sample: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("decode sample: want 3 elements, got %d", len(raw))
	}
	if raw[2] == nil || *raw[2] != math.Trunc(*raw[2]) {
		return fmt.Errorf("decode sample: frame index must be an integer")
	}
	s.X, s.Y, s.Frame = nilToNaN(raw[0]), nilToNaN(raw[1]), int(*raw[2])
	return nil
}

// Trajectory is a contiguous run of samples from leaving the center port to
// entering a side port.
type Trajectory struct {
	Destination Destination
	Samples     []Sample
}

// Len returns the number of samples.
func (t Trajectory) Len() int { return len(t.Samples) }

// Points returns the sample positions in order.
func (t Trajectory) Points() []Point2D {
	pts := make([]Point2D, len(t.Samples))
	for i, s := range t.Samples {
		pts[i] = s.Point()
	}
	return pts
}

// FirstFrame returns the frame index of the first sample, or -1 when empty.
func (t Trajectory) FirstFrame() int {
	if len(t.Samples) == 0 {
		return -1
	}
	return t.Samples[0].Frame
}

// LastFrame returns the frame index of the last sample, or -1 when empty.
func (t Trajectory) LastFrame() int {
	if len(t.Samples) == 0 {
		return -1
	}
	return t.Samples[len(t.Samples)-1].Frame
}

// TrajectorySet is every trajectory extracted from one recording. All keeps
// emission order; Left and Right are its partitions by destination.
type TrajectorySet struct {
	Left  []Trajectory
	Right []Trajectory
	All   []Trajectory
}

// Add appends a trajectory to its partition and to the union.
func (s *TrajectorySet) Add(t Trajectory) {
	switch t.Destination {
	case DestinationLeft:
		s.Left = append(s.Left, t)
	case DestinationRight:
		s.Right = append(s.Right, t)
	}
	s.All = append(s.All, t)
}

// ByDestination returns the partition for a destination.
func (s *TrajectorySet) ByDestination(d Destination) []Trajectory {
	if d == DestinationLeft {
		return s.Left
	}
	return s.Right
}

// Len returns the number of trajectories in the union.
func (s *TrajectorySet) Len() int { return len(s.All) }

//
// 4) Recordings
//

// RecordingKey identifies one session of one animal.
type RecordingKey struct {
	Mouse    string `json:"mouse" yaml:"mouse"`
	Genotype string `json:"genotype" yaml:"genotype"`
	Session  string `json:"session" yaml:"session"`
}

// ExpName is the experiment name used for file naming: mouse, genotype and
// session concatenated without separators.
func (k RecordingKey) ExpName() string {
	return k.Mouse + k.Genotype + k.Session
}

func nanToNil(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func nilToNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
