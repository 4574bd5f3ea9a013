package l3segments

import (
	"fmt"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/config"
)

// State is the segmenter's episode state.
type State int

const (
	// StateWaiting: no consecutive in-center frames yet.
	StateWaiting State = iota
	// StateArming: counting consecutive in-center frames.
	StateArming
	// StateArmed: armed, nose still at the center port.
	StateArmed
	// StateRecording: left the center after arming, buffering samples.
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateArming:
		return "arming"
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the segmentation parameters.
type Config struct {
	ThresholdPx  float64 // port entry radius, strict less-than
	ArmingFrames int     // consecutive in-center frames needed to arm
	MaxFrames    int     // longest trajectory kept, in samples
}

// DefaultConfig returns the rig defaults: 5 px, 5 frames, 4 s at 84 fps.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning extracts the segmentation parameters from a tuning config.
func ConfigFromTuning(c *config.TuningConfig) Config {
	return Config{
		ThresholdPx:  c.GetProximityThresholdPx(),
		ArmingFrames: c.GetArmingFrames(),
		MaxFrames:    c.MaxTrajectoryFrames(),
	}
}

// Stats counts episode outcomes for one recording.
type Stats struct {
	Frames       int `json:"frames"`
	Armed        int `json:"armed"`
	Aborted      int `json:"aborted"`
	TooLong      int `json:"too_long"`
	EmittedLeft  int `json:"emitted_left"`
	EmittedRight int `json:"emitted_right"`
}

// Emitted returns the number of trajectories kept.
func (s Stats) Emitted() int { return s.EmittedLeft + s.EmittedRight }

// Outcome is what a single Step did to the current episode.
type Outcome int

const (
	OutcomeNone Outcome = iota // episode continues
	OutcomeArmed
	OutcomeAborted
	OutcomeTooLong
	OutcomeEmitted
)

// Segmenter is the per-recording state machine. Episode-scoped fields are
// reset together whenever an episode ends. A Segmenter is not safe for
// concurrent use; create one per recording.
type Segmenter struct {
	cfg   Config
	ports behaviour.PortSet

	state      State
	centerRun  int
	buffer     []behaviour.Sample
	trajectory behaviour.TrajectorySet
	stats      Stats
}

// New returns a Segmenter for one recording's ports.
func New(cfg Config, ports behaviour.PortSet) (*Segmenter, error) {
	if !(cfg.ThresholdPx > 0) {
		return nil, fmt.Errorf("threshold must be positive, got %v", cfg.ThresholdPx)
	}
	if cfg.ArmingFrames < 1 {
		return nil, fmt.Errorf("arming frames must be at least 1, got %d", cfg.ArmingFrames)
	}
	if cfg.MaxFrames < 1 {
		return nil, fmt.Errorf("max frames must be at least 1, got %d", cfg.MaxFrames)
	}
	for _, p := range ports.All() {
		if p.IsNaN() {
			return nil, fmt.Errorf("%w: %s port is NaN", behaviour.ErrUnusablePort, p.Name)
		}
	}
	return &Segmenter{cfg: cfg, ports: ports}, nil
}

// State returns the current episode state.
func (s *Segmenter) State() State { return s.state }

// Stats returns the counters accumulated so far.
func (s *Segmenter) Stats() Stats { return s.stats }

// Trajectories returns the trajectories emitted so far.
func (s *Segmenter) Trajectories() behaviour.TrajectorySet { return s.trajectory }

// Step advances the machine by one frame. A nose inside the center and a side
// radius at once fails with *behaviour.SimultaneousPortError.
func (s *Segmenter) Step(f behaviour.Frame) (Outcome, error) {
	s.stats.Frames++

	dc := f.Nose.DistanceTo(s.ports.Center.Point2D)
	dl := f.Nose.DistanceTo(s.ports.Left.Point2D)
	dr := f.Nose.DistanceTo(s.ports.Right.Point2D)
	inCenter := dc < s.cfg.ThresholdPx
	inLeft := dl < s.cfg.ThresholdPx
	inRight := dr < s.cfg.ThresholdPx

	if inCenter && (inLeft || inRight) {
		side, sd := behaviour.PortLeft, dl
		if !inLeft {
			side, sd = behaviour.PortRight, dr
		}
		return OutcomeNone, &behaviour.SimultaneousPortError{
			Frame: f.Index, Side: side, CenterDist: dc, SideDist: sd, ThresholdPx: s.cfg.ThresholdPx,
		}
	}

	switch s.state {
	case StateWaiting, StateArming:
		if !inCenter {
			s.centerRun = 0
			s.state = StateWaiting
			return OutcomeNone, nil
		}
		s.centerRun++
		s.state = StateArming
		if s.centerRun >= s.cfg.ArmingFrames {
			s.state = StateArmed
			s.stats.Armed++
			return OutcomeArmed, nil
		}
		return OutcomeNone, nil

	case StateArmed:
		if inCenter {
			s.centerRun++
			return OutcomeNone, nil
		}
		s.state = StateRecording
		s.centerRun = 0
		return s.record(f, inCenter, inLeft, inRight), nil

	case StateRecording:
		return s.record(f, inCenter, inLeft, inRight), nil
	}
	return OutcomeNone, nil
}

// record appends the frame to the buffer and ends the episode on a port entry.
func (s *Segmenter) record(f behaviour.Frame, inCenter, inLeft, inRight bool) Outcome {
	s.buffer = append(s.buffer, behaviour.Sample{X: f.Nose.X, Y: f.Nose.Y, Frame: f.Index})

	switch {
	case inCenter:
		s.stats.Aborted++
		s.reset()
		return OutcomeAborted
	case inLeft || inRight:
		dest := behaviour.DestinationLeft
		if inRight {
			dest = behaviour.DestinationRight
		}
		if len(s.buffer) > s.cfg.MaxFrames {
			s.stats.TooLong++
			s.reset()
			return OutcomeTooLong
		}
		s.trajectory.Add(behaviour.Trajectory{Destination: dest, Samples: s.buffer})
		if dest == behaviour.DestinationLeft {
			s.stats.EmittedLeft++
		} else {
			s.stats.EmittedRight++
		}
		s.buffer = nil
		s.reset()
		return OutcomeEmitted
	}
	return OutcomeNone
}

// reset ends the episode. The buffer is dropped, not truncated.
func (s *Segmenter) reset() {
	s.buffer = nil
	s.centerRun = 0
	s.state = StateWaiting
}

// Segment runs a fresh Segmenter over a whole track.
func Segment(cfg Config, ports behaviour.PortSet, track behaviour.RawTrack) (behaviour.TrajectorySet, Stats, error) {
	seg, err := New(cfg, ports)
	if err != nil {
		return behaviour.TrajectorySet{}, Stats{}, err
	}
	for _, f := range track {
		if _, err := seg.Step(f); err != nil {
			return behaviour.TrajectorySet{}, seg.Stats(), err
		}
	}
	return seg.Trajectories(), seg.Stats(), nil
}
