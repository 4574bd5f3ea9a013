// Package l1pose reads per-frame pose-estimation output into keypoint series.
//
// The input is the multi-row-header CSV written by the pose estimator: a
// scorer row, a bodyparts row and a coords row (x, y, likelihood), followed
// by one row per video frame whose first column is the frame index.
package l1pose

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
)

// Keypoint names used by the two-odour rig.
const (
	KeypointNose       = "nose"
	KeypointCenterPort = "centerport"
	KeypointLeftPort   = "leftport"
	KeypointRightPort  = "rightport"
)

// RequiredKeypoints must be present in every pose table.
var RequiredKeypoints = []string{KeypointNose, KeypointCenterPort, KeypointLeftPort, KeypointRightPort}

// ErrMissingKeypoint is returned when a required body part column is absent.
var ErrMissingKeypoint = errors.New("missing keypoint")

// KeypointSample is one frame of one keypoint.
type KeypointSample struct {
	X          float64
	Y          float64
	Likelihood float64
}

// Point returns the sample position.
func (s KeypointSample) Point() behaviour.Point2D {
	return behaviour.Point2D{X: s.X, Y: s.Y}
}

// PoseTable holds every keypoint series of one recording, indexed by frame.
type PoseTable struct {
	Scorer    string
	Frames    []int
	keypoints map[string][]KeypointSample
	order     []string
}

// Keypoints returns the keypoint names in column order.
func (t *PoseTable) Keypoints() []string {
	return append([]string(nil), t.order...)
}

// Keypoint returns the per-frame series for a body part.
func (t *PoseTable) Keypoint(name string) ([]KeypointSample, error) {
	s, ok := t.keypoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingKeypoint, name)
	}
	return s, nil
}

// Len returns the number of frames.
func (t *PoseTable) Len() int { return len(t.Frames) }

// NoseTrack returns the nose series as a RawTrack. Frames whose likelihood is
// below minLikelihood become NaN points; minLikelihood <= 0 keeps every frame.
func (t *PoseTable) NoseTrack(minLikelihood float64) (behaviour.RawTrack, error) {
	nose, err := t.Keypoint(KeypointNose)
	if err != nil {
		return nil, err
	}
	track := make(behaviour.RawTrack, len(nose))
	for i, s := range nose {
		p := s.Point()
		if minLikelihood > 0 && !(s.Likelihood >= minLikelihood) {
			p = behaviour.NaNPoint()
		}
		track[i] = behaviour.Frame{Index: t.Frames[i], Nose: p}
	}
	return track, nil
}

// ReadFile opens and parses a pose CSV.
func ReadFile(path string) (*PoseTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pose file: %w", err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

type column struct {
	part  string
	coord string
}

// Read parses a pose CSV and checks the required keypoints are present.
func Read(r io.Reader) (*PoseTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header := make([][]string, 3)
	for i := range header {
		rec, err := cr.Read()
		if err != nil {
			return nil, fmt.Errorf("read header row %d: %w", i+1, err)
		}
		header[i] = rec
	}
	if len(header[1]) != len(header[2]) {
		return nil, fmt.Errorf("bodyparts row has %d columns, coords row has %d", len(header[1]), len(header[2]))
	}

	t := &PoseTable{keypoints: make(map[string][]KeypointSample)}
	if len(header[0]) > 1 {
		t.Scorer = header[0][1]
	}

	cols := make([]column, len(header[1]))
	seen := make(map[string]bool)
	for i := 1; i < len(header[1]); i++ {
		c := column{part: strings.TrimSpace(header[1][i]), coord: strings.TrimSpace(header[2][i])}
		switch c.coord {
		case "x", "y", "likelihood":
		default:
			return nil, fmt.Errorf("column %d: unknown coordinate %q", i, c.coord)
		}
		cols[i] = c
		if !seen[c.part] {
			seen[c.part] = true
			t.order = append(t.order, c.part)
			t.keypoints[c.part] = []KeypointSample{}
		}
	}

	for line := 4; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) != len(cols) {
			return nil, fmt.Errorf("line %d: %d columns, want %d", line, len(rec), len(cols))
		}

		frame, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: frame index: %w", line, err)
		}
		t.Frames = append(t.Frames, frame)

		row := make(map[string]*KeypointSample, len(t.order))
		for _, part := range t.order {
			row[part] = &KeypointSample{X: math.NaN(), Y: math.NaN(), Likelihood: math.NaN()}
		}
		for i := 1; i < len(rec); i++ {
			v, err := parseCell(rec[i])
			if err != nil {
				return nil, fmt.Errorf("line %d, %s.%s: %w", line, cols[i].part, cols[i].coord, err)
			}
			s := row[cols[i].part]
			switch cols[i].coord {
			case "x":
				s.X = v
			case "y":
				s.Y = v
			case "likelihood":
				s.Likelihood = v
			}
		}
		for _, part := range t.order {
			t.keypoints[part] = append(t.keypoints[part], *row[part])
		}
	}

	for _, name := range RequiredKeypoints {
		if _, ok := t.keypoints[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingKeypoint, name)
		}
	}
	return t, nil
}

// parseCell reads a numeric cell; empty and "nan" cells are NaN.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
