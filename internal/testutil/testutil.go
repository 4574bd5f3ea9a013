// Package testutil provides shared test utilities and fixtures.
//
// Synthetic arenas and nose tracks live here so the segmenter, metrics,
// pipeline and API tests all exercise the same geometry.
package testutil

import (
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// StandardPorts returns an arena with the center port at (100, 50) and the
// side ports 40 px to either side and 20 px below it.
func StandardPorts() behaviour.PortSet {
	return behaviour.PortSet{
		Center: behaviour.PortLocation{Name: behaviour.PortCenter, Point2D: behaviour.Point2D{X: 100, Y: 50}},
		Left:   behaviour.PortLocation{Name: behaviour.PortLeft, Point2D: behaviour.Point2D{X: 60, Y: 70}},
		Right:  behaviour.PortLocation{Name: behaviour.PortRight, Point2D: behaviour.Point2D{X: 140, Y: 70}},
	}
}

// TrackBuilder appends nose positions frame by frame.
type TrackBuilder struct {
	track behaviour.RawTrack
}

// NewTrackBuilder starts an empty track at frame 0.
func NewTrackBuilder() *TrackBuilder { return &TrackBuilder{} }

// Hold appends n frames at p.
func (b *TrackBuilder) Hold(p behaviour.Point2D, n int) *TrackBuilder {
	for i := 0; i < n; i++ {
		b.add(p)
	}
	return b
}

// Move appends n frames on the straight line from the last position
// (exclusive) to p (inclusive).
func (b *TrackBuilder) Move(p behaviour.Point2D, n int) *TrackBuilder {
	from := p
	if len(b.track) > 0 {
		from = b.track[len(b.track)-1].Nose
	}
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n)
		b.add(behaviour.Point2D{X: from.X + f*(p.X-from.X), Y: from.Y + f*(p.Y-from.Y)})
	}
	return b
}

// Away appends n frames far from every port.
func (b *TrackBuilder) Away(n int) *TrackBuilder {
	return b.Hold(behaviour.Point2D{X: 0, Y: 0}, n)
}

// Len returns the number of frames so far.
func (b *TrackBuilder) Len() int { return len(b.track) }

// Build returns the track.
func (b *TrackBuilder) Build() behaviour.RawTrack {
	return append(behaviour.RawTrack(nil), b.track...)
}

func (b *TrackBuilder) add(p behaviour.Point2D) {
	b.track = append(b.track, behaviour.Frame{Index: len(b.track), Nose: p})
}

// LeftRunScenario is a 200-frame track: the nose rests on the center port for
// frames 0-9, moves monotonically to the left port between frames 10 and 30
// (entering its radius at frame 30) and then wanders away from all ports.
func LeftRunScenario() behaviour.RawTrack {
	ports := StandardPorts()
	b := NewTrackBuilder().Hold(ports.Center.Point2D, 10)
	// First step leaves the center radius: 6 px to the left.
	b.Hold(behaviour.Point2D{X: 94, Y: 53}, 1)
	// Frames 11-29 approach to 6 px right of the left port, frame 30 enters it.
	b.Move(behaviour.Point2D{X: 66, Y: 67}, 19)
	b.Hold(behaviour.Point2D{X: 61, Y: 69.5}, 1)
	b.Away(200 - b.Len())
	return b.Build()
}

// WritePoseCSV writes a pose table in the estimator's three-row-header layout
// with the given nose track, fixed port keypoints and one likelihood for every
// cell.
func WritePoseCSV(w io.Writer, nose behaviour.RawTrack, ports behaviour.PortSet, likelihood float64) error {
	var sb strings.Builder
	parts := []string{"nose", "centerport", "leftport", "rightport"}

	sb.WriteString("scorer")
	for range parts {
		sb.WriteString(",DLC_resnet50_test,DLC_resnet50_test,DLC_resnet50_test")
	}
	sb.WriteString("\nbodyparts")
	for _, p := range parts {
		fmt.Fprintf(&sb, ",%s,%s,%s", p, p, p)
	}
	sb.WriteString("\ncoords")
	for range parts {
		sb.WriteString(",x,y,likelihood")
	}
	sb.WriteString("\n")

	for _, f := range nose {
		fmt.Fprintf(&sb, "%d", f.Index)
		for _, p := range []behaviour.Point2D{f.Nose, ports.Center.Point2D, ports.Left.Point2D, ports.Right.Point2D} {
			fmt.Fprintf(&sb, ",%s,%s,%g", cell(p.X), cell(p.Y), likelihood)
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func cell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%g", v)
}
