package l1pose

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/testutil"
)

const sampleCSV = `scorer,DLC,DLC,DLC,DLC,DLC,DLC,DLC,DLC,DLC,DLC,DLC,DLC
bodyparts,nose,nose,nose,centerport,centerport,centerport,leftport,leftport,leftport,rightport,rightport,rightport
coords,x,y,likelihood,x,y,likelihood,x,y,likelihood,x,y,likelihood
0,10.5,20.25,0.9,100,50,0.99,60,70,0.99,140,70,0.99
1,,NaN,0.1,100,50,0.5,60,70,0.99,140,70,0.99
`

func TestRead(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, "DLC", table.Scorer)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []int{0, 1}, table.Frames)
	assert.Equal(t, RequiredKeypoints, table.Keypoints())

	nose, err := table.Keypoint(KeypointNose)
	require.NoError(t, err)
	assert.Equal(t, KeypointSample{X: 10.5, Y: 20.25, Likelihood: 0.9}, nose[0])
	assert.True(t, math.IsNaN(nose[1].X))
	assert.True(t, math.IsNaN(nose[1].Y))

	center, err := table.Keypoint(KeypointCenterPort)
	require.NoError(t, err)
	assert.Equal(t, 0.5, center[1].Likelihood)
}

func TestNoseTrackFiltering(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	track, err := table.NoseTrack(0)
	require.NoError(t, err)
	require.Len(t, track, 2)
	assert.Equal(t, behaviour.Point2D{X: 10.5, Y: 20.25}, track[0].Nose)

	filtered, err := table.NoseTrack(0.95)
	require.NoError(t, err)
	assert.True(t, filtered[0].Nose.IsNaN(), "likelihood 0.9 below 0.95 should be dropped")
	assert.Equal(t, 1, filtered[1].Index)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"empty", "", "header row 1"},
		{"missing coords row", "scorer,a\nbodyparts,nose\n", "header row 3"},
		{"mismatched header", "scorer,a\nbodyparts,nose,nose\ncoords,x\n", "bodyparts row"},
		{"unknown coord", "scorer,a\nbodyparts,nose\ncoords,z\n", "unknown coordinate"},
		{"bad frame", strings.Replace(sampleCSV, "\n0,", "\nzero,", 1), "frame index"},
		{"bad value", strings.Replace(sampleCSV, "10.5", "ten", 1), "nose.x"},
		{"short row", sampleCSV + "2,1,2\n", "columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadMissingKeypoint(t *testing.T) {
	csv := "scorer,a,a,a\nbodyparts,nose,nose,nose\ncoords,x,y,likelihood\n0,1,2,0.9\n"
	_, err := Read(strings.NewReader(csv))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKeypoint))
	assert.Contains(t, err.Error(), KeypointCenterPort)
}

func TestReadHeaderOnly(t *testing.T) {
	lines := strings.SplitN(sampleCSV, "\n", 4)
	table, err := Read(strings.NewReader(strings.Join(lines[:3], "\n") + "\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	nose, err := table.Keypoint(KeypointNose)
	require.NoError(t, err)
	assert.Empty(t, nose)
}

func TestReadFileRoundTripsGeneratedTrack(t *testing.T) {
	var buf bytes.Buffer
	track := testutil.LeftRunScenario()
	require.NoError(t, testutil.WritePoseCSV(&buf, track, testutil.StandardPorts(), 0.99))

	path := filepath.Join(t.TempDir(), "rim10controlTwoOdor-1.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	table, err := ReadFile(path)
	require.NoError(t, err)
	got, err := table.NoseTrack(0.98)
	require.NoError(t, err)
	require.Len(t, got, len(track))
	for i := range track {
		assert.InDelta(t, track[i].Nose.X, got[i].Nose.X, 1e-9)
		assert.InDelta(t, track[i].Nose.Y, got[i].Nose.Y, 1e-9)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
