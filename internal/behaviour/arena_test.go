package behaviour

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleJSONRoundTrip(t *testing.T) {
	in := []Sample{
		{X: 101.25, Y: 49.5, Frame: 12},
		{X: math.NaN(), Y: 3, Frame: 13},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[[101.25,49.5,12],[null,3,13]]`, string(data))

	var out []Sample
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0])
	assert.True(t, math.IsNaN(out[1].X))
	assert.Equal(t, 13, out[1].Frame)
}

func TestSampleUnmarshalRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"two elements", `[1, 2]`},
		{"fractional frame", `[1, 2, 3.5]`},
		{"null frame", `[1, 2, null]`},
		{"not an array", `{"x": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Sample
			assert.Error(t, json.Unmarshal([]byte(tt.data), &s))
		})
	}
}

func TestTrajectorySetAdd(t *testing.T) {
	var set TrajectorySet
	set.Add(Trajectory{Destination: DestinationLeft, Samples: []Sample{{Frame: 1}}})
	set.Add(Trajectory{Destination: DestinationRight, Samples: []Sample{{Frame: 9}}})
	set.Add(Trajectory{Destination: DestinationLeft, Samples: []Sample{{Frame: 20}}})

	assert.Len(t, set.Left, 2)
	assert.Len(t, set.Right, 1)
	require.Equal(t, 3, set.Len())
	assert.Equal(t, []int{1, 9, 20}, []int{set.All[0].FirstFrame(), set.All[1].FirstFrame(), set.All[2].FirstFrame()})
	assert.Equal(t, set.Right, set.ByDestination(DestinationRight))
}

func TestPortSetJSONRestoresNames(t *testing.T) {
	ports := PortSet{
		Center: PortLocation{Name: PortCenter, Point2D: Point2D{X: 100, Y: 50}},
		Left:   PortLocation{Name: PortLeft, Point2D: Point2D{X: 60, Y: 70}},
		Right:  PortLocation{Name: PortRight, Point2D: Point2D{X: 140, Y: 70}},
	}
	data, err := json.Marshal(ports)
	require.NoError(t, err)
	assert.JSONEq(t, `{"center":[100,50],"left":[60,70],"right":[140,70]}`, string(data))

	var got PortSet
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ports, got)
	assert.Equal(t, ports.Left, got.Side(DestinationLeft))
}

func TestExpName(t *testing.T) {
	k := RecordingKey{Mouse: "rim10", Genotype: "control", Session: "TwoOdor-1"}
	assert.Equal(t, "rim10controlTwoOdor-1", k.ExpName())
}

func TestSimultaneousPortErrorMatchesGeometry(t *testing.T) {
	var err error = &SimultaneousPortError{Frame: 7, Side: PortLeft, CenterDist: 1, SideDist: 2, ThresholdPx: 5}
	assert.True(t, errors.Is(err, ErrPortGeometry))
	assert.Contains(t, err.Error(), "frame 7")

	var spe *SimultaneousPortError
	require.True(t, errors.As(err, &spe))
	assert.Equal(t, PortLeft, spe.Side)
}

func TestDistanceToPropagatesNaN(t *testing.T) {
	assert.InDelta(t, 5.0, Point2D{X: 0, Y: 0}.DistanceTo(Point2D{X: 3, Y: 4}), 1e-12)
	assert.True(t, math.IsNaN(NaNPoint().DistanceTo(Point2D{})))
	assert.True(t, NaNPoint().IsNaN())
}
