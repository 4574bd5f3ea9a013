package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l4metrics"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
	"github.com/banshee-data/trajectory.report/internal/testutil"
)

func sampleSet() behaviour.TrajectorySet {
	var set behaviour.TrajectorySet
	set.Add(behaviour.Trajectory{Destination: behaviour.DestinationLeft, Samples: []behaviour.Sample{
		{X: 94, Y: 53, Frame: 10}, {X: 80, Y: 60, Frame: 11}, {X: 61, Y: 69, Frame: 12},
	}})
	set.Add(behaviour.Trajectory{Destination: behaviour.DestinationRight, Samples: []behaviour.Sample{
		{X: 106, Y: 53, Frame: 40}, {X: behaviour.NaNPoint().X, Y: behaviour.NaNPoint().Y, Frame: 41}, {X: 139, Y: 69, Frame: 42},
	}})
	return set
}

func cohort() *l5cohort.SummaryTable {
	var t l5cohort.SummaryTable
	add := func(mouse, genotype, session string, n float64) {
		s := l5cohort.NewRecordingSummary(behaviour.RecordingKey{Mouse: mouse, Genotype: genotype, Session: session})
		s.Set(l5cohort.MetricNumTra, n)
		s.Set(l5cohort.MetricAvgTraVel, n/10)
		t.Append(s)
	}
	add("m1", "control", "s1", 10)
	add("m2", "control", "s1", 12)
	add("m3", "cko", "s1", 4)
	add("m4", "cko", "s1", 5)
	return &t
}

func TestTrajectoryPlot(t *testing.T) {
	set := sampleSet()
	avg := map[behaviour.Destination]l4metrics.Deviation{
		behaviour.DestinationLeft: {Average: []behaviour.Point2D{{X: 94, Y: 53}, {X: 61, Y: 69}}},
	}
	p, err := TrajectoryPlot("m1controls1", set, testutil.StandardPorts(), avg, 5)
	require.NoError(t, err)
	assert.Equal(t, "m1controls1", p.Title.Text)
	assert.LessOrEqual(t, p.X.Min, 61.0)
	assert.GreaterOrEqual(t, p.X.Max, 140.0)

	path := filepath.Join(t.TempDir(), TrajectoryPlotName("m1controls1"))
	require.NoError(t, WritePlot(p, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "png signature")
}

func TestTrajectoryPlotEmptySet(t *testing.T) {
	p, err := TrajectoryPlot("empty", behaviour.TrajectorySet{}, testutil.StandardPorts(), nil, 5)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestDistancePlot(t *testing.T) {
	distances := []l5cohort.LineDistance{
		{Destination: behaviour.DestinationLeft, Trial: 1, MM: 0.4},
		{Destination: behaviour.DestinationRight, Trial: 1, MM: 1.2},
		{Destination: behaviour.DestinationLeft, Trial: 2, MM: 0.9},
	}
	p, err := DistancePlot("m1controls1", distances)
	require.NoError(t, err)
	assert.Equal(t, "Distance from optimal trajectory\nm1controls1", p.Title.Text)
	assert.Equal(t, "Trial number", p.X.Label.Text)
	assert.Equal(t, 0.0, p.Y.Min)
	assert.Equal(t, DistancePlotMaxMM, p.Y.Max)
	assert.LessOrEqual(t, p.X.Min, 1.0)
	assert.GreaterOrEqual(t, p.X.Max, 2.0)

	path := filepath.Join(t.TempDir(), DistancePlotName("m1controls1"))
	assert.Equal(t, "m1controls1_dist.pdf", filepath.Base(path))
	require.NoError(t, WritePlot(p, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "pdf header")
}

func TestDistancePlotWidensAxis(t *testing.T) {
	tests := []struct {
		name      string
		distances []l5cohort.LineDistance
		wantMax   float64
	}{
		{"empty", nil, DistancePlotMaxMM},
		{"within limit", []l5cohort.LineDistance{{Destination: behaviour.DestinationRight, Trial: 3, MM: 4.9}}, DistancePlotMaxMM},
		{"beyond limit", []l5cohort.LineDistance{{Destination: behaviour.DestinationLeft, Trial: 1, MM: 7.5}}, 7.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DistancePlot("x", tt.distances)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, p.Y.Max)
		})
	}
}

func TestWritePlotErrors(t *testing.T) {
	p, err := TrajectoryPlot("x", sampleSet(), testutil.StandardPorts(), nil, 5)
	require.NoError(t, err)
	dir := t.TempDir()
	assert.Error(t, WritePlot(p, filepath.Join(dir, "noext")))
	assert.Error(t, WritePlot(p, filepath.Join(dir, "plot.bogus")))
}

func TestCohortScatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCohortScatter(&buf, cohort(), l5cohort.MetricNumTra))
	page := buf.String()
	assert.Contains(t, page, "echarts")
	assert.Contains(t, page, "m1controls1")
	assert.Contains(t, page, "control / s1")

	_, err := CohortScatter(cohort(), "bogus")
	assert.Error(t, err)
}

func TestGroupLabel(t *testing.T) {
	assert.Equal(t, "cko", GroupLabel(l5cohort.Group{Genotype: "cko"}))
	assert.Equal(t, "cko / s2", GroupLabel(l5cohort.Group{Genotype: "cko", Session: "s2"}))
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	s := Summary{
		Title:         "TwoOdor",
		RunID:         "run-1",
		GeneratedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Table:         cohort(),
		Plots:         []string{"m1controls1_trajectories.png"},
		DistancePlots: []string{"m1controls1_dist.pdf"},
	}
	require.NoError(t, WriteMarkdown(&buf, s))
	md := buf.String()

	assert.True(t, strings.HasPrefix(md, "# TwoOdor\n"))
	assert.Contains(t, md, "Run `run-1`, generated 2026-01-02T03:04:05Z.")
	assert.Contains(t, md, "## avg_tra_vel (m/s)")
	assert.Contains(t, md, "| control | 2 | 11 | 1 |")
	assert.Contains(t, md, "| cko vs control |")
	// Unset metrics have no observations.
	assert.Contains(t, md, "| control | 0 | n/a | n/a |")
	assert.Contains(t, md, "![m1controls1_trajectories](m1controls1_trajectories.png)")
	assert.Contains(t, md, "## Distance from optimal trajectory\n\n- [m1controls1_dist.pdf](m1controls1_dist.pdf)\n")

	assert.Error(t, WriteMarkdown(&buf, Summary{}))
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "a <b>", []byte("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")))
	page := buf.String()
	assert.Contains(t, page, "<title>a &lt;b&gt;</title>")
	assert.Contains(t, page, "<h1>Title</h1>")
	assert.Contains(t, page, "<table>")
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	written, err := Publish(dir, Summary{Title: "cohort", Table: cohort()})
	require.NoError(t, err)
	assert.Len(t, written, len(l5cohort.Metrics)+2)
	for _, name := range []string{MarkdownName, HTMLName, CohortChartName(l5cohort.MetricAvgDev)} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	_, err = Publish(dir, Summary{})
	assert.Error(t, err)
}
