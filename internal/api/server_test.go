package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/jsonstore"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/db"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/testutil"
)

type fixture struct {
	server *Server
	router http.Handler
	runID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	runs := sqlite.NewRunStore(d.DB)
	recs := sqlite.NewRecordingStore(d.DB)
	run := &sqlite.AnalysisRun{Command: "run", RecordingsTotal: 4}
	require.NoError(t, runs.Start(run))

	ports := testutil.StandardPorts()
	add := func(ord int, mouse, genotype string, vel float64) {
		require.NoError(t, recs.Save(&sqlite.Recording{
			RunID:   run.RunID,
			Ordinal: ord,
			Key:     behaviour.RecordingKey{Mouse: mouse, Genotype: genotype, Session: "s1"},
			Status:  sqlite.RecordingProcessed,
			Summary: map[string]float64{l5cohort.MetricNumTra: 3, l5cohort.MetricAvgTraVel: vel},
			Ports:   &ports,
		}))
	}
	add(0, "m1", "control", 0.20)
	add(1, "m2", "control", 0.22)
	add(2, "m3", "cko", 0.10)
	add(3, "m4", "cko", 0.12)
	require.NoError(t, runs.Finish(run))

	store := jsonstore.New(fsutil.NewMemoryFileSystem(), "/out/extracted_trajectories")
	var set behaviour.TrajectorySet
	set.Add(behaviour.Trajectory{Destination: behaviour.DestinationLeft, Samples: []behaviour.Sample{
		{X: 94, Y: 53, Frame: 10}, {X: 61, Y: 69, Frame: 11},
	}})
	require.NoError(t, store.Save("m1controls1", set, &ports))

	s := NewServer(Config{
		Runs:         runs,
		Recordings:   recs,
		Trajectories: store,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &fixture{server: s, router: s.Router(), runID: run.RunID}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/healthz")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	met := monitoring.NewMetrics()
	met.AddTrajectories("left", 2)
	s := NewServer(Config{Metrics: met, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `trajectory_emitted_total{destination="left"} 2`)
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/runs?limit=5")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var runs []sqlite.AnalysisRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, f.runID, runs[0].RunID)
	assert.Equal(t, sqlite.RunCompleted, runs[0].Status)

	rec = f.get(t, "/api/runs?limit=x")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestGetRun(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/runs/" + f.runID, http.StatusOK},
		{"/api/runs/latest", http.StatusOK},
		{"/api/runs/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.get(t, tt.path)
			testutil.AssertStatusCode(t, rec.Code, tt.status)
			if tt.status == http.StatusOK {
				var run sqlite.AnalysisRun
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
				assert.Equal(t, f.runID, run.RunID)
			}
		})
	}
}

func TestListSummaries(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/runs/"+f.runID+"/summaries")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var recs []sqlite.Recording
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 4)
	assert.Equal(t, "m1controls1", recs[0].ExpName)
	assert.InDelta(t, 0.20, recs[0].Summary[l5cohort.MetricAvgTraVel], 1e-12)
	require.NotNil(t, recs[0].Ports)
	assert.Equal(t, testutil.StandardPorts().Left.Point2D, recs[0].Ports.Left.Point2D)
}

func TestListSummariesUnits(t *testing.T) {
	f := newFixture(t)
	base := f.get(t, "/api/runs/"+f.runID+"/summaries")
	var want []sqlite.Recording
	require.NoError(t, json.Unmarshal(base.Body.Bytes(), &want))

	rec := f.get(t, "/api/runs/"+f.runID+"/summaries?speed_units=cmps&distance_units=cm")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var got []sqlite.Recording
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, len(want))
	assert.InDelta(t, 20.0, got[0].Summary[l5cohort.MetricAvgTraVel], 1e-9)
	for metric, v := range want[0].Summary {
		switch l5cohort.MetricUnit(metric) {
		case "mm":
			assert.InDelta(t, v/10, got[0].Summary[metric], 1e-9, metric)
		case "count":
			assert.Equal(t, v, got[0].Summary[metric], metric)
		}
	}

	for _, q := range []string{"?speed_units=mph", "?distance_units=ft"} {
		rec := f.get(t, "/api/runs/"+f.runID+"/summaries"+q)
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}
}

func TestGetTrajectories(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/recordings/m1controls1/trajectories")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	decoded, err := jsonstore.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, decoded.Set.Left, 1)
	assert.Equal(t, 11, decoded.Set.Left[0].LastFrame())

	rec = f.get(t, "/api/recordings/nobody/trajectories")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	bare := NewServer(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	r := httptest.NewRecorder()
	bare.Router().ServeHTTP(r, httptest.NewRequest(http.MethodGet, "/api/recordings/m1controls1/trajectories", nil))
	testutil.AssertStatusCode(t, r.Code, http.StatusNotFound)
}

func TestGetCohort(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/cohort/latest")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		RunID       string                `json:"run_id"`
		Recordings  int                   `json:"recordings"`
		Groups      []l5cohort.GroupStats `json:"groups"`
		Comparisons []struct {
			Metric       string         `json:"metric"`
			A            l5cohort.Group `json:"a"`
			MannWhitneyP *float64       `json:"mannwhitney_p"`
			RankSumP     *float64       `json:"ranksum_p"`
			TTestP       *float64       `json:"ttest_p"`
			Annotation   string         `json:"annotation"`
		} `json:"comparisons"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, f.runID, resp.RunID)
	assert.Equal(t, 4, resp.Recordings)
	// cko, cko/s1, control, control/s1
	require.Len(t, resp.Groups, 4)
	assert.Equal(t, 2, resp.Groups[2].Metrics[l5cohort.MetricAvgTraVel].N)

	var vel []int
	for i, c := range resp.Comparisons {
		if c.Metric == l5cohort.MetricAvgTraVel {
			vel = append(vel, i)
		}
	}
	require.Len(t, vel, 2, "pooled and per-session")
	c := resp.Comparisons[vel[0]]
	assert.Equal(t, l5cohort.Group{Genotype: "cko"}, c.A)
	require.NotNil(t, c.TTestP)
	assert.Less(t, *c.TTestP, 0.05)
	// Two against two cannot reach significance with Mann-Whitney.
	require.NotNil(t, c.MannWhitneyP)
	assert.Greater(t, *c.MannWhitneyP, 0.05)
	assert.Equal(t, "n. s.", c.Annotation)

	// Metrics no recording has are compared with null statistics.
	for _, c := range resp.Comparisons {
		if c.Metric == l5cohort.MetricAvgDev {
			assert.Nil(t, c.RankSumP)
			assert.Nil(t, c.MannWhitneyP)
		}
	}
}

func TestGetChart(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/charts/"+f.runID+"/"+l5cohort.MetricAvgTraVel)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "m3ckos1")

	rec = f.get(t, "/charts/"+f.runID+"/bogus")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = f.get(t, "/charts/nope/"+l5cohort.MetricAvgTraVel)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestNoDatabase(t *testing.T) {
	s := NewServer(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
}

func TestListenAndServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := NewServer(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
