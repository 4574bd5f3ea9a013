package monitoring

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.IncRecording(OutcomeProcessed)
	m.IncRecording(OutcomeProcessed)
	m.IncRecording(OutcomeSkipped)
	m.AddTrajectories("left", 4)
	m.AddDroppedEpisodes(EpisodeAborted, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recordings.WithLabelValues(OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordings.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.trajectories.WithLabelValues("left")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.episodes.WithLabelValues(EpisodeAborted)))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.AddTrajectories("right", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `trajectory_emitted_total{destination="right"} 1`)
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.SetLastRunSeconds(1.5)

	path := filepath.Join(t.TempDir(), "trajectory.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "trajectory_last_run_duration_seconds 1.5"))

	assert.NoError(t, m.WriteTextfile(""))
}
