package monitoring

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recording outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Episode endings that do not produce a trajectory.
const (
	EpisodeAborted = "aborted"
	EpisodeTooLong = "too_long"
)

// Metrics holds Prometheus counters for batch analysis runs.
type Metrics struct {
	registry       *prometheus.Registry
	recordings     *prometheus.CounterVec
	trajectories   *prometheus.CounterVec
	episodes       *prometheus.CounterVec
	lastRunSeconds prometheus.Gauge
}

// NewMetrics creates and registers the analysis metrics on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	recordings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trajectory_recordings_total",
		Help: "Recordings handled by the pipeline, by outcome",
	}, []string{"outcome"})
	trajectories := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trajectory_emitted_total",
		Help: "Trajectories emitted by the segmenter, by destination port",
	}, []string{"destination"})
	episodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trajectory_episodes_dropped_total",
		Help: "Armed episodes that ended without a trajectory, by reason",
	}, []string{"reason"})
	lastRunSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trajectory_last_run_duration_seconds",
		Help: "Wall time of the most recent batch run",
	})

	registry.MustRegister(recordings, trajectories, episodes, lastRunSeconds)

	return &Metrics{
		registry:       registry,
		recordings:     recordings,
		trajectories:   trajectories,
		episodes:       episodes,
		lastRunSeconds: lastRunSeconds,
	}
}

// IncRecording counts one recording with the given outcome.
func (m *Metrics) IncRecording(outcome string) {
	m.recordings.WithLabelValues(outcome).Inc()
}

// AddTrajectories counts emitted trajectories for a destination.
func (m *Metrics) AddTrajectories(destination string, n int) {
	m.trajectories.WithLabelValues(destination).Add(float64(n))
}

// AddDroppedEpisodes counts episodes that ended without emission.
func (m *Metrics) AddDroppedEpisodes(reason string, n int) {
	m.episodes.WithLabelValues(reason).Add(float64(n))
}

// SetLastRunSeconds records the duration of a batch run.
func (m *Metrics) SetLastRunSeconds(s float64) {
	m.lastRunSeconds.Set(s)
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics in the node-exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
