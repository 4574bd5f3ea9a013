// Package api serves analysis runs, summaries, trajectories and cohort charts
// over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/jsonstore"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

const shutdownTimeout = 10 * time.Second

// Server holds the stores the handlers read from. Trajectories is optional;
// without it the trajectory endpoint answers 404.
type Server struct {
	runs         *sqlite.RunStore
	recordings   *sqlite.RecordingStore
	trajectories *jsonstore.Store
	metrics      *monitoring.Metrics
	log          *slog.Logger
}

// Config wires a Server.
type Config struct {
	Runs         *sqlite.RunStore
	Recordings   *sqlite.RecordingStore
	Trajectories *jsonstore.Store
	Metrics      *monitoring.Metrics
	Logger       *slog.Logger
}

func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = monitoring.Logger()
	}
	met := cfg.Metrics
	if met == nil {
		met = monitoring.NewMetrics()
	}
	return &Server{
		runs:         cfg.Runs,
		recordings:   cfg.Recordings,
		trajectories: cfg.Trajectories,
		metrics:      met,
		log:          log,
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(monitoring.RequestLogger(s.log))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{runID}", s.getRun)
		r.Get("/runs/{runID}/summaries", s.listSummaries)
		r.Get("/recordings/{exp}/trajectories", s.getTrajectories)
		r.Get("/cohort/{runID}", s.getCohort)
	})
	r.Get("/charts/{runID}/{metric}", s.getChart)
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server stopped")
	return <-errCh
}
