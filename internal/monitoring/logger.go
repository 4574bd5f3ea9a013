// Package monitoring provides the structured logger and Prometheus metrics
// shared by the analysis pipeline, command line tools and API server.
package monitoring

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(NewLogger(os.Stderr, "info", "text"))
}

// NewLogger returns a structured logger writing to w.
// level: "debug", "info", "warn", "error" (default "info").
// format: "json" or "text" (default "text").
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h)
}

// Logger returns the package-level logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the package logger. Passing nil installs a logger that
// discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}
