package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRun is one batch invocation over a manifest.
type AnalysisRun struct {
	RunID             string          `json:"run_id"`
	Command           string          `json:"command"`
	ManifestPath      string          `json:"manifest_path"`
	ParamsJSON        json.RawMessage `json:"params,omitempty"`
	Status            string          `json:"status"`
	RecordingsTotal   int             `json:"recordings_total"`
	RecordingsFailed  int             `json:"recordings_failed"`
	RecordingsSkipped int             `json:"recordings_skipped"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty"`
}

// RunStore persists analysis runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore backed by db.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Start inserts a running run. An empty RunID is replaced by a new UUID.
func (s *RunStore) Start(run *AnalysisRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = RunRunning

	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO analysis_runs (run_id, command, manifest_path, params_json, status, started_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Command, run.ManifestPath, params, run.Status, run.StartedAt.UnixNano(),
		)
		return err
	})
}

// Finish records the outcome and counters of a run.
func (s *RunStore) Finish(run *AnalysisRun) error {
	now := time.Now()
	run.FinishedAt = &now
	if run.Status == RunRunning || run.Status == "" {
		run.Status = RunCompleted
	}
	var msg interface{}
	if run.ErrorMessage != "" {
		msg = run.ErrorMessage
	}
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE analysis_runs
			SET status = ?, recordings_total = ?, recordings_failed = ?, recordings_skipped = ?,
			    error_message = ?, finished_at = ?
			WHERE run_id = ?`,
			run.Status, run.RecordingsTotal, run.RecordingsFailed, run.RecordingsSkipped,
			msg, now.UnixNano(), run.RunID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s: %w", run.RunID, ErrRunNotFound)
		}
		return nil
	})
}

const runColumns = `run_id, command, manifest_path, params_json, status, recordings_total,
	recordings_failed, recordings_skipped, error_message, started_at, finished_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*AnalysisRun, error) {
	var r AnalysisRun
	var params, msg sql.NullString
	var started int64
	var finished sql.NullInt64
	if err := row.Scan(&r.RunID, &r.Command, &r.ManifestPath, &params, &r.Status,
		&r.RecordingsTotal, &r.RecordingsFailed, &r.RecordingsSkipped, &msg, &started, &finished); err != nil {
		return nil, err
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	r.ErrorMessage = msg.String
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	return &r, nil
}

// Get returns a run by ID.
func (s *RunStore) Get(runID string) (*AnalysisRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// List returns runs, most recent first. limit <= 0 returns all.
func (s *RunStore) List(limit int) ([]*AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Latest returns the most recent completed run.
func (s *RunStore) Latest() (*AnalysisRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM analysis_runs
		WHERE status = ? ORDER BY started_at DESC LIMIT 1`, RunCompleted)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// Delete removes a run and, by cascade, its recordings.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
		return err
	})
}
