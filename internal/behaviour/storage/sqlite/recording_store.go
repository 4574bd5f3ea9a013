package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
)

// Recording statuses.
const (
	RecordingProcessed = "processed"
	RecordingSkipped   = "skipped"
	RecordingFailed    = "failed"
)

// ErrRecordingNotFound is returned when a recording is not part of a run.
var ErrRecordingNotFound = errors.New("recording not found")

// Recording is one row of a run with its summary metrics and ports.
type Recording struct {
	RunID        string                 `json:"run_id"`
	ExpName      string                 `json:"exp_name"`
	Ordinal      int                    `json:"ordinal"`
	Key          behaviour.RecordingKey `json:"key"`
	Status       string                 `json:"status"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	StatsJSON    json.RawMessage        `json:"segmentation,omitempty"`
	// Summary holds only the metrics that were computed.
	Summary map[string]float64 `json:"summary"`
	Ports   *behaviour.PortSet `json:"ports,omitempty"`
}

// RecordingStore persists per-recording results of a run.
type RecordingStore struct {
	db *sql.DB
}

// NewRecordingStore creates a RecordingStore backed by db.
func NewRecordingStore(db *sql.DB) *RecordingStore {
	return &RecordingStore{db: db}
}

// Save writes a recording with its summary and ports in one transaction,
// replacing any earlier result for the same run and experiment.
func (s *RecordingStore) Save(rec *Recording) error {
	if rec.ExpName == "" {
		rec.ExpName = rec.Key.ExpName()
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, q := range []string{
			`DELETE FROM recording_summaries WHERE run_id = ? AND exp_name = ?`,
			`DELETE FROM port_locations WHERE run_id = ? AND exp_name = ?`,
			`DELETE FROM recordings WHERE run_id = ? AND exp_name = ?`,
		} {
			if _, err := tx.Exec(q, rec.RunID, rec.ExpName); err != nil {
				return err
			}
		}

		var msg, stats interface{}
		if rec.ErrorMessage != "" {
			msg = rec.ErrorMessage
		}
		if len(rec.StatsJSON) > 0 {
			stats = string(rec.StatsJSON)
		}
		if _, err := tx.Exec(`
			INSERT INTO recordings (run_id, exp_name, ordinal, mouse, genotype, session, status, error_message, stats_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.ExpName, rec.Ordinal, rec.Key.Mouse, rec.Key.Genotype, rec.Key.Session,
			rec.Status, msg, stats,
		); err != nil {
			return fmt.Errorf("insert recording: %w", err)
		}

		for metric, v := range rec.Summary {
			if _, err := tx.Exec(`
				INSERT INTO recording_summaries (run_id, exp_name, metric, value) VALUES (?, ?, ?, ?)`,
				rec.RunID, rec.ExpName, metric, v,
			); err != nil {
				return fmt.Errorf("insert %s: %w", metric, err)
			}
		}

		if rec.Ports != nil {
			for _, p := range rec.Ports.All() {
				if _, err := tx.Exec(`
					INSERT INTO port_locations (run_id, exp_name, port, x, y) VALUES (?, ?, ?, ?, ?)`,
					rec.RunID, rec.ExpName, string(p.Name), p.X, p.Y,
				); err != nil {
					return fmt.Errorf("insert %s port: %w", p.Name, err)
				}
			}
		}
		return tx.Commit()
	})
}

// List returns every recording of a run in manifest order.
func (s *RecordingStore) List(runID string) ([]*Recording, error) {
	rows, err := s.db.Query(`
		SELECT run_id, exp_name, ordinal, mouse, genotype, session, status, error_message, stats_json
		FROM recordings WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	var recs []*Recording
	byExp := make(map[string]*Recording)
	for rows.Next() {
		var r Recording
		var msg, stats sql.NullString
		if err := rows.Scan(&r.RunID, &r.ExpName, &r.Ordinal, &r.Key.Mouse, &r.Key.Genotype, &r.Key.Session,
			&r.Status, &msg, &stats); err != nil {
			rows.Close()
			return nil, err
		}
		r.ErrorMessage = msg.String
		if stats.Valid {
			r.StatsJSON = json.RawMessage(stats.String)
		}
		r.Summary = make(map[string]float64)
		recs = append(recs, &r)
		byExp[r.ExpName] = &r
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.fillSummaries(runID, byExp); err != nil {
		return nil, err
	}
	if err := s.fillPorts(runID, byExp); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *RecordingStore) fillSummaries(runID string, byExp map[string]*Recording) error {
	rows, err := s.db.Query(`SELECT exp_name, metric, value FROM recording_summaries WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var exp, metric string
		var v float64
		if err := rows.Scan(&exp, &metric, &v); err != nil {
			return err
		}
		if r, ok := byExp[exp]; ok {
			r.Summary[metric] = v
		}
	}
	return rows.Err()
}

func (s *RecordingStore) fillPorts(runID string, byExp map[string]*Recording) error {
	rows, err := s.db.Query(`SELECT exp_name, port, x, y FROM port_locations WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("query ports: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var exp, port string
		var x, y float64
		if err := rows.Scan(&exp, &port, &x, &y); err != nil {
			return err
		}
		r, ok := byExp[exp]
		if !ok {
			continue
		}
		if r.Ports == nil {
			r.Ports = &behaviour.PortSet{}
		}
		loc := behaviour.PortLocation{Name: behaviour.PortName(port), Point2D: behaviour.Point2D{X: x, Y: y}}
		switch loc.Name {
		case behaviour.PortCenter:
			r.Ports.Center = loc
		case behaviour.PortLeft:
			r.Ports.Left = loc
		case behaviour.PortRight:
			r.Ports.Right = loc
		}
	}
	return rows.Err()
}

// Get returns one recording of a run.
func (s *RecordingStore) Get(runID, expName string) (*Recording, error) {
	recs, err := s.List(runID)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.ExpName == expName {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%s in run %s: %w", expName, runID, ErrRecordingNotFound)
}

// SummaryTable rebuilds the summary table of a run in manifest order.
// Skipped and failed recordings appear with no metrics set.
func (s *RecordingStore) SummaryTable(runID string) (*l5cohort.SummaryTable, error) {
	recs, err := s.List(runID)
	if err != nil {
		return nil, err
	}
	table := &l5cohort.SummaryTable{}
	for _, r := range recs {
		sum := l5cohort.NewRecordingSummary(r.Key)
		for m, v := range r.Summary {
			sum.Set(m, v)
		}
		table.Append(sum)
	}
	return table, nil
}
