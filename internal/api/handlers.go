package api

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
	"github.com/banshee-data/trajectory.report/internal/behaviour/report"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/jsonstore"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/httputil"
	"github.com/banshee-data/trajectory.report/internal/security"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// latestRun resolves to the most recent completed run.
const latestRun = "latest"

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.runs == nil || s.recordings == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return false
	}
	return true
}

// resolveRun writes the error response itself and returns nil on failure.
func (s *Server) resolveRun(w http.ResponseWriter, r *http.Request) *sqlite.AnalysisRun {
	if !s.requireDB(w) {
		return nil
	}
	id := chi.URLParam(r, "runID")
	var (
		run *sqlite.AnalysisRun
		err error
	)
	if id == latestRun {
		run, err = s.runs.Latest()
	} else {
		run, err = s.runs.Get(id)
	}
	switch {
	case errors.Is(err, sqlite.ErrRunNotFound):
		httputil.NotFound(w, "run not found: "+id)
		return nil
	case err != nil:
		s.log.Error("load run", "run_id", id, "error", err)
		httputil.InternalServerError(w, "failed to load run")
		return nil
	}
	return run
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.List(limit)
	if err != nil {
		s.log.Error("list runs", "error", err)
		httputil.InternalServerError(w, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*sqlite.AnalysisRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if run := s.resolveRun(w, r); run != nil {
		httputil.WriteJSONOK(w, run)
	}
}

// listSummaries accepts optional speed_units and distance_units query
// parameters; stored values are m/s and mm.
func (s *Server) listSummaries(w http.ResponseWriter, r *http.Request) {
	speedUnits := r.URL.Query().Get("speed_units")
	if speedUnits == "" {
		speedUnits = units.MPS
	}
	distanceUnits := r.URL.Query().Get("distance_units")
	if distanceUnits == "" {
		distanceUnits = units.MM
	}
	if !units.IsValidSpeed(speedUnits) {
		httputil.BadRequest(w, "speed_units must be one of "+strings.Join(units.ValidSpeedUnits, ", "))
		return
	}
	if !units.IsValidDistance(distanceUnits) {
		httputil.BadRequest(w, "distance_units must be one of "+strings.Join(units.ValidDistanceUnits, ", "))
		return
	}

	run := s.resolveRun(w, r)
	if run == nil {
		return
	}
	recs, err := s.recordings.List(run.RunID)
	if err != nil {
		s.log.Error("list recordings", "run_id", run.RunID, "error", err)
		httputil.InternalServerError(w, "failed to list recordings")
		return
	}
	if recs == nil {
		recs = []*sqlite.Recording{}
	}
	for _, rec := range recs {
		for metric, v := range rec.Summary {
			switch l5cohort.MetricUnit(metric) {
			case "m/s":
				rec.Summary[metric] = units.ConvertSpeed(v, speedUnits)
			case "mm":
				rec.Summary[metric] = units.ConvertDistance(v, distanceUnits)
			}
		}
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Server) getTrajectories(w http.ResponseWriter, r *http.Request) {
	exp := chi.URLParam(r, "exp")
	if s.trajectories == nil {
		httputil.NotFound(w, "no trajectory directory configured")
		return
	}
	rec, err := s.trajectories.Load(exp)
	switch {
	case errors.Is(err, security.ErrInvalidName):
		httputil.BadRequest(w, err.Error())
		return
	case errors.Is(err, behaviour.ErrNoSource):
		httputil.NotFound(w, "no trajectory record for "+exp)
		return
	case err != nil:
		s.log.Error("load trajectories", "exp_name", exp, "error", err)
		httputil.InternalServerError(w, "failed to load trajectory record")
		return
	}
	data, err := jsonstore.Encode(rec.Set, rec.Ports)
	if err != nil {
		httputil.InternalServerError(w, "failed to encode trajectory record")
		return
	}
	httputil.WriteRawJSON(w, data)
}

// comparison is the JSON form of l5cohort.Comparison; undefined test
// statistics are null.
type comparison struct {
	Metric       string         `json:"metric"`
	A            l5cohort.Group `json:"a"`
	B            l5cohort.Group `json:"b"`
	StatA        l5cohort.Stat  `json:"stat_a"`
	StatB        l5cohort.Stat  `json:"stat_b"`
	MannWhitneyU *float64       `json:"mannwhitney_u"`
	MannWhitneyP *float64       `json:"mannwhitney_p"`
	RankSumZ     *float64       `json:"ranksum_z"`
	RankSumP     *float64       `json:"ranksum_p"`
	TTestT       *float64       `json:"ttest_t"`
	TTestP       *float64       `json:"ttest_p"`
	Annotated    string         `json:"annotation"`
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type cohortResponse struct {
	RunID       string                `json:"run_id"`
	Recordings  int                   `json:"recordings"`
	Groups      []l5cohort.GroupStats `json:"groups"`
	Comparisons []comparison          `json:"comparisons"`
}

func (s *Server) summaryTable(w http.ResponseWriter, r *http.Request) (*l5cohort.SummaryTable, string) {
	run := s.resolveRun(w, r)
	if run == nil {
		return nil, ""
	}
	table, err := s.recordings.SummaryTable(run.RunID)
	if err != nil {
		s.log.Error("summary table", "run_id", run.RunID, "error", err)
		httputil.InternalServerError(w, "failed to load summaries")
		return nil, ""
	}
	return table, run.RunID
}

func (s *Server) getCohort(w http.ResponseWriter, r *http.Request) {
	table, runID := s.summaryTable(w, r)
	if table == nil {
		return
	}
	resp := cohortResponse{
		RunID:       runID,
		Recordings:  len(table.Rows),
		Groups:      table.CohortStats(),
		Comparisons: []comparison{},
	}
	for _, m := range l5cohort.Metrics {
		for _, c := range table.GenotypeComparisons(m) {
			resp.Comparisons = append(resp.Comparisons, comparison{
				Metric:       c.Metric,
				A:            c.A,
				B:            c.B,
				StatA:        c.StatA,
				StatB:        c.StatB,
				MannWhitneyU: finiteOrNil(c.MannWhitneyU),
				MannWhitneyP: finiteOrNil(c.MannWhitneyP),
				RankSumZ:     finiteOrNil(c.RankSumZ),
				RankSumP:     finiteOrNil(c.RankSumP),
				TTestT:       finiteOrNil(c.TTestT),
				TTestP:       finiteOrNil(c.TTestP),
				Annotated:    c.Annotated,
			})
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	table, _ := s.summaryTable(w, r)
	if table == nil {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCohortScatter(&buf, table, chi.URLParam(r, "metric")); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log.Warn("write chart", "error", err)
	}
}
