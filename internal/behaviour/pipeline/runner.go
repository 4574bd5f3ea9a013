package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l1pose"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l2ports"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l3segments"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/jsonstore"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/config"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/manifest"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/timeutil"
)

// SummaryFileName is the summary table written to the output directory.
const SummaryFileName = "summary.csv"

// Mode selects which stages a batch runs.
type Mode int

const (
	// ModeExtract reads pose files and writes trajectory records.
	ModeExtract Mode = iota
	// ModeAnalyze reads trajectory records and writes summaries.
	ModeAnalyze
	// ModeRun extracts and analyses in one pass. Episode counters are only
	// available in this mode.
	ModeRun
)

func (m Mode) String() string {
	switch m {
	case ModeExtract:
		return "extract"
	case ModeAnalyze:
		return "analyze"
	case ModeRun:
		return "run"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) extracts() bool  { return m == ModeExtract || m == ModeRun }
func (m Mode) summarises() bool { return m == ModeAnalyze || m == ModeRun }

// Runner processes the recordings of one manifest.
type Runner struct {
	Manifest *manifest.Manifest
	// ManifestPath is recorded in the run history.
	ManifestPath string
	Tuning       *config.TuningConfig

	// FS backs the trajectory records. Defaults to the real filesystem.
	FS fsutil.FileSystem
	// Locator defaults to a ConfidenceLocator at the tuned threshold.
	Locator l2ports.Locator
	// Clock times the batch and each recording. Defaults to the wall clock.
	Clock timeutil.Clock

	// Optional adapters.
	Runs        *sqlite.RunStore
	Recordings  *sqlite.RecordingStore
	Metrics     *monitoring.Metrics
	MetricsFile string
}

// RecordingResult is the outcome of one manifest entry.
type RecordingResult struct {
	Ordinal   int
	Recording manifest.Recording
	Status    string
	Err       error

	Ports    *behaviour.PortSet
	Geometry *l2ports.Geometry
	Set      behaviour.TrajectorySet
	Stats    *l3segments.Stats
	Analysis *l5cohort.Analysis
	Elapsed  time.Duration
}

// Result summarises a batch.
type Result struct {
	RunID      string
	Mode       Mode
	Recordings []RecordingResult
	// Table has one row per manifest entry in manifest order. It is nil in
	// ModeExtract.
	Table     *l5cohort.SummaryTable
	Processed int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Extract segments every recording with a pose file and writes its
// trajectory record.
func (r *Runner) Extract(ctx context.Context) (*Result, error) {
	return r.execute(ctx, ModeExtract)
}

// Analyze summarises previously extracted trajectory records.
func (r *Runner) Analyze(ctx context.Context) (*Result, error) {
	return r.execute(ctx, ModeAnalyze)
}

// Run extracts and summarises in one pass.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	return r.execute(ctx, ModeRun)
}

func (r *Runner) fs() fsutil.FileSystem {
	if r.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return r.FS
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

func (r *Runner) tuning() *config.TuningConfig {
	if r.Tuning == nil {
		return config.EmptyTuningConfig()
	}
	return r.Tuning
}

func (r *Runner) locator() l2ports.Locator {
	if r.Locator == nil {
		return l2ports.ConfidenceLocator{Threshold: r.tuning().GetPortConfidenceThreshold()}
	}
	return r.Locator
}

func (r *Runner) execute(ctx context.Context, mode Mode) (*Result, error) {
	if r.Manifest == nil {
		return nil, errors.New("pipeline: no manifest")
	}
	tuning := r.tuning()
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}

	lock, err := fsutil.TryLockDir(r.Manifest.OutputPath())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			monitoring.Logger().Warn("release output lock", "error", err)
		}
	}()

	start := r.clock().Now()
	res := &Result{Mode: mode, Recordings: make([]RecordingResult, 0, len(r.Manifest.Recordings))}
	if mode.summarises() {
		res.Table = &l5cohort.SummaryTable{}
	}

	var run *sqlite.AnalysisRun
	if r.Runs != nil {
		params, err := json.Marshal(tuning)
		if err != nil {
			return nil, fmt.Errorf("encode tuning: %w", err)
		}
		run = &sqlite.AnalysisRun{
			Command:         mode.String(),
			ManifestPath:    r.ManifestPath,
			ParamsJSON:      params,
			RecordingsTotal: len(r.Manifest.Recordings),
		}
		if err := r.Runs.Start(run); err != nil {
			return nil, fmt.Errorf("start run: %w", err)
		}
		res.RunID = run.RunID
	}

	log := monitoring.Logger().With("mode", mode.String())
	if res.RunID != "" {
		log = log.With("run_id", res.RunID)
	}
	log.Info("batch started", "recordings", len(r.Manifest.Recordings), "workers", tuning.GetWorkers())

	c := &collector{
		runner: r,
		mode:   mode,
		log:    log,
		store:  jsonstore.New(r.fs(), r.Manifest.TrajectoryDir()),
		result: res,
	}
	batchErr := r.dispatch(ctx, mode, tuning, c)

	if batchErr == nil && res.Table != nil {
		if err := r.writeSummary(res.Table); err != nil {
			batchErr = err
		}
	}

	res.Duration = r.clock().Since(start)
	if r.Metrics != nil {
		r.Metrics.SetLastRunSeconds(res.Duration.Seconds())
		if err := r.Metrics.WriteTextfile(r.MetricsFile); err != nil {
			log.Warn("metrics textfile", "error", err)
		}
	}

	if run != nil {
		run.RecordingsFailed = res.Failed
		run.RecordingsSkipped = res.Skipped
		if batchErr != nil {
			run.Status = sqlite.RunFailed
			run.ErrorMessage = batchErr.Error()
		}
		if err := r.Runs.Finish(run); err != nil {
			log.Error("finish run", "error", err)
			if batchErr == nil {
				batchErr = fmt.Errorf("finish run: %w", err)
			}
		}
	}

	if batchErr != nil {
		log.Error("batch failed", "error", batchErr, "elapsed", res.Duration)
		return res, batchErr
	}
	log.Info("batch finished",
		"processed", res.Processed, "skipped", res.Skipped, "failed", res.Failed,
		"elapsed", res.Duration)
	return res, nil
}

// dispatch fans recordings out to at most GetWorkers() goroutines and feeds
// their results to the collector in manifest order.
func (r *Runner) dispatch(ctx context.Context, mode Mode, tuning *config.TuningConfig, c *collector) error {
	recs := r.Manifest.Recordings
	out := make(chan RecordingResult)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tuning.GetWorkers())

	var waitErr error
	go func() {
		defer close(out)
		for i, rec := range recs {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out <- r.process(gctx, mode, tuning, i, rec)
				return nil
			})
		}
		waitErr = g.Wait()
	}()

	pending := make(map[int]RecordingResult)
	next := 0
	for res := range out {
		pending[res.Ordinal] = res
		for {
			p, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			c.commit(p)
			next++
		}
	}

	if waitErr != nil {
		return waitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if next != len(recs) {
		return fmt.Errorf("pipeline: committed %d of %d recordings", next, len(recs))
	}
	return nil
}

// process runs the read-only stages for one recording. Writes are left to
// the collector.
func (r *Runner) process(ctx context.Context, mode Mode, tuning *config.TuningConfig, ordinal int, rec manifest.Recording) RecordingResult {
	start := r.clock().Now()
	res := RecordingResult{Ordinal: ordinal, Recording: rec, Status: monitoring.OutcomeProcessed}

	fail := func(err error) RecordingResult {
		res.Err = err
		if errors.Is(err, behaviour.ErrNoSource) {
			res.Status = monitoring.OutcomeSkipped
		} else {
			res.Status = monitoring.OutcomeFailed
		}
		res.Elapsed = r.clock().Since(start)
		return res
	}

	if mode.extracts() {
		if err := r.extract(ctx, tuning, rec, &res); err != nil {
			return fail(err)
		}
	} else {
		store := jsonstore.New(r.fs(), r.Manifest.TrajectoryDir())
		record, err := store.Load(rec.ExpName())
		if err != nil {
			return fail(err)
		}
		if record.Ports == nil {
			return fail(fmt.Errorf("%s: trajectory record has no port locations", rec.ExpName()))
		}
		res.Set = record.Set
		res.Ports = record.Ports
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if mode.summarises() {
		analysis, err := l5cohort.Summarize(rec.RecordingKey, res.Set, *res.Ports, res.Stats, l5cohort.ParamsFromTuning(tuning))
		if err != nil {
			return fail(err)
		}
		res.Analysis = analysis
	}
	res.Elapsed = r.clock().Since(start)
	return res
}

func (r *Runner) extract(ctx context.Context, tuning *config.TuningConfig, rec manifest.Recording, res *RecordingResult) error {
	if !rec.HasSource() {
		return fmt.Errorf("%s: %w", rec.ExpName(), behaviour.ErrNoSource)
	}
	table, err := l1pose.ReadFile(r.Manifest.CSVPath(rec))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	track, err := table.NoseTrack(tuning.GetNoseConfidenceThreshold())
	if err != nil {
		return err
	}
	ports, err := l2ports.LocateAll(table, r.locator())
	if err != nil {
		return err
	}
	res.Ports = &ports
	geom, err := l2ports.ValidateGeometry(ports, tuning.GetProximityThresholdPx(), tuning.GetMinPortSeparationFactor())
	res.Geometry = &geom
	if err != nil {
		return err
	}
	set, stats, err := l3segments.Segment(l3segments.ConfigFromTuning(tuning), ports, track)
	if err != nil {
		return err
	}
	res.Set = set
	res.Stats = &stats
	return nil
}

func (r *Runner) writeSummary(table *l5cohort.SummaryTable) error {
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	path := filepath.Join(r.Manifest.OutputPath(), SummaryFileName)
	if err := fsutil.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// collector commits results one at a time. Only the dispatch loop calls it.
type collector struct {
	runner *Runner
	mode   Mode
	log    *slog.Logger
	store  *jsonstore.Store
	result *Result
}

func (c *collector) commit(res RecordingResult) {
	exp := res.Recording.ExpName()
	log := c.log.With("exp_name", exp)

	if res.Err == nil && c.mode.extracts() {
		if err := c.store.Save(exp, res.Set, res.Ports); err != nil {
			res.Err = fmt.Errorf("save trajectory record: %w", err)
			res.Status = monitoring.OutcomeFailed
			// Failed rows carry no metrics.
			res.Analysis = nil
		}
	}

	switch res.Status {
	case monitoring.OutcomeProcessed:
		c.result.Processed++
		args := []any{"left", len(res.Set.Left), "right", len(res.Set.Right), "elapsed", res.Elapsed}
		if res.Stats != nil {
			args = append(args, "aborted", res.Stats.Aborted, "too_long", res.Stats.TooLong)
		}
		if res.Geometry != nil {
			args = append(args, "center_left_px", res.Geometry.CenterLeft, "center_right_px", res.Geometry.CenterRight)
		}
		if res.Analysis != nil && res.Analysis.Excluded > 0 {
			args = append(args, "excluded", res.Analysis.Excluded)
		}
		log.Info("recording processed", args...)
	case monitoring.OutcomeSkipped:
		c.result.Skipped++
		log.Info("recording skipped", "reason", res.Err)
	default:
		c.result.Failed++
		log.Error("recording failed", "error", res.Err)
	}

	if m := c.runner.Metrics; m != nil {
		m.IncRecording(res.Status)
		if res.Status == monitoring.OutcomeProcessed && c.mode.extracts() {
			m.AddTrajectories(string(behaviour.DestinationLeft), len(res.Set.Left))
			m.AddTrajectories(string(behaviour.DestinationRight), len(res.Set.Right))
		}
		if res.Stats != nil {
			m.AddDroppedEpisodes(monitoring.EpisodeAborted, res.Stats.Aborted)
			m.AddDroppedEpisodes(monitoring.EpisodeTooLong, res.Stats.TooLong)
		}
	}

	summary := l5cohort.NewRecordingSummary(res.Recording.RecordingKey)
	if res.Analysis != nil {
		summary = res.Analysis.Summary
	}
	if c.result.Table != nil {
		c.result.Table.Append(summary)
	}

	if c.runner.Recordings != nil && c.result.RunID != "" {
		row := &sqlite.Recording{
			RunID:   c.result.RunID,
			ExpName: exp,
			Ordinal: res.Ordinal,
			Key:     res.Recording.RecordingKey,
			Status:  res.Status,
			Summary: summary.Values(),
			Ports:   res.Ports,
		}
		if res.Err != nil {
			row.ErrorMessage = res.Err.Error()
		}
		if res.Stats != nil {
			if data, err := json.Marshal(res.Stats); err == nil {
				row.StatsJSON = data
			}
		}
		if err := c.runner.Recordings.Save(row); err != nil {
			log.Error("save recording row", "error", err)
		}
	}

	c.result.Recordings = append(c.result.Recordings, res)
}
