package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/behaviour/l5cohort"
	"github.com/banshee-data/trajectory.report/internal/behaviour/report"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/jsonstore"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/manifest"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// ReportDirName is the default report directory under the output root.
const ReportDirName = "report"

type plotOptions struct {
	out   string
	title string
	runID string
}

func newPlotCommand(root *rootOptions) *cobra.Command {
	opts := &plotOptions{}
	cmd := &cobra.Command{
		Use:   "plot <manifest.yaml>",
		Short: "Render trajectory plots, cohort charts and the report",
		Long: `Draw every recording's trajectories with its average trajectories, its
distance from the optimal trajectory per trial, a cohort scatter chart per
metric and a Markdown/HTML report.

By default the cohort table is recomputed from the trajectory records. With
--run it is read from a recorded run ("latest" for the most recent).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(cmd, root, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.out, "out", "", "report directory (default <output_dir>/"+ReportDirName+")")
	f.StringVar(&opts.title, "title", "", "report title (default manifest file name)")
	f.StringVar(&opts.runID, "run", "", "take summaries from this run ID")
	return cmd
}

func runPlot(cmd *cobra.Command, root *rootOptions, opts *plotOptions, manifestPath string) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	tuning, err := root.tuning()
	if err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = filepath.Join(m.OutputPath(), ReportDirName)
	}
	title := opts.title
	if title == "" {
		title = filepath.Base(manifestPath)
	}
	log := monitoring.Logger()

	lock, err := fsutil.TryLockDir(out)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	store := jsonstore.New(fsutil.OSFileSystem{}, m.TrajectoryDir())
	params := l5cohort.ParamsFromTuning(tuning)
	computed := &l5cohort.SummaryTable{}
	var plots, distPlots []string
	for _, rec := range m.Recordings {
		exp := rec.ExpName()
		record, err := store.Load(exp)
		if errors.Is(err, behaviour.ErrNoSource) {
			computed.Append(l5cohort.NewRecordingSummary(rec.RecordingKey))
			continue
		}
		if err != nil {
			return err
		}
		if record.Ports == nil {
			log.Warn("trajectory record has no ports, skipping plot", "exp_name", exp)
			computed.Append(l5cohort.NewRecordingSummary(rec.RecordingKey))
			continue
		}
		analysis, err := l5cohort.Summarize(rec.RecordingKey, record.Set, *record.Ports, nil, params)
		if err != nil {
			return fmt.Errorf("%s: %w", exp, err)
		}
		computed.Append(analysis.Summary)

		p, err := report.TrajectoryPlot(exp, record.Set, *record.Ports, analysis.Deviations, tuning.GetProximityThresholdPx())
		if err != nil {
			return fmt.Errorf("%s: %w", exp, err)
		}
		name := report.TrajectoryPlotName(exp)
		if err := report.WritePlot(p, filepath.Join(out, name)); err != nil {
			return err
		}
		plots = append(plots, name)
		log.Debug("trajectory plot written", "exp_name", exp, "file", name)

		dp, err := report.DistancePlot(exp, analysis.Distances)
		if err != nil {
			return fmt.Errorf("%s: %w", exp, err)
		}
		name = report.DistancePlotName(exp)
		if err := report.WritePlot(dp, filepath.Join(out, name)); err != nil {
			return err
		}
		distPlots = append(distPlots, name)
		log.Debug("distance plot written", "exp_name", exp, "file", name)
	}

	summary := report.Summary{Title: title, GeneratedAt: time.Now(), Table: computed, Plots: plots, DistancePlots: distPlots}
	if opts.runID != "" {
		d, err := root.openDB()
		if err != nil {
			return err
		}
		defer d.Close()
		runs := sqlite.NewRunStore(d.DB)
		var run *sqlite.AnalysisRun
		if opts.runID == "latest" {
			run, err = runs.Latest()
		} else {
			run, err = runs.Get(opts.runID)
		}
		if err != nil {
			return fmt.Errorf("run %s: %w", opts.runID, err)
		}
		table, err := sqlite.NewRecordingStore(d.DB).SummaryTable(run.RunID)
		if err != nil {
			return err
		}
		summary.RunID = run.RunID
		summary.Table = table
	}

	written, err := report.Publish(out, summary)
	if err != nil {
		return err
	}
	p := newPalette(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d trajectory plots, %d distance plots and %d report files in %s\n",
		p.bold.Sprint("plot"), len(plots), len(distPlots), len(written), p.cyan.Sprint(out))
	return nil
}
