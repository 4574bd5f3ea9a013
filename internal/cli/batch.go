package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trajectory.report/internal/behaviour/pipeline"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/config"
	"github.com/banshee-data/trajectory.report/internal/manifest"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

type batchOptions struct {
	workers     int
	noDB        bool
	metricsFile string
}

func newExtractCommand(root *rootOptions) *cobra.Command {
	return newBatchCommand(root, pipeline.ModeExtract,
		"Segment pose files into trajectory records",
		`Read every recording's pose CSV, locate the ports, validate their geometry
and write one trajectory record per recording to <output_dir>/extracted_trajectories.`)
}

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	return newBatchCommand(root, pipeline.ModeAnalyze,
		"Summarise extracted trajectory records",
		`Read the trajectory records of every recording, compute the summary metrics
and write <output_dir>/summary.csv. Episode counters are left unset.`)
}

func newRunCommand(root *rootOptions) *cobra.Command {
	return newBatchCommand(root, pipeline.ModeRun,
		"Extract and summarise in one pass",
		`Extract trajectory records and summarise them in a single pass, including
the aborted and too-long episode counters.`)
}

func newBatchCommand(root *rootOptions, mode pipeline.Mode, short, long string) *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   mode.String() + " <manifest.yaml>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBatch(ctx, cmd, root, opts, mode, args[0])
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.workers, "workers", 0, "concurrent recordings (env "+config.EnvWorkers+", default from tuning)")
	f.BoolVar(&opts.noDB, "no-db", false, "do not record the run in the database")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "node-exporter textfile to write (env "+config.EnvMetricsFile+")")
	return cmd
}

func runBatch(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *batchOptions, mode pipeline.Mode, manifestPath string) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	tuning, err := root.tuning()
	if err != nil {
		return err
	}
	workers := opts.workers
	if workers == 0 {
		workers = config.GetEnvInt(config.EnvWorkers, 0)
	}
	if workers > 0 {
		tuning.Workers = &workers
	}

	r := &pipeline.Runner{
		Manifest:     m,
		ManifestPath: manifestPath,
		Tuning:       tuning,
		Metrics:      monitoring.NewMetrics(),
		MetricsFile:  opts.metricsFile,
	}
	if r.MetricsFile == "" {
		r.MetricsFile = config.GetEnv(config.EnvMetricsFile, "")
	}
	if !opts.noDB {
		d, err := root.openDB()
		if err != nil {
			return err
		}
		defer d.Close()
		r.Runs = sqlite.NewRunStore(d.DB)
		r.Recordings = sqlite.NewRecordingStore(d.DB)
	}

	var res *pipeline.Result
	switch mode {
	case pipeline.ModeExtract:
		res, err = r.Extract(ctx)
	case pipeline.ModeAnalyze:
		res, err = r.Analyze(ctx)
	default:
		res, err = r.Run(ctx)
	}
	if res != nil {
		printResult(cmd.OutOrStdout(), res, m.OutputPath())
	}
	return err
}
