package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trajectory.report/internal/api"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/jsonstore"
	"github.com/banshee-data/trajectory.report/internal/behaviour/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/config"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/manifest"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

type serveOptions struct {
	listen   string
	manifest string
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve runs, summaries and charts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.listen == "" {
				opts.listen = config.GetEnv(config.EnvListen, defaultListen)
			}
			d, err := root.openDB()
			if err != nil {
				return err
			}
			defer d.Close()

			cfg := api.Config{
				Runs:       sqlite.NewRunStore(d.DB),
				Recordings: sqlite.NewRecordingStore(d.DB),
				Metrics:    monitoring.NewMetrics(),
				Logger:     monitoring.Logger(),
			}
			if opts.manifest != "" {
				m, err := manifest.Load(opts.manifest)
				if err != nil {
					return err
				}
				cfg.Trajectories = jsonstore.New(fsutil.OSFileSystem{}, m.TrajectoryDir())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return api.NewServer(cfg).ListenAndServe(ctx, opts.listen)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", "", "listen address (env "+config.EnvListen+", default "+defaultListen+")")
	f.StringVar(&opts.manifest, "manifest", "", "manifest whose trajectory records are served")
	return cmd
}
