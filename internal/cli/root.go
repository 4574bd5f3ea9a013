// Package cli implements the trajectory command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trajectory.report/internal/config"
	"github.com/banshee-data/trajectory.report/internal/db"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/version"
)

const (
	defaultDBPath = "trajectory.db"
	defaultListen = ":8080"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	envFile   string
	config    string
	dbPath    string
	logLevel  string
	logFormat string
}

// NewRootCommand builds the trajectory command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "trajectory",
		Short: "Nose trajectory extraction and cohort analysis",
		Long: `trajectory segments pose-tracking recordings of a three-port arena into
center-to-side-port nose trajectories, summarizes each recording and
aggregates the summaries per genotype and session.

Settings come from flags, then TRAJ_* environment variables (a .env file is
read when present), then built-in defaults.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.envFile, "env-file", ".env", "environment file to load")
	f.StringVar(&opts.config, "config", "", "tuning config JSON (env "+config.EnvConfigPath+")")
	f.StringVar(&opts.dbPath, "db", "", "sqlite database path (env "+config.EnvDBPath+", default "+defaultDBPath+")")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env "+config.EnvLogLevel+")")
	f.StringVar(&opts.logFormat, "log-format", "", "text or json (env "+config.EnvLogFormat+")")

	cmd.AddCommand(
		newExtractCommand(opts),
		newAnalyzeCommand(opts),
		newRunCommand(opts),
		newPlotCommand(opts),
		newServeCommand(opts),
		newMigrateCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// setup loads the environment file and installs the logger. Flags win over
// environment variables.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	// A missing default .env is fine; an explicitly requested one is not.
	if err := config.LoadEnv(o.envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}
	if o.config == "" {
		o.config = config.GetEnv(config.EnvConfigPath, "")
	}
	if o.dbPath == "" {
		o.dbPath = config.GetEnv(config.EnvDBPath, defaultDBPath)
	}
	if o.logLevel == "" {
		o.logLevel = config.GetEnv(config.EnvLogLevel, "info")
	}
	if o.logFormat == "" {
		o.logFormat = config.GetEnv(config.EnvLogFormat, "text")
	}
	monitoring.SetLogger(monitoring.NewLogger(cmd.ErrOrStderr(), o.logLevel, o.logFormat))
	return nil
}

// tuning loads the tuning file, falling back to the canonical defaults file
// in the working directory and then to built-in defaults.
func (o *rootOptions) tuning() (*config.TuningConfig, error) {
	path := o.config
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyTuningConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, err
	}
	monitoring.Logger().Debug("tuning config loaded", "path", path)
	return cfg, nil
}

// openDB opens the database and applies pending migrations.
func (o *rootOptions) openDB() (*db.DB, error) {
	d, err := db.NewDB(o.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", o.dbPath, err)
	}
	return d, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "trajectory %s\n", version.String())
			return err
		},
	}
}
