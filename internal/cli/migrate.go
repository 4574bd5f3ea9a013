package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trajectory.report/internal/db"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect schema migrations. Other commands migrate to the
latest version automatically; use these to recover from a dirty state or to
roll back.`,
	}

	withDB := func(fn func(d *db.DB, w io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			d, err := db.OpenDB(root.dbPath)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := fn(d, cmd.OutOrStdout()); err != nil {
				return err
			}
			return printVersion(d, cmd.OutOrStdout())
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(d *db.DB, w io.Writer) error {
				return d.MigrateUp(db.MigrationsFS())
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(d *db.DB, w io.Writer) error {
				return d.MigrateDown(db.MigrationsFS())
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current and latest schema version",
			Args:  cobra.NoArgs,
			RunE: withDB(func(d *db.DB, w io.Writer) error {
				return nil
			}),
		},
		&cobra.Command{
			Use:   "to <version>",
			Short: "Migrate up or down to a version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return withDB(func(d *db.DB, w io.Writer) error {
					return d.MigrateTo(db.MigrationsFS(), uint(v))
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the recorded version without running migrations",
			Long:  "Set the recorded schema version and clear the dirty flag. Use only after repairing a failed migration by hand.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return withDB(func(d *db.DB, w io.Writer) error {
					return d.MigrateForce(db.MigrationsFS(), v)
				})(cmd, args)
			},
		},
	)
	return cmd
}

func printVersion(d *db.DB, w io.Writer) error {
	version, dirty, err := d.MigrateVersion(db.MigrationsFS())
	if err != nil {
		return err
	}
	latest, err := db.LatestMigrationVersion(db.MigrationsFS())
	if err != nil {
		return err
	}
	p := newPalette(w)
	state := p.green.Sprint("clean")
	if dirty {
		state = p.red.Sprint("dirty")
	}
	_, err = fmt.Fprintf(w, "schema version %d of %d (%s)\n", version, latest, state)
	return err
}
