// Package db opens the analysis database and manages its schema through
// embedded migrations.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// DB wraps the sqlite connection pool.
type DB struct {
	*sql.DB
}

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

func dsn(path string) string {
	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	return path + "?" + strings.Join(params, "&")
}

// OpenDB opens the database and applies connection pragmas without touching
// the schema. Use it for migration commands.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the database and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	d, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := d.MigrateUp(MigrationsFS()); err != nil {
		d.Close()
		return nil, err
	}
	version, _, err := d.MigrateVersion(MigrationsFS())
	if err != nil {
		d.Close()
		return nil, err
	}
	monitoring.Logger().Debug("database ready", "path", path, "schema_version", version)
	return d, nil
}
