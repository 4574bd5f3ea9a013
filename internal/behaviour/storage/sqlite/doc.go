// Package sqlite contains SQLite repository implementations for analysis
// runs, per-recording summaries and port locations.
//
// All database reads and writes for the behaviour pipeline belong here
// rather than in the layer packages (L1-L5), which stay free of SQL.
// The schema is owned by internal/db migrations.
package sqlite
