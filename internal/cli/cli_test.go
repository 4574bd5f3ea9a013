package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/behaviour/report"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeCohort(t *testing.T) (manifestPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	f, err := os.Create(filepath.Join(dir, "data", "m1.csv"))
	require.NoError(t, err)
	require.NoError(t, testutil.WritePoseCSV(f, testutil.LeftRunScenario(), testutil.StandardPorts(), 1))
	require.NoError(t, f.Close())

	manifestPath = filepath.Join(dir, "cohort.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
data_dir: data
output_dir: out
recordings:
  - {mouse: m1, genotype: control, session: s1, csv: m1.csv}
  - {mouse: m2, genotype: cko, session: s1}
`), 0o644))
	return manifestPath, filepath.Join(dir, "trajectory.db")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "trajectory dev")
}

func TestRunThenPlot(t *testing.T) {
	manifestPath, dbPath := writeCohort(t)
	outDir := filepath.Join(filepath.Dir(manifestPath), "out")

	out, err := execute(t, "--db", dbPath, "run", manifestPath, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "m1controls1")
	assert.Contains(t, out, "left=1 right=0 aborted=0 too_long=0")
	assert.Contains(t, out, "1 processed, 1 skipped, 0 failed")
	assert.Contains(t, out, "run ")
	_, err = os.Stat(filepath.Join(outDir, "summary.csv"))
	require.NoError(t, err)

	out, err = execute(t, "--db", dbPath, "plot", manifestPath, "--run", "latest", "--title", "cohort")
	require.NoError(t, err)
	assert.Contains(t, out, "1 trajectory plots, 1 distance plots")
	for _, name := range []string{report.TrajectoryPlotName("m1controls1"), report.DistancePlotName("m1controls1"), report.MarkdownName, report.HTMLName} {
		_, err := os.Stat(filepath.Join(outDir, ReportDirName, name))
		assert.NoError(t, err, name)
	}
	md, err := os.ReadFile(filepath.Join(outDir, ReportDirName, report.MarkdownName))
	require.NoError(t, err)
	assert.Contains(t, string(md), "[m1controls1_dist.pdf](m1controls1_dist.pdf)")

	out, err = execute(t, "--db", dbPath, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2 of 2 (clean)")
}

func TestExtractThenAnalyzeWithoutDB(t *testing.T) {
	manifestPath, dbPath := writeCohort(t)

	out, err := execute(t, "--db", dbPath, "extract", "--no-db", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "extract")

	out, err = execute(t, "--db", dbPath, "analyze", "--no-db", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 processed, 1 skipped")

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "no database with --no-db")
}

func TestMigrateDownAndUp(t *testing.T) {
	_, dbPath := writeCohort(t)

	out, err := execute(t, "--db", dbPath, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2 of 2")

	out, err = execute(t, "--db", dbPath, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1 of 2")

	out, err = execute(t, "--db", dbPath, "migrate", "to", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2 of 2")

	_, err = execute(t, "--db", dbPath, "migrate", "to", "two")
	assert.Error(t, err)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing manifest arg", []string{"run"}},
		{"manifest not found", []string{"--db", filepath.Join(t.TempDir(), "x.db"), "run", "/nonexistent/cohort.yaml"}},
		{"bad config", []string{"--config", "/nonexistent/tuning.json", "run", "--no-db", "/nonexistent/cohort.yaml"}},
		{"explicit env file missing", []string{"--env-file", "/nonexistent/.env", "version"}},
		{"unknown command", []string{"bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentFallback(t *testing.T) {
	_, dbPath := writeCohort(t)
	t.Setenv("TRAJ_DB", dbPath)

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2 of 2")
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}
