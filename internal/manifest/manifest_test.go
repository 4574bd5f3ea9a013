package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cohortYAML = `
data_dir: data/TwoOdor
output_dir: out
recordings:
  - mouse: rim10
    genotype: control
    session: TwoOdor-1
    csv: rim10_2019-12-02-085240-0000DLC_resnet50.csv
  - mouse: rim12
    genotype: RIMcKO
    session: TwoOdor-2
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cohort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cohortYAML), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Recordings, 2)

	r := m.Recordings[0]
	assert.Equal(t, "rim10controlTwoOdor-1", r.ExpName())
	assert.True(t, r.HasSource())
	assert.Equal(t, filepath.Join(dir, "data/TwoOdor", r.CSV), m.CSVPath(r))
	assert.Equal(t, filepath.Join(dir, "out", TrajectoryDirName), m.TrajectoryDir())

	missing := m.Recordings[1]
	assert.False(t, missing.HasSource())
	assert.Empty(t, m.CSVPath(missing))

	found, ok := m.Find("rim12RIMcKOTwoOdor-2")
	assert.True(t, ok)
	assert.Equal(t, "rim12", found.Mouse)
	_, ok = m.Find("nobody")
	assert.False(t, ok)
}

func TestParseAbsolutePaths(t *testing.T) {
	m, err := Parse([]byte(`
data_dir: /data
recordings:
  - {mouse: a, genotype: g, session: s, csv: /elsewhere/a.csv}
`))
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/a.csv", m.CSVPath(m.Recordings[0]))
	assert.Equal(t, ".", m.OutputPath())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "data_dir: x\n", "no recordings"},
		{"unknown field", "recordings:\n  - {mouse: a, genotype: g, session: s, video: v}\n", "video"},
		{"missing genotype", "recordings:\n  - {mouse: a, session: s}\n", "required"},
		{"duplicate", "recordings:\n  - {mouse: a, genotype: g, session: s}\n  - {mouse: a, genotype: g, session: s}\n", "duplicates"},
		{"not yaml", "recordings: [", "decode"},
		{"separator in name", "recordings:\n  - {mouse: a/b, genotype: g, session: s}\n", "path separator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsSourceOutsideDataDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cohort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: data
recordings:
  - {mouse: a, genotype: g, session: s, csv: ../../secret.csv}
`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}
