// Package manifest loads the cohort manifest: which recordings exist, which
// mouse, genotype and session each belongs to, and where their pose files
// live.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/security"
)

// TrajectoryDirName is the output subdirectory holding trajectory records.
const TrajectoryDirName = "extracted_trajectories"

// Recording is one manifest entry. An empty CSV means the session has no
// pose file.
type Recording struct {
	behaviour.RecordingKey `yaml:",inline"`
	CSV                    string `yaml:"csv"`
}

// HasSource reports whether the recording has a pose file.
func (r Recording) HasSource() bool { return r.CSV != "" }

// Manifest lists a cohort's recordings in processing order.
type Manifest struct {
	DataDir    string      `yaml:"data_dir"`
	OutputDir  string      `yaml:"output_dir"`
	Recordings []Recording `yaml:"recordings"`

	// path is the file the manifest was read from; relative directories
	// resolve against its directory.
	path string
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.path = path
	if err := m.checkSources(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest, rejecting unknown fields.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every recording is identified and experiment names are
// unique.
func (m *Manifest) Validate() error {
	if len(m.Recordings) == 0 {
		return errors.New("manifest has no recordings")
	}
	seen := make(map[string]int, len(m.Recordings))
	for i, r := range m.Recordings {
		if r.Mouse == "" || r.Genotype == "" || r.Session == "" {
			return fmt.Errorf("recording %d: mouse, genotype and session are required", i)
		}
		exp := r.ExpName()
		if err := security.ValidateName(exp); err != nil {
			return fmt.Errorf("recording %d: %w", i, err)
		}
		if j, ok := seen[exp]; ok {
			return fmt.Errorf("recording %d: experiment %q duplicates recording %d", i, exp, j)
		}
		seen[exp] = i
	}
	return nil
}

// checkSources rejects relative pose file paths that leave the data
// directory. Absolute paths are taken as given.
func (m *Manifest) checkSources() error {
	for i, r := range m.Recordings {
		if !r.HasSource() || filepath.IsAbs(r.CSV) {
			continue
		}
		if err := security.ValidatePathWithinDirectory(m.CSVPath(r), m.DataPath()); err != nil {
			return fmt.Errorf("recording %d: %w", i, err)
		}
	}
	return nil
}

func (m *Manifest) resolve(dir string) string {
	if dir == "" {
		dir = "."
	}
	if filepath.IsAbs(dir) || m.path == "" {
		return dir
	}
	return filepath.Join(filepath.Dir(m.path), dir)
}

// DataPath returns the directory holding pose files.
func (m *Manifest) DataPath() string { return m.resolve(m.DataDir) }

// OutputPath returns the output root.
func (m *Manifest) OutputPath() string { return m.resolve(m.OutputDir) }

// TrajectoryDir returns the directory of the trajectory records.
func (m *Manifest) TrajectoryDir() string {
	return filepath.Join(m.OutputPath(), TrajectoryDirName)
}

// CSVPath returns the pose file of a recording, or "" when it has none.
func (m *Manifest) CSVPath(r Recording) string {
	if !r.HasSource() {
		return ""
	}
	if filepath.IsAbs(r.CSV) {
		return r.CSV
	}
	return filepath.Join(m.DataPath(), r.CSV)
}

// Find returns the recording with the given experiment name.
func (m *Manifest) Find(expName string) (Recording, bool) {
	for _, r := range m.Recordings {
		if r.ExpName() == expName {
			return r, true
		}
	}
	return Recording{}, false
}
