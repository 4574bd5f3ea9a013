// Package jsonstore persists a recording's trajectory set as the
// <exp_name>tra_dict.json record read by every downstream stage.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/banshee-data/trajectory.report/internal/behaviour"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/security"
)

// FileSuffix follows the experiment name in record file names.
const FileSuffix = "tra_dict.json"

// Record is the decoded trajectory record of one recording.
type Record struct {
	Set behaviour.TrajectorySet
	// Ports is nil for records written without port locations.
	Ports *behaviour.PortSet
}

// wireRecord is the on-disk layout.
type wireRecord struct {
	LeftTra  [][]behaviour.Sample `json:"left_tra"`
	RightTra [][]behaviour.Sample `json:"right_tra"`
	AllTra   [][]behaviour.Sample `json:"all_tra"`
	Ports    *behaviour.PortSet   `json:"ports,omitempty"`
}

// Store reads and writes trajectory records under one directory.
type Store struct {
	fsys fsutil.FileSystem
	dir  string
	mu   sync.Mutex
}

// New returns a Store rooted at dir.
func New(fsys fsutil.FileSystem, dir string) *Store {
	return &Store{fsys: fsys, dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the record path for an experiment.
func (s *Store) Path(expName string) string {
	return filepath.Join(s.dir, expName+FileSuffix)
}

// Exists reports whether a record exists for an experiment.
func (s *Store) Exists(expName string) bool {
	return s.fsys.Exists(s.Path(expName))
}

// Save writes the record atomically, replacing any previous one.
func (s *Store) Save(expName string, set behaviour.TrajectorySet, ports *behaviour.PortSet) error {
	if err := security.ValidateName(expName); err != nil {
		return err
	}
	data, err := Encode(set, ports)
	if err != nil {
		return fmt.Errorf("encode %s: %w", expName, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsutil.AtomicWrite(s.fsys, s.Path(expName), data)
}

// Load reads a record. A missing file is reported as behaviour.ErrNoSource
// and a name that is not a plain file name as security.ErrInvalidName.
func (s *Store) Load(expName string) (*Record, error) {
	if err := security.ValidateName(expName); err != nil {
		return nil, err
	}
	path := s.Path(expName)
	data, err := s.fsys.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, behaviour.ErrNoSource)
	}
	if err != nil {
		return nil, err
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Encode renders a trajectory set in the record layout.
func Encode(set behaviour.TrajectorySet, ports *behaviour.PortSet) ([]byte, error) {
	w := wireRecord{
		LeftTra:  samples(set.Left),
		RightTra: samples(set.Right),
		AllTra:   samples(set.All),
		Ports:    ports,
	}
	return json.Marshal(w)
}

func samples(trajs []behaviour.Trajectory) [][]behaviour.Sample {
	out := make([][]behaviour.Sample, len(trajs))
	for i, t := range trajs {
		out[i] = t.Samples
		if out[i] == nil {
			out[i] = []behaviour.Sample{}
		}
	}
	return out
}

// Decode parses a record. Destinations of all_tra entries are restored by
// matching them, in order, against the left and right lists.
func Decode(data []byte) (*Record, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode trajectory record: %w", err)
	}

	rec := &Record{Ports: w.Ports}
	for _, s := range w.LeftTra {
		rec.Set.Left = append(rec.Set.Left, behaviour.Trajectory{Destination: behaviour.DestinationLeft, Samples: s})
	}
	for _, s := range w.RightTra {
		rec.Set.Right = append(rec.Set.Right, behaviour.Trajectory{Destination: behaviour.DestinationRight, Samples: s})
	}

	if len(w.AllTra) != len(w.LeftTra)+len(w.RightTra) {
		return nil, fmt.Errorf("all_tra has %d trajectories, left_tra and right_tra have %d",
			len(w.AllTra), len(w.LeftTra)+len(w.RightTra))
	}
	li, ri := 0, 0
	for i, s := range w.AllTra {
		t := behaviour.Trajectory{Samples: s}
		switch {
		case li < len(rec.Set.Left) && sameRun(t, rec.Set.Left[li]):
			t.Destination = behaviour.DestinationLeft
			li++
		case ri < len(rec.Set.Right) && sameRun(t, rec.Set.Right[ri]):
			t.Destination = behaviour.DestinationRight
			ri++
		default:
			return nil, fmt.Errorf("all_tra[%d] (frame %d) matches neither left_tra nor right_tra", i, t.FirstFrame())
		}
		rec.Set.All = append(rec.Set.All, t)
	}
	return rec, nil
}

func sameRun(a, b behaviour.Trajectory) bool {
	return a.Len() == b.Len() && a.FirstFrame() == b.FirstFrame() && a.LastFrame() == b.LastFrame()
}
