package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWrite writes data to path through a temporary sibling file and a
// rename, so readers never observe a partially written file. Missing parent
// directories are created.
func AtomicWrite(fsys FileSystem, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp")
	if err := fsys.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic is AtomicWrite on the real filesystem.
func WriteFileAtomic(path string, data []byte) error {
	return AtomicWrite(OSFileSystem{}, path, data)
}

// ensureDir creates dir when it does not exist yet.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
