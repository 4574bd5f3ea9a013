package fsutil

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file created inside a locked directory.
const LockFileName = ".trajectory.lock"

// ErrLocked is returned by TryLockDir when another process holds the lock.
var ErrLocked = errors.New("directory is locked by another process")

// DirLock is an exclusive advisory lock on an output directory. It keeps a
// single writer per directory across processes.
type DirLock struct {
	flock *flock.Flock
	path  string
}

// TryLockDir acquires the lock for dir without blocking. The directory is
// created if needed. Returns ErrLocked when another holder exists.
func TryLockDir(dir string) (*DirLock, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, LockFileName)
	fl := flock.New(path)
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to try lock on %s: %w", path, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}
	return &DirLock{flock: fl, path: path}, nil
}

// Unlock releases the lock.
func (l *DirLock) Unlock() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}
