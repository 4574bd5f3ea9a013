package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	fsys := OSFileSystem{}
	if !fsys.Exists(path) {
		t.Error("Exists() = false for present file")
	}
	if fsys.Exists(filepath.Join(dir, "absent.json")) {
		t.Error("Exists() = true for absent file")
	}
}

func TestMemoryFileSystem_WriteRequiresParent(t *testing.T) {
	m := NewMemoryFileSystem()
	err := m.WriteFile("out/record.json", []byte("{}"), 0644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("WriteFile() without parent error = %v, want ErrNotExist", err)
	}

	if err := m.MkdirAll("out", 0755); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteFile("out/record.json", []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := m.ReadFile("out/record.json")
	if err != nil || string(got) != "{}" {
		t.Errorf("ReadFile() = %q, %v", got, err)
	}
}

func TestMemoryFileSystem_RenameAndRemove(t *testing.T) {
	m := NewMemoryFileSystem()
	_ = m.MkdirAll("d", 0755)
	_ = m.WriteFile("d/a", []byte("1"), 0644)

	if err := m.Rename("d/a", "d/b"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if m.Exists("d/a") || !m.Exists("d/b") {
		t.Error("Rename() did not move the file")
	}
	if err := m.Rename("d/missing", "d/c"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename(missing) error = %v, want ErrNotExist", err)
	}
	if err := m.Remove("d/b"); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if err := m.Remove("d/b"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second Remove() error = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_ReadFileReturnsCopy(t *testing.T) {
	m := NewMemoryFileSystem()
	_ = m.MkdirAll("d", 0755)
	_ = m.WriteFile("d/a", []byte("abc"), 0644)

	got, _ := m.ReadFile("d/a")
	got[0] = 'x'
	again, _ := m.ReadFile("d/a")
	if string(again) != "abc" {
		t.Errorf("stored data mutated through returned slice: %q", again)
	}
}

func TestAtomicWrite(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := AtomicWrite(m, "runs/01/summary.csv", []byte("a,b\n")); err != nil {
		t.Fatalf("AtomicWrite() error = %v", err)
	}
	got, err := m.ReadFile("runs/01/summary.csv")
	if err != nil || string(got) != "a,b\n" {
		t.Errorf("ReadFile() = %q, %v", got, err)
	}
	if m.Exists("runs/01/.summary.csv.tmp") {
		t.Error("temp file left behind")
	}
}

func TestWriteFileAtomicOS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	if err := WriteFileAtomic(path, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != `{"ok":true}` {
		t.Errorf("ReadFile() = %q, %v", got, err)
	}
}

func TestTryLockDir(t *testing.T) {
	dir := t.TempDir()

	first, err := TryLockDir(dir)
	if err != nil {
		t.Fatalf("TryLockDir() error = %v", err)
	}

	if _, err := TryLockDir(dir); !errors.Is(err, ErrLocked) {
		t.Errorf("second TryLockDir() error = %v, want ErrLocked", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	again, err := TryLockDir(dir)
	if err != nil {
		t.Fatalf("TryLockDir() after unlock error = %v", err)
	}
	_ = again.Unlock()
}
