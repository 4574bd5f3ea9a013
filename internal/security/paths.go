// Package security guards the file names and paths that come from manifests
// and request URLs before they reach the filesystem.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that are not a single safe path
// element.
var ErrInvalidName = errors.New("invalid name")

// ValidateName checks that name can be used as one file name component. It
// rejects empty names, separators and the dot entries.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// ValidatePathWithinDirectory checks that filePath resolves inside dir.
// Symlinks are resolved for whichever leading part of the path exists, so a
// link pointing out of dir is caught even when the leaf is not created yet.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", filePath, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	canonicalPath := canonical(absPath)
	canonicalDir := canonical(absDir)

	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("%s is outside %s: %w", filePath, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

// canonical resolves symlinks on the longest existing prefix of an absolute
// path and re-attaches the rest.
func canonical(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for check := abs; ; {
		parent := filepath.Dir(check)
		if parent == check {
			return abs
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, abs)
			return filepath.Join(resolved, rest)
		}
		check = parent
	}
}

// SanitizeFilename replaces every rune other than ASCII letters, digits, dot,
// underscore and dash with a single underscore and caps the length at 128.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
