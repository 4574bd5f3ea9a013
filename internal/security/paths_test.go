package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"m1controls1", false},
		{"rim10controlTwoOdor-1", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../etc/passwd", true},
		{`a\b`, true},
		{"a/b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidName), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "day1"), 0o755))
	outside := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"direct child", filepath.Join(dir, "data", "m1.csv"), false},
		{"nested", filepath.Join(dir, "data", "day1", "m1.csv"), false},
		{"missing parents", filepath.Join(dir, "data", "new", "deeper", "m1.csv"), false},
		{"dot dot", filepath.Join(dir, "data", "..", "m1.csv"), true},
		{"sibling", filepath.Join(outside, "m1.csv"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, filepath.Join(dir, "data"))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	err := ValidatePathWithinDirectory(filepath.Join(link, "m1.csv"), dir)
	assert.ErrorContains(t, err, "path traversal")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"m1controls1", "m1controls1"},
		{"cko / day 2", "cko_day_2"},
		{"..hidden..", "hidden"},
		{"", "unknown"},
		{"???", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), 128)
}
