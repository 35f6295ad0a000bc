// Package fsutil holds the small filesystem helpers the compile pipeline
// needs: a stat that reports absence instead of failing, and an idempotent
// recursive directory creation.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Default permissions for created directories and written artifacts.
const (
	DirMode  os.FileMode = 0o755
	FileMode os.FileMode = 0o644
)

// FileInfo is the subset of file metadata the staleness policy looks at.
type FileInfo struct {
	Exists  bool
	IsDir   bool
	Size    int64
	ModTime time.Time
	// CTime is the inode change time where the platform exposes it, and the
	// modification time otherwise.
	CTime time.Time
}

// Stat returns metadata for path. A missing file is not an error: the
// returned FileInfo has Exists set to false. A path through a regular file
// (ENOTDIR) counts as missing.
func Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return FileInfo{}, nil
		}
		return FileInfo{}, err
	}

	return FromOS(info), nil
}

// FromOS converts an os.FileInfo.
func FromOS(info os.FileInfo) FileInfo {
	return FileInfo{
		Exists:  true,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		CTime:   changeTime(info),
	}
}

// MkdirAll creates dir and all missing ancestors. Existing directories are
// not an error.
func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DirMode)
}

// WriteFile writes data to path with the default artifact permissions.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, FileMode)
}

// Expand resolves a leading "~" to the home directory and returns an
// absolute, cleaned path.
func Expand(parts ...string) (string, error) {
	p := filepath.Clean(filepath.Join(parts...))
	if p == "~" || strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, p[1:])
	}

	return filepath.Abs(p)
}

// CommonPath returns the longest directory prefix shared by all paths,
// ending in a separator. A single path yields its own directory.
func CommonPath(paths ...string) string {
	if len(paths) == 0 {
		return ""
	}

	sep := string(filepath.Separator)
	common := strings.Split(filepath.Dir(paths[0]), sep)
	for _, p := range paths[1:] {
		parts := strings.Split(filepath.Dir(p), sep)
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}

	if len(common) == 0 {
		return ""
	}
	prefix := strings.Join(common, sep)
	if !strings.HasSuffix(prefix, sep) {
		prefix += sep
	}

	return prefix
}
