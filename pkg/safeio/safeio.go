package safeio

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrTraversal is returned when a path climbs out of its base directory.
	ErrTraversal = errors.New("path traversal detected")
	// ErrAbsolute is returned when a repository-relative path is absolute.
	ErrAbsolute = errors.New("absolute path not allowed")
)

// CleanRelPath cleans a user-provided, repository-relative path and rejects
// absolute paths and any ".." segment left after cleaning. The result uses
// forward slashes.
func CleanRelPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("path cannot be empty")
	}
	slashed := filepath.ToSlash(p)
	if filepath.IsAbs(p) || strings.HasPrefix(slashed, "/") {
		return "", ErrAbsolute
	}
	c := path.Clean(slashed)
	for _, seg := range strings.Split(c, "/") {
		if seg == ".." {
			return "", ErrTraversal
		}
	}
	return c, nil
}

// ReadFileContained reads a file only if it is contained within baseDir.
// Returns an error if the file is outside baseDir or cannot be read; the
// underlying os error is wrapped so callers can test for fs.ErrNotExist.
func ReadFileContained(baseDir, filePath string) ([]byte, error) {
	baseDirAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.New("failed to resolve base directory")
	}
	filePathAbs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, errors.New("failed to resolve file path")
	}

	rel, err := filepath.Rel(baseDirAbs, filePathAbs)
	if err != nil {
		return nil, errors.New("failed to compute relative path")
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return nil, errors.New("file path is outside base directory")
	}

	// #nosec G304 -- filePathAbs has been verified to be contained within baseDirAbs
	return os.ReadFile(filePathAbs)
}

// WriteFilePreservePerms writes data to path preserving existing file mode when possible.
// When the file does not exist, it uses a sane default of 0644.
func WriteFilePreservePerms(path string, data []byte) error {
	var mode os.FileMode = 0o644
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode() & 0o777
		if mode == 0 {
			mode = 0o644
		}
	}
	return os.WriteFile(path, data, mode)
}
