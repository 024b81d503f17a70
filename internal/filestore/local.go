package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

// LocalStore resolves storage paths relative to a base directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve local store dir: %w", err)
	}
	return &LocalStore{dir: abs}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// Resolve returns the absolute path of an existing regular file under the
// base directory. Paths escaping the directory are treated as missing.
func (s *LocalStore) Resolve(storagePath string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimSpace(storagePath)))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage path %q outside base dir: %w", storagePath, appErr.ErrNotFound)
	}
	full := filepath.Join(s.dir, rel)
	st, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("file %q not found: %w", storagePath, appErr.ErrNotFound)
		}
		return "", fmt.Errorf("stat %q: %w", storagePath, err)
	}
	if st.IsDir() {
		return "", fmt.Errorf("storage path %q is a directory: %w", storagePath, appErr.ErrNotFound)
	}
	return full, nil
}
