// Package media stores and normalises user-uploaded images.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage is a flat directory of image files. Safe for concurrent use.
type Storage struct {
	dir string
	mu  sync.Mutex
}

// NewStorage creates {baseDir}/{subdir} if needed.
func NewStorage(baseDir, subdir string) (*Storage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if subdir == "" {
		return nil, fmt.Errorf("subdirectory cannot be empty")
	}

	dir := filepath.Join(baseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", subdir, err)
	}

	return &Storage{dir: dir}, nil
}

// Save writes data under name, replacing any existing file. The write goes
// to a temp file first so readers never see a partial image.
func (s *Storage) Save(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod image: %w", err)
	}
	if err := os.Rename(tmpName, s.filePath(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename image: %w", err)
	}
	return nil
}

// Delete removes name. Deleting a missing file is not an error.
func (s *Storage) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

func (s *Storage) filePath(name string) string {
	return filepath.Join(s.dir, name)
}

// validName rejects anything that could escape the storage directory.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
