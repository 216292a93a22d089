// Package blob stores ticket attachments on disk under opaque keys and
// extracts plain text from them for summarization.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no attachment exists for a key.
var ErrNotFound = errors.New("attachment not found")

// Store abstracts attachment persistence.
type Store interface {
	// Save writes the content and returns an opaque key. The original
	// filename only contributes its extension.
	Save(name string, r io.Reader) (string, error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
}

// DiskStore keeps attachments as flat files in a single directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Save(name string, r io.Reader) (string, error) {
	key := uuid.New().String() + safeExt(name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing attachment: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return "", fmt.Errorf("placing attachment: %w", err)
	}
	return key, nil
}

func (s *DiskStore) Open(key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening attachment: %w", err)
	}
	return f, nil
}

func (s *DiskStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("removing attachment: %w", err)
	}
	return nil
}

// path validates a key and resolves it inside the store directory.
// Keys are single flat filenames; anything path-like is rejected.
func (s *DiskStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid attachment key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

// safeExt extracts a lowercased extension from an uploaded filename,
// dropping anything that could not be part of a flat key.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	if ext == "." {
		return ""
	}
	return ext
}
