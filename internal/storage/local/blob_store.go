// Package local implements a flat local filesystem blob store.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the directory holding one file per object. It is created on
	// the first write.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes objects as files directly inside BaseDir.
type BlobStore struct {
	baseDir string

	mu      sync.Mutex
	created bool
}

// New creates a new local filesystem-backed blob store. The directory is not
// touched until the first PutObject.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// BaseDir returns the output directory.
func (s *BlobStore) BaseDir() string {
	return s.baseDir
}

// PutObject writes data to BaseDir/name and returns a file:// URI. Names must
// be flat; anything that would resolve to a nested or parent path is rejected.
func (s *BlobStore) PutObject(ctx context.Context, name string, _ string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("object name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("object name %q must not contain path elements", name)
	}
	if err := s.ensureDir(); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.baseDir, name)
	if err := writeAtomic(fullPath, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}

// writeAtomic streams data into a temp file next to target and renames it
// into place, so concurrent writers to one name leave the last complete body.
func writeAtomic(target string, data io.Reader) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// ensureDir creates the base directory once. A failed attempt is retried on
// the next write.
func (s *BlobStore) ensureDir() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}
	info, err := os.Stat(s.baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(s.baseDir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("base directory path %s is not a directory", s.baseDir)
	}
	s.created = true
	return nil
}
