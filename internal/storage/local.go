package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements Storage on local disk. Temporary files live in
// a hidden subdirectory of the root; archived objects are written below
// the root by key.
type LocalStorage struct {
	root    string
	tempDir string
}

// NewLocalStorage creates a new LocalStorage rooted at dir.
// If dir is empty, a directory under os.TempDir() is used.
// The directories are created if they don't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "i2v-results")
	}

	tempDir := filepath.Join(dir, ".tmp")
	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &LocalStorage{root: dir, tempDir: tempDir}, nil
}

// Root returns the directory archived objects are written to.
func (s *LocalStorage) Root() string {
	return s.root
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, filepath.Base(name)+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp reads a temporary file and returns a reader.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path comes from SaveTemp
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified temporary files, returning the first
// error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Put writes data to <root>/<key> and returns the file path.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dest, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.Create(dest) // #nosec G304 - dest is confined to root
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}

	return dest, nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || clean == "." || filepath.IsAbs(clean) ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, clean), nil
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)
