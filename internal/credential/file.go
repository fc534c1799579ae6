package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// FileStore keeps the token in a JSON object on disk, next to any other keys
// already present in the file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on the
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the stored token or generation.ErrNoCredential.
func (s *FileStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	v := values[Key]
	if v == "" {
		return "", generation.ErrNoCredential
	}
	return v, nil
}

// Set writes the token to disk.
func (s *FileStore) Set(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[Key] = value
	return s.write(values)
}

// Clear removes the token from disk, keeping other keys.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[Key]; !ok {
		return nil
	}
	delete(values, Key)
	return s.write(values)
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential: read %s: %w", s.path, err)
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("credential: decode %s: %w", s.path, err)
	}
	return values, nil
}

// write replaces the file atomically through a temp file in the same directory.
func (s *FileStore) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credential: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("credential: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credential: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credential: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credential: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("credential: rename: %w", err)
	}
	return nil
}
