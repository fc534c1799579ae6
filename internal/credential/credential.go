// Package credential persists the A2E API token between runs.
//
// All stores keep a single value under Key. Writes are last-write-wins.
package credential

import (
	"context"
	"strings"
	"sync"

	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// Key is the name the token is stored under.
const Key = "a2e_api_token"

// Compile-time checks that the stores implement generation.CredentialStore.
var (
	_ generation.CredentialStore = (*MemoryStore)(nil)
	_ generation.CredentialStore = (*FileStore)(nil)
	_ generation.CredentialStore = (*RedisStore)(nil)
)

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	value string
}

// NewMemoryStore creates a store seeded with value, which may be empty.
func NewMemoryStore(value string) *MemoryStore {
	return &MemoryStore{value: strings.TrimSpace(value)}
}

// Get returns the stored token or generation.ErrNoCredential.
func (s *MemoryStore) Get(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.value == "" {
		return "", generation.ErrNoCredential
	}
	return s.value, nil
}

// Set replaces the stored token.
func (s *MemoryStore) Set(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	return nil
}

// Clear removes the stored token.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	return nil
}
