package generation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrEntryNotFound is returned when a history entry cannot be found by attempt ID.
var ErrEntryNotFound = errors.New("history entry not found")

// Entry is a discarded or finished generation attempt.
type Entry struct {
	AttemptID string    `json:"attempt_id"`
	Phase     Phase     `json:"phase"`
	Request   *Request  `json:"request,omitempty"`
	Task      *Task     `json:"task,omitempty"`
	Error     string    `json:"error,omitempty"`
	ResultURL string    `json:"result_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func entryFrom(s State) Entry {
	s = s.Clone()
	e := Entry{
		AttemptID: s.AttemptID,
		Phase:     s.Phase,
		Request:   s.Request,
		Task:      s.Task,
		ResultURL: s.ResultURL,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Error != nil {
		e.Error = s.Error.Message
	}
	return e
}

// History records attempts the orchestrator has moved past.
// Entries are only ever added or overwritten, never deleted.
type History interface {
	// Save persists an entry, replacing one with the same attempt ID.
	Save(ctx context.Context, e Entry) error

	// FindByID returns ErrEntryNotFound if the attempt is unknown.
	FindByID(ctx context.Context, attemptID string) (Entry, error)

	// List returns all entries, most recently updated first.
	List(ctx context.Context) ([]Entry, error)
}

// Compile-time check that MemoryHistory implements History.
var _ History = (*MemoryHistory)(nil)

// MemoryHistory is an in-memory implementation of History.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		entries: make(map[string]Entry),
	}
}

// Save stores e keyed by its attempt ID.
func (h *MemoryHistory) Save(_ context.Context, e Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[e.AttemptID] = e
	return nil
}

// FindByID retrieves an entry by attempt ID.
func (h *MemoryHistory) FindByID(_ context.Context, attemptID string) (Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[attemptID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

// List returns all entries, most recently updated first.
func (h *MemoryHistory) List(_ context.Context) ([]Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]Entry, 0, len(h.entries))
	for _, e := range h.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}
