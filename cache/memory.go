package cache

import (
	"bytes"
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Entries are copied on the way in and
// out so callers never share payload buffers with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]*Entry)}
}

// Load retrieves the entry for key. Returns ErrNotFound on miss.
func (s *MemoryStore) Load(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(entry), nil
}

// Save stores entry, replacing any previous value for its key.
func (s *MemoryStore) Save(_ context.Context, entry *Entry) error {
	if err := entry.Key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[entry.Key] = cloneEntry(entry)
	s.mu.Unlock()
	return nil
}

// Delete removes the entry for key. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cloneEntry(e *Entry) *Entry {
	out := *e
	out.Payload = bytes.Clone(e.Payload)
	if e.ArtifactRefs != nil {
		out.ArtifactRefs = append([]string(nil), e.ArtifactRefs...)
	}
	return &out
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
