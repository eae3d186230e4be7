package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is a process-local Store. It starts empty and does not survive
// a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	// Clock returns the current time. Tests replace it with a fake.
	Clock func() time.Time
}

// NewMemoryStore returns an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memEntry{}, Clock: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.Clock().Before(e.expires) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	data := make([]byte, len(value))
	copy(data, value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memEntry{data: data, expires: s.Clock().Add(ttl)}
}

func (s *MemoryStore) InvalidateAll(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]memEntry{}
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
