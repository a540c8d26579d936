package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// MemoryStore is an in-process idempotency store. Expired entries linger until
// swept or overwritten, but Get never returns them.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

// PutNX implements Store.
func (s *MemoryStore) PutNX(_ context.Context, key string, record *Record, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && s.now().Before(entry.expiresAt) {
		return false, nil
	}
	s.entries[key] = memoryEntry{
		record:    *record,
		expiresAt: s.now().Add(ttl),
	}
	return true, nil
}

// SweepExpired implements Store.
func (s *MemoryStore) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	cutoff := s.now()
	for key, entry := range s.entries {
		if cutoff.After(entry.expiresAt) {
			delete(s.entries, key)
			purged++
		}
	}
	return purged, nil
}

// Len reports live plus expired-but-unswept entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
