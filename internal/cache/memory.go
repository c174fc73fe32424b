package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
	stale     bool
}

// MemoryStore is an in-process Store with a fixed TTL.
type MemoryStore struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[Key]*memoryEntry
	mu      sync.RWMutex
}

// NewMemoryStore creates a store whose entries stay fresh for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Key]*memoryEntry),
	}
}

// Get decodes a fresh entry.
func (m *MemoryStore) Get(_ context.Context, key Key, out any) bool {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.stale || !m.now().Before(e.expiresAt) {
		return false
	}
	return json.Unmarshal(e.data, out) == nil
}

// GetStale decodes an entry even if it was invalidated or expired.
func (m *MemoryStore) GetStale(_ context.Context, key Key, out any) bool {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(e.data, out) == nil
}

// Set stores val. Values that cannot be encoded are skipped.
func (m *MemoryStore) Set(_ context.Context, key Key, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &memoryEntry{data: data, expiresAt: m.now().Add(m.ttl)}
}

// Invalidate marks the entry stale.
func (m *MemoryStore) Invalidate(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.stale = true
	}
	return nil
}

// Cleanup drops expired entries and returns how many were removed.
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}
