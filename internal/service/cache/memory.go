// Package cache provides result cache backends for service outcomes.
package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"citebroker/pkg/platform/sentinel"
)

// sweepEvery is the number of writes between scans for expired entries.
const sweepEvery = 256

type entry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is an in-process cache with per-entry expiry. Expired entries
// are dropped on read and by a sweep that runs every sweepEvery writes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	writes  int
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !m.now().Before(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && !m.now().Before(cur.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	return slices.Clone(e.value), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.writes++
	if m.writes >= sweepEvery {
		m.writes = 0
		m.sweep(now)
	}
	m.entries[key] = entry{value: slices.Clone(value), expires: now.Add(ttl)}
	return nil
}

// sweep drops expired entries. Callers hold the write lock.
func (m *MemoryStore) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

// Len counts stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
