package querycache

import (
	"context"
	"sync"
)

// MemoryStore is the process-wide snapshot store. Entries live until they
// are overwritten, deleted or the store is cleared.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]*Snapshot[T]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{
		entries: make(map[string]*Snapshot[T]),
	}
}

// Get returns a copy of the snapshot stored under key.
func (m *MemoryStore[T]) Get(_ context.Context, key string) (*Snapshot[T], error) {
	m.mu.RLock()
	snap, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	return snap.Clone(), nil
}

// Set stores a copy of snap under key, replacing any previous snapshot.
func (m *MemoryStore[T]) Set(_ context.Context, key string, snap *Snapshot[T]) error {
	if snap == nil {
		CacheErrors.WithLabelValues("memory", "set").Inc()
		return ErrNilSnapshot
	}

	m.mu.Lock()
	m.entries[key] = snap.Clone()
	m.mu.Unlock()

	CacheWrites.WithLabelValues("memory").Inc()
	return nil
}

// Delete removes the snapshot stored under key.
func (m *MemoryStore[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Clear removes every snapshot.
func (m *MemoryStore[T]) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]*Snapshot[T])
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored snapshots.
func (m *MemoryStore[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
