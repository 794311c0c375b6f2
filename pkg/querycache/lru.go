package querycache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLRUSize is the capacity used when NewLRUStore is given size <= 0.
const DefaultLRUSize = 1000

// LRUStore is a bounded in-memory store. When more than size lists are
// cached the least recently used snapshot is dropped.
type LRUStore[T any] struct {
	cache *lru.Cache[string, *Snapshot[T]]
}

// NewLRUStore creates a bounded store holding at most size snapshots.
func NewLRUStore[T any](size int) (*LRUStore[T], error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	cache, err := lru.New[string, *Snapshot[T]](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRUStore[T]{cache: cache}, nil
}

// Get returns a copy of the snapshot stored under key.
func (s *LRUStore[T]) Get(_ context.Context, key string) (*Snapshot[T], error) {
	snap, ok := s.cache.Get(key)
	if !ok {
		CacheMisses.WithLabelValues("lru").Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.WithLabelValues("lru").Inc()
	return snap.Clone(), nil
}

// Set stores a copy of snap under key.
func (s *LRUStore[T]) Set(_ context.Context, key string, snap *Snapshot[T]) error {
	if snap == nil {
		CacheErrors.WithLabelValues("lru", "set").Inc()
		return ErrNilSnapshot
	}
	s.cache.Add(key, snap.Clone())
	CacheWrites.WithLabelValues("lru").Inc()
	return nil
}

// Delete removes the snapshot stored under key.
func (s *LRUStore[T]) Delete(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

// Clear removes every snapshot.
func (s *LRUStore[T]) Clear(_ context.Context) error {
	s.cache.Purge()
	return nil
}

// Len returns the number of stored snapshots.
func (s *LRUStore[T]) Len() int {
	return s.cache.Len()
}
