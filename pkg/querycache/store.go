package querycache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates no snapshot is stored for the requested key
	ErrCacheMiss = errors.New("cache miss")

	// ErrNilSnapshot is returned when Set is called without a snapshot
	ErrNilSnapshot = errors.New("snapshot cannot be nil")

	// ErrInvalidEntry indicates a stored snapshot could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a key to snapshot store shared by pagination controllers.
//
// Get returns ErrCacheMiss when nothing is stored under key. Set overwrites
// any previous snapshot wholesale.
type Store[T any] interface {
	Get(ctx context.Context, key string) (*Snapshot[T], error)
	Set(ctx context.Context, key string, snap *Snapshot[T]) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
