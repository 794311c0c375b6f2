package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/feed-pager/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultNamespace prefixes every key written by a RedisStore.
const DefaultNamespace = "querycache"

// RedisStore shares snapshots between the processes of one deployment.
type RedisStore[T any] struct {
	redis     *redis.Client
	namespace string
	ttl       time.Duration
	logger    zerolog.Logger
}

// RedisConfig holds RedisStore configuration.
type RedisConfig struct {
	// Namespace is prepended to every key (default: DefaultNamespace)
	Namespace string

	// TTL bounds the lifetime of a snapshot; 0 keeps it until overwritten
	TTL time.Duration
}

// NewRedisStore creates a store backed by redisClient.
func NewRedisStore[T any](redisClient *redis.Client, cfg RedisConfig) *RedisStore[T] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	return &RedisStore[T]{
		redis:     redisClient,
		namespace: cfg.Namespace,
		ttl:       cfg.TTL,
		logger: logging.NewLogger(logging.ComponentQueryCache).With().
			Str("store", "redis").
			Str("namespace", cfg.Namespace).
			Logger(),
	}
}

func (s *RedisStore[T]) key(key string) string {
	return s.namespace + ":" + key
}

// Get retrieves and decodes the snapshot stored under key.
func (s *RedisStore[T]) Get(ctx context.Context, key string) (*Snapshot[T], error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues("redis").Inc()
			s.logger.Debug().Str("key", key).Msg("Cache miss")
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap Snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		CacheErrors.WithLabelValues("redis", "get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable snapshot")
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	s.logger.Debug().
		Str("key", key).
		Int("fetched", len(snap.AllFetchedItems)).
		Msg("Cache hit")
	return &snap, nil
}

// Set encodes snap and stores it under key.
func (s *RedisStore[T]) Set(ctx context.Context, key string, snap *Snapshot[T]) error {
	if snap == nil {
		CacheErrors.WithLabelValues("redis", "set").Inc()
		return ErrNilSnapshot
	}

	data, err := json.Marshal(snap)
	if err != nil {
		CacheErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheWrites.WithLabelValues("redis").Inc()
	return nil
}

// Delete removes the snapshot stored under key.
func (s *RedisStore[T]) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		CacheErrors.WithLabelValues("redis", "delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every snapshot in the store's namespace.
func (s *RedisStore[T]) Clear(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, s.namespace+":*", 100).Iterator()

	var batch []string
	removed := 0
	for iter.Next(ctx) {
		removed++
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := s.redis.Del(ctx, batch...).Err(); err != nil {
				CacheErrors.WithLabelValues("redis", "clear").Inc()
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("redis", "clear").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}

	if len(batch) > 0 {
		if err := s.redis.Del(ctx, batch...).Err(); err != nil {
			CacheErrors.WithLabelValues("redis", "clear").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}

	s.logger.Debug().Int("removed", removed).Msg("Cleared namespace")
	return nil
}
