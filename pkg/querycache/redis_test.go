package querycache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips when none is available.
// Container-backed coverage lives in tests/integration.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore[string](nil, RedisConfig{})
}

func TestNewRedisStore_DefaultNamespace(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewRedisStore[string](client, RedisConfig{})
	if got := store.key("coins"); got != "querycache:coins" {
		t.Errorf("key() = %q, want %q", got, "querycache:coins")
	}
}

func TestRedisStore_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, RedisConfig{Namespace: "test"})
	ctx := context.Background()

	if err := store.Set(ctx, "coins", testSnapshot()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "coins")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(testSnapshot(), got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestRedisStore_Get_CacheMiss(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, RedisConfig{Namespace: "test"})

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisStore_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, RedisConfig{Namespace: "test"})
	ctx := context.Background()

	client.Set(ctx, "test:broken", "not json", 0)

	if _, err := store.Get(ctx, "broken"); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestRedisStore_TTL(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, RedisConfig{Namespace: "test", TTL: time.Minute})
	ctx := context.Background()

	_ = store.Set(ctx, "coins", testSnapshot())

	ttl, err := client.TTL(ctx, "test:coins").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
}

func TestRedisStore_Clear(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, RedisConfig{Namespace: "test"})
	other := NewRedisStore[string](client, RedisConfig{Namespace: "other"})
	ctx := context.Background()

	_ = store.Set(ctx, "coins", testSnapshot())
	_ = store.Set(ctx, "creators", testSnapshot())
	_ = other.Set(ctx, "coins", testSnapshot())

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, err := store.Get(ctx, "creators"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Clear, got %v", err)
	}
	if _, err := other.Get(ctx, "coins"); err != nil {
		t.Errorf("Clear removed a key outside its namespace: %v", err)
	}

	_ = other.Delete(ctx, "coins")
	if _, err := other.Get(ctx, "coins"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}
