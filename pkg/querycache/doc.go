// Package querycache stores the last materialized pagination state for a
// logical list so that a controller created for the same list resumes
// without touching the network.
//
// Three stores implement the Store interface:
//
// - MemoryStore: process-wide map, no TTL, no eviction (the default)
// - LRUStore: bounded in-memory store for processes hosting many lists
// - RedisStore: snapshots shared between the processes of one deployment
//
// # Basic Usage
//
//	store := querycache.NewMemoryStore[Coin]()
//
//	key := querycache.Key{
//		List:   "coins/most-valuable",
//		Params: url.Values{"chain": []string{"base"}},
//	}
//
//	snap, err := store.Get(ctx, key.String())
//	if errors.Is(err, querycache.ErrCacheMiss) {
//		// Cache miss - fetch from the remote source
//	}
//
// Writers always overwrite the whole snapshot. Two live controllers writing
// the same key race and the last writer wins.
//
// # Metrics
//
//   - querycache_hits_total{store} - Snapshot lookups that found an entry
//   - querycache_misses_total{store} - Snapshot lookups that found nothing
//   - querycache_writes_total{store} - Snapshot writes
//   - querycache_errors_total{store, operation} - Store operation errors
package querycache
