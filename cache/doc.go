// Package cache provides the key-only batch caches (LRU, ShardedLRU, LFU)
// used to track which embedding IDs are resident in the fast tier.
//
// Design
//
//   - Storage: a cache holds no values. It only decides, for a batch of
//     referenced keys, which are resident ("cached") and which should be
//     evicted. Values live in the caller's own storage tier.
//
//   - Prefetch: before a missing key can be admitted via AddToCache, it
//     must be pinned via AddToPrefetchList. This models an outstanding
//     fetch from slower storage; pins coalesce concurrent prefetches for
//     the same key via a reference count.
//
//   - Eviction: GetEvictIDs destructively removes and returns the
//     least-valuable resident candidates (LRU tail / LFU lowest bucket).
//     Update and AddToCache do not evict on their own unless the opt-in
//     StrictSize mode (see Options) is set, in which case both trim down
//     to the size budget; SetSize always trims to the new budget.
//
//   - Sharding: ShardedLRU partitions the keyspace across 1<<ShardShift
//     independent shards using the literal bitwise mask key&(shards-1),
//     trading perfect global LRU ordering for reduced lock contention —
//     see the package-level Non-goals note in SPEC_FULL.md.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals. By
//     default NoopMetrics is used; metrics/prom adapts this onto
//     Prometheus collectors.
//
// Basic usage
//
//	c := cache.NewLRU[int64](cache.Options{Name: "hot", SizeBytes: 1 << 20})
//	c.AddToPrefetchList(ids, n)
//	// ... fetch ids from storage ...
//	c.AddToCache(ids, n)
//	c.Update(ids, n, nil, nil)
package cache
