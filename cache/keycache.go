// Package cache implements the key-only batch caches used to decide which
// embedding IDs are resident in the fast tier: LRU, a sharded LRU variant,
// and LFU. Caches never store values — callers look values up elsewhere
// (e.g. a storage tier) once they know a key is resident or should be
// fetched.
package cache

import "github.com/embedcache/evtune/internal/util"

// Key is the set of integer kinds this module supports as a cache key.
// Embedding IDs are integral, and cache.ShardedLRU's shard-selection
// formula (key & (shards-1)) needs literal bitwise arithmetic, so Key is
// narrower than a plain `comparable` constraint.
type Key = util.Integer

// Cache is a key-only batch cache. All methods are safe for concurrent use
// by multiple goroutines.
//
// A cache tracks, for every resident key, which policy store (LRU list /
// LFU frequency bucket) it lives in. A key additionally may be "pinned" in
// the prefetch table while a fetch for it is outstanding. A key is in at
// most one of {policy store, prefetch table} at any time.
type Cache[K Key] interface {
	// Update records a batch of n references to keys[0:n]. For each key
	// already resident, it is promoted by the active policy and counted as
	// a hit. For each key not resident, it is inserted as most-recent (LRU)
	// or at frequency 1 (LFU) and counted as a miss. If versions/freqs are
	// non-nil, versions[i]/freqs[i] are recorded against keys[i] (every
	// policy records the version; LRU ignores freqs, while LFU folds a
	// positive freqs[i] into its bucket count — on insert, freqs[i] seeds
	// the initial frequency if supplied and positive).
	Update(keys []K, n int, versions, freqs []int64)

	// GetEvictIDs removes up to k of the least-valuable resident keys (the
	// current LRU tail / lowest LFU bucket), writes them into buf, and
	// returns the number removed. Removal is destructive: the returned
	// keys cease to exist in the policy store. Candidates are returned
	// least-valuable first.
	GetEvictIDs(buf []K, k int) int

	// GetCachedIDs fills buf with up to k resident keys (MRU-first for
	// LRU, highest-bucket-first for LFU) and returns the number written.
	// versionsOut/freqsOut, if non-nil, are filled with the recorded
	// version/frequency for each returned key (zero-filled where the
	// policy does not track the value).
	GetCachedIDs(buf []K, k int, versionsOut, freqsOut []int64) int

	// AddToPrefetchList marks keys[0:n] as pending: a fetch has been
	// issued for them and they are not yet safe to admit into the policy
	// store. Each key is pinned with a reference count, so multiple
	// concurrent prefetches for the same key are coalesced.
	AddToPrefetchList(keys []K, n int)

	// AddToCache admits keys[0:n], which must have been prefetch-pinned,
	// into the policy store once each key's pin count reaches zero. It
	// evicts down to the size budget only when Options.StrictSize is set.
	// It panics if a key was never prefetch-pinned — this is a programmer
	// error (the original implementation treats it as a fatal condition).
	AddToCache(keys []K, n int)

	// Size returns the number of distinct keys currently resident in the
	// policy store (prefetch-pinned keys do not count).
	Size() int64

	// Capacity returns the current size budget in bytes.
	Capacity() int64

	// SetSize changes the size budget in bytes, evicting immediately if
	// the new budget is smaller than the current resident footprint.
	SetSize(n int64)

	// GetHitRate returns the fraction of Update references that hit a
	// resident key since the cache was created.
	GetHitRate() float64

	// DebugString returns a short human-readable snapshot of the cache's
	// state, suitable for logging.
	DebugString() string

	// MoveCounts returns the number of promotions (hits that reordered the
	// policy store) and demotions (evictions) observed since the cache was
	// created or ResetMoveCounts was last called. Used by the manager's
	// TuneLoop reactivation heuristic.
	MoveCounts() (promotions, demotions uint64)

	// ResetMoveCounts zeroes the promotion/demotion counters.
	ResetMoveCounts()

	// EntrySize returns the fixed per-entry byte footprint used to convert
	// the byte-size budget into an entry count.
	EntrySize() int64

	// Name returns the cache's registration name (set at construction).
	Name() string
}
