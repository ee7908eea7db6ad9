// Package lastaccess implements the sharded, mostly lock-free map the AET
// profiler uses to remember the timestamp of a key's last reference.
package lastaccess

import (
	"sync"
	"sync/atomic"

	"github.com/embedcache/evtune/internal/util"
)

// Map is a K -> *atomic.Uint64 table sharded by key hash. A shard's mutex
// guards the shard's map itself, so every lookup and insertion takes it
// briefly; lookups are not lock-free. Once a caller holds a slot, its
// value transitions via atomic CAS without holding any lock, so
// concurrent updates of the same key's timestamp do not serialize on a
// mutex.
type Map[K util.Integer] struct {
	shards []shard[K]
	mask   uint64
}

type shard[K util.Integer] struct {
	mu sync.Mutex
	m  map[K]*atomic.Uint64
}

// New constructs a Map with a power-of-two shard count sized by
// util.ReasonableShardCount.
func New[K util.Integer]() *Map[K] {
	n := util.NextPow2(uint64(util.ReasonableShardCount()))
	m := &Map[K]{
		shards: make([]shard[K], n),
		mask:   n - 1,
	}
	for i := range m.shards {
		m.shards[i].m = make(map[K]*atomic.Uint64)
	}
	return m
}

func (m *Map[K]) shardFor(k K) *shard[K] {
	return &m.shards[util.Fnv64a(k)&m.mask]
}

// LoadOrStore returns the slot for k, creating it (initialized to 0) if
// absent. The second return value reports whether the slot already
// existed.
func (m *Map[K]) LoadOrStore(k K) (slot *atomic.Uint64, loaded bool) {
	sh := m.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if v, ok := sh.m[k]; ok {
		return v, true
	}
	v := &atomic.Uint64{}
	sh.m[k] = v
	return v, false
}

// Load returns the slot for k without creating it.
func (m *Map[K]) Load(k K) (slot *atomic.Uint64, ok bool) {
	sh := m.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.m[k]
	return v, ok
}

// Delete removes k's slot entirely.
func (m *Map[K]) Delete(k K) {
	sh := m.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.m, k)
}

// Clear empties every shard.
func (m *Map[K]) Clear() {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		sh.m = make(map[K]*atomic.Uint64)
		sh.mu.Unlock()
	}
}

// Len returns the total number of tracked keys across all shards.
func (m *Map[K]) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		n += len(sh.m)
		sh.mu.Unlock()
	}
	return n
}

// CountTracked returns the number of slots whose value is non-zero, i.e.
// keys currently being tracked for reuse distance (as opposed to a slot
// that exists but was reset to 0 pending re-sampling). Used by the
// profiler's GetMRC under full sampling (sampling interval 1), matching
// cache_profiler.h's "count non-zero last_access_map entries" branch.
func (m *Map[K]) CountTracked() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for _, v := range sh.m {
			if v.Load() != 0 {
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}
