package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/embedcache/evtune/internal/telemetry"
	"github.com/embedcache/evtune/internal/util"
	"github.com/embedcache/evtune/policy"
	"github.com/embedcache/evtune/policy/lru"
	"github.com/rs/zerolog"
)

// lruShard is one partition of a ShardedLRU: its own map, intrusive list,
// and LRU policy instance, each guarded by its own mutex. The prefetch
// table is deliberately a SEPARATE structure with its own mutex, per the
// spec's lock-ordering rule: a caller must acquire the prefetch mutex
// before the policy mutex, and must release the policy mutex before
// touching the prefetch table again (e.g. to re-pin a key that lost an
// eviction race).
type lruShard[K Key] struct {
	mu   sync.Mutex
	m    map[K]*node[K]
	head *node[K]
	tail *node[K]
	pol  policy.ShardPolicy[K]

	prefetchMu sync.Mutex
	prefetch   map[K]*pin[K]

	maxEntry int64

	_          util.CacheLinePad
	promotions util.PaddedAtomicUint64
	demotions  util.PaddedAtomicUint64
}

// ShardedLRU partitions the keyspace across 1<<ShardShift independent
// lruShards, each sized to an equal fraction of the total budget. Shard
// selection is the spec's literal bitwise mask (key & (shards-1)), ported
// from the original's ShardedLRUCache::Shard, not a hash — this keeps the
// partitioning deterministic and matches the original's reasoning that
// sequential embedding IDs should fan out round-robin across shards.
type ShardedLRU[K Key] struct {
	shards []*lruShard[K]
	mask   K

	opt Options

	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64

	log zerolog.Logger

	accessed atomic.Int64
}

// NewShardedLRU constructs a ShardedLRU cache. Returns an error instead of
// panicking on invalid configuration (negative/absurd ShardShift,
// non-positive SizeBytes) so the factory can surface construction
// failures to callers instead of crashing the process before the cache is
// even registered.
func NewShardedLRU[K Key](opt Options) (*ShardedLRU[K], error) {
	o := opt.withDefaults()
	if o.SizeBytes <= 0 {
		return nil, fmt.Errorf("cache: SizeBytes must be > 0")
	}
	if o.Name == "" {
		return nil, fmt.Errorf("cache: Name must be set")
	}
	if o.ShardShift > 20 {
		return nil, fmt.Errorf("cache: ShardShift %d is unreasonably large", o.ShardShift)
	}

	shardCount := int64(1) << o.ShardShift
	c := &ShardedLRU[K]{
		shards: make([]*lruShard[K], shardCount),
		mask:   K(shardCount - 1),
		opt:    o,
		log:    telemetry.New("cache." + o.Name),
	}

	perShardEntries := o.maxEntries() / shardCount
	if perShardEntries < 1 {
		perShardEntries = 1
	}
	for i := int64(0); i < shardCount; i++ {
		sh := &lruShard[K]{
			m:        make(map[K]*node[K]),
			prefetch: make(map[K]*pin[K]),
			maxEntry: perShardEntries,
		}
		sh.pol = lru.New[K]().New(shardLRUHooks[K]{s: sh})
		c.shards[i] = sh
	}
	return c, nil
}

func (c *ShardedLRU[K]) Name() string     { return c.opt.Name }
func (c *ShardedLRU[K]) EntrySize() int64 { return c.opt.EntrySize }
func (c *ShardedLRU[K]) Capacity() int64  { return c.opt.SizeBytes }

// Size returns the number of distinct keys currently resident across all
// shards.
func (c *ShardedLRU[K]) Size() int64 { return c.residentCount() }

func (c *ShardedLRU[K]) shardFor(k K) *lruShard[K] {
	return c.shards[k&c.mask]
}

func (c *ShardedLRU[K]) SetSize(n int64) {
	c.opt.SizeBytes = n
	perShardEntries := c.opt.maxEntries() / int64(len(c.shards))
	if perShardEntries < 1 {
		perShardEntries = 1
	}
	for _, sh := range c.shards {
		sh.mu.Lock()
		sh.maxEntry = perShardEntries
		sh.evictToLimitLocked(&c.opt)
		sh.mu.Unlock()
	}
}

func (c *ShardedLRU[K]) Update(keys []K, n int, versions, freqs []int64) {
	for i := 0; i < n; i++ {
		k := keys[i]
		c.accessed.Add(1)
		sh := c.shardFor(k)

		sh.mu.Lock()
		if nd, ok := sh.m[k]; ok {
			if versions != nil {
				nd.version = versions[i]
			}
			sh.pol.OnUpdate(nd)
			sh.promotions.Add(1)
			sh.mu.Unlock()
			c.hits.Add(1)
			c.opt.Metrics.Hit()
			continue
		}

		// Miss: insert as most-recent in this shard. Strict size
		// enforcement, if enabled, reclaims immediately; otherwise excess
		// residents are left for the caller to reclaim via GetEvictIDs.
		nd := &node[K]{key: k}
		if versions != nil {
			nd.version = versions[i]
		}
		sh.m[k] = nd
		if ev := sh.pol.OnAdd(nd); ev != nil {
			sh.evictNodeLocked(ev.(*node[K]), &c.opt, EvictPolicy)
		}
		if c.opt.StrictSize {
			sh.evictToLimitLocked(&c.opt)
		}
		sh.mu.Unlock()
		c.misses.Add(1)
		c.opt.Metrics.Miss()
	}
	c.opt.Metrics.Size(c.residentCount())
	if ri := c.opt.ReportInterval; ri > 0 && c.accessed.Load()%ri == 0 {
		c.log.Info().
			Int64("entries", c.residentCount()).
			Float64("hit_rate", c.GetHitRate()).
			Msg("cache report")
	}
}

// GetEvictIDs removes up to k of the least-valuable resident keys and
// writes them into buf. The quota k is split evenly across shards (the
// remainder going to the first shards) and each shard gives up its share
// from its LRU tail; a shard holding fewer keys than its share does not
// pass the shortfall on to other shards. Removal is destructive.
func (c *ShardedLRU[K]) GetEvictIDs(buf []K, k int) int {
	n := 0
	per, rem := k/len(c.shards), k%len(c.shards)
	for i, sh := range c.shards {
		quota := per
		if i < rem {
			quota++
		}
		sh.mu.Lock()
		for taken := 0; taken < quota && sh.tail != nil; taken++ {
			cur := sh.tail
			buf[n] = cur.key
			sh.evictNodeLocked(cur, &c.opt, EvictExplicit)
			n++
		}
		sh.mu.Unlock()
	}
	c.opt.Metrics.Size(c.residentCount())
	return n
}

func (c *ShardedLRU[K]) GetCachedIDs(buf []K, k int, versionsOut, freqsOut []int64) int {
	n := 0
	for _, sh := range c.shards {
		if n >= k {
			break
		}
		sh.mu.Lock()
		for cur := sh.head; cur != nil && n < k; cur = cur.next {
			buf[n] = cur.key
			if versionsOut != nil {
				versionsOut[n] = cur.version
			}
			if freqsOut != nil {
				freqsOut[n] = 0
			}
			n++
		}
		sh.mu.Unlock()
	}
	return n
}

func (c *ShardedLRU[K]) AddToPrefetchList(keys []K, n int) {
	for i := 0; i < n; i++ {
		k := keys[i]
		sh := c.shardFor(k)
		sh.prefetchMu.Lock()
		if p, ok := sh.prefetch[k]; ok {
			p.refCount++
			sh.prefetchMu.Unlock()
			continue
		}
		// Not yet pinned. A key is never resident in both the policy
		// store and the prefetch table (invariant 1): pull it out of the
		// shard's list under the policy lock first, then release the
		// policy lock before writing the pin entry — prefetch lock is
		// held throughout, policy lock only while touching the list.
		sh.mu.Lock()
		if nd, ok := sh.m[k]; ok {
			sh.pol.OnRemove(nd)
			sh.detach(nd)
			delete(sh.m, k)
		}
		sh.mu.Unlock()
		sh.prefetch[k] = &pin[K]{key: k, refCount: 1}
		sh.prefetchMu.Unlock()
	}
}

func (c *ShardedLRU[K]) AddToCache(keys []K, n int) {
	for i := 0; i < n; i++ {
		k := keys[i]
		sh := c.shardFor(k)

		// Lock order: prefetch first, then policy — per the spec's §5
		// lock-ordering rule.
		sh.prefetchMu.Lock()
		p, ok := sh.prefetch[k]
		if !ok {
			sh.prefetchMu.Unlock()
			panic(fmt.Sprintf("cache %q: AddToCache called for key %v with no outstanding prefetch pin", c.opt.Name, k))
		}
		p.refCount--
		stillPinned := p.refCount > 0
		if !stillPinned {
			delete(sh.prefetch, k)
		}
		sh.prefetchMu.Unlock()

		if stillPinned {
			// Still pinned by another outstanding prefetch; do not
			// re-admit yet.
			continue
		}

		sh.mu.Lock()
		if _, exists := sh.m[k]; exists {
			sh.mu.Unlock()
			continue
		}
		nd := &node[K]{key: k}
		sh.m[k] = nd
		var evicted *node[K]
		if ev := sh.pol.OnAdd(nd); ev != nil {
			evicted = ev.(*node[K])
			sh.evictNodeLocked(evicted, &c.opt, EvictPolicy)
		}
		if c.opt.StrictSize {
			sh.evictToLimitLocked(&c.opt)
		}
		sh.mu.Unlock()
		// Policy lock is released above; only now, with no lock held, would
		// a caller re-pin an evicted key for re-prefetching if it chose to.
	}
	c.opt.Metrics.Size(c.residentCount())
}

func (c *ShardedLRU[K]) residentCount() int64 {
	var total int64
	for _, sh := range c.shards {
		sh.mu.Lock()
		total += int64(len(sh.m))
		sh.mu.Unlock()
	}
	return total
}

func (c *ShardedLRU[K]) GetHitRate() float64 {
	h := c.hits.Load()
	m := c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

func (c *ShardedLRU[K]) DebugString() string {
	return fmt.Sprintf("ShardedLRU[%s] shards=%d entries=%d size=%d hitrate=%.4f",
		c.opt.Name, len(c.shards), c.residentCount(), c.opt.SizeBytes, c.GetHitRate())
}

func (c *ShardedLRU[K]) MoveCounts() (promotions, demotions uint64) {
	for _, sh := range c.shards {
		promotions += sh.promotions.Load()
		demotions += sh.demotions.Load()
	}
	return
}

func (c *ShardedLRU[K]) ResetMoveCounts() {
	for _, sh := range c.shards {
		sh.promotions.Store(0)
		sh.demotions.Store(0)
	}
}

// -------------------- shard internals (sh.mu held) --------------------

func (s *lruShard[K]) evictToLimitLocked(opt *Options) {
	for int64(len(s.m)) > s.maxEntry {
		if s.tail == nil {
			break
		}
		s.evictNodeLocked(s.tail, opt, EvictCapacity)
	}
}

func (s *lruShard[K]) evictNodeLocked(n *node[K], opt *Options, reason EvictReason) {
	s.pol.OnRemove(n)
	s.detach(n)
	delete(s.m, n.key)
	s.demotions.Add(1)
	opt.Metrics.Evict(reason)
}

func (s *lruShard[K]) insertFront(n *node[K]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *lruShard[K]) moveToFront(n *node[K]) {
	if n == s.head {
		return
	}
	s.detach(n)
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *lruShard[K]) detach(n *node[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// -------------------- policy hooks --------------------

type shardLRUHooks[K Key] struct{ s *lruShard[K] }

func (h shardLRUHooks[K]) MoveToFront(x policy.Node[K]) { h.s.moveToFront(x.(*node[K])) }
func (h shardLRUHooks[K]) PushFront(x policy.Node[K])   { h.s.insertFront(x.(*node[K])) }
func (h shardLRUHooks[K]) Remove(x policy.Node[K]) {
	h.s.detach(x.(*node[K]))
}
func (h shardLRUHooks[K]) Back() policy.Node[K] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h shardLRUHooks[K]) Len() int { return len(h.s.m) }

var _ Cache[int64] = (*ShardedLRU[int64])(nil)
