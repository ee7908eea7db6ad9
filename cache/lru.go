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

// LRU is a single-mutex, key-only LRU cache. It is the Go-idiomatic
// reshape of the teacher's shard.go: same intrusive MRU/LRU list and
// policy.Hooks adapter, generalized to hold no value and to expose the
// spec's batch/prefetch API instead of Get/Set/Add/Remove.
type LRU[K Key] struct {
	mu   sync.Mutex
	m    map[K]*node[K]
	head *node[K] // MRU
	tail *node[K] // LRU

	pol policy.ShardPolicy[K]

	prefetch map[K]*pin[K]

	opt      Options
	maxEntry int64

	// hot counters, padded to avoid false sharing under concurrent access.
	_          util.CacheLinePad
	hits       util.PaddedAtomicInt64
	misses     util.PaddedAtomicInt64
	promotions util.PaddedAtomicUint64
	demotions  util.PaddedAtomicUint64
	accessed   atomic.Int64

	log zerolog.Logger
}

// NewLRU constructs an LRU cache. SizeBytes and Name are required.
func NewLRU[K Key](opt Options) *LRU[K] {
	o := opt.withDefaults()
	if o.SizeBytes <= 0 {
		panic("cache: SizeBytes must be > 0")
	}
	if o.Name == "" {
		panic("cache: Name must be set")
	}
	c := &LRU[K]{
		m:        make(map[K]*node[K]),
		prefetch: make(map[K]*pin[K]),
		opt:      o,
		maxEntry: o.maxEntries(),
		log:      telemetry.New("cache." + o.Name),
	}
	c.pol = lru.New[K]().New(lruHooks[K]{c: c})
	return c
}

func (c *LRU[K]) Name() string     { return c.opt.Name }
func (c *LRU[K]) EntrySize() int64 { return c.opt.EntrySize }
func (c *LRU[K]) Capacity() int64  { return c.opt.SizeBytes }

// Size returns the number of distinct keys currently resident in the
// policy store.
func (c *LRU[K]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.m))
}

func (c *LRU[K]) SetSize(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opt.SizeBytes = n
	c.maxEntry = c.opt.maxEntries()
	c.evictToLimitLocked()
}

func (c *LRU[K]) Update(keys []K, n int, versions, freqs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < n; i++ {
		k := keys[i]
		c.accessed.Add(1)

		if nd, ok := c.m[k]; ok {
			if versions != nil {
				nd.version = versions[i]
			}
			c.pol.OnUpdate(nd)
			c.promotions.Add(1)
			c.hits.Add(1)
			c.opt.Metrics.Hit()
			continue
		}

		c.misses.Add(1)
		c.opt.Metrics.Miss()

		// Miss: insert as most-recent. The cache does not enforce its
		// capacity here unless StrictSize is set — by default, excess
		// residents are left for the caller to reclaim via GetEvictIDs.
		nd := &node[K]{key: k}
		if versions != nil {
			nd.version = versions[i]
		}
		c.m[k] = nd
		if ev := c.pol.OnAdd(nd); ev != nil {
			c.evictNodeLocked(ev.(*node[K]), EvictPolicy)
		}
	}
	if c.opt.StrictSize {
		c.evictToLimitLocked()
	}
	c.opt.Metrics.Size(int64(len(c.m)))
	c.maybeReportLocked()
}

// GetEvictIDs removes up to k of the least-valuable resident keys (LRU
// tail first) and writes them into buf, returning the number removed.
// Removal is destructive: the returned keys cease to exist in the
// policy store.
func (c *LRU[K]) GetEvictIDs(buf []K, k int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for n < k && c.tail != nil {
		cur := c.tail
		buf[n] = cur.key
		c.evictNodeLocked(cur, EvictExplicit)
		n++
	}
	c.opt.Metrics.Size(int64(len(c.m)))
	return n
}

func (c *LRU[K]) GetCachedIDs(buf []K, k int, versionsOut, freqsOut []int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for cur := c.head; cur != nil && n < k; cur = cur.next {
		buf[n] = cur.key
		if versionsOut != nil {
			versionsOut[n] = cur.version
		}
		if freqsOut != nil {
			freqsOut[n] = 0
		}
		n++
	}
	return n
}

func (c *LRU[K]) AddToPrefetchList(keys []K, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < n; i++ {
		k := keys[i]
		if p, ok := c.prefetch[k]; ok {
			p.refCount++
			continue
		}
		// A key is never resident in both the policy store and the
		// prefetch table (invariant 1): if it's currently cached, pull it
		// out before pinning it. LRU has no frequency to preserve.
		if nd, ok := c.m[k]; ok {
			c.pol.OnRemove(nd)
			c.removeFromList(nd)
			delete(c.m, k)
		}
		c.prefetch[k] = &pin[K]{key: k, refCount: 1}
	}
}

func (c *LRU[K]) AddToCache(keys []K, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < n; i++ {
		k := keys[i]
		p, ok := c.prefetch[k]
		if !ok {
			panic(fmt.Sprintf("cache %q: AddToCache called for key %v with no outstanding prefetch pin", c.opt.Name, k))
		}
		p.refCount--
		if p.refCount > 0 {
			// Still pinned by another outstanding prefetch; do not
			// re-admit yet.
			continue
		}
		delete(c.prefetch, k)

		if _, exists := c.m[k]; exists {
			continue
		}
		nd := &node[K]{key: k}
		c.m[k] = nd
		if ev := c.pol.OnAdd(nd); ev != nil {
			c.evictNodeLocked(ev.(*node[K]), EvictPolicy)
		}
	}
	if c.opt.StrictSize {
		c.evictToLimitLocked()
	}
	c.opt.Metrics.Size(int64(len(c.m)))
}

func (c *LRU[K]) GetHitRate() float64 {
	h := c.hits.Load()
	m := c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

func (c *LRU[K]) DebugString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("LRU[%s] entries=%d/%d size=%d hitrate=%.4f prefetch_pending=%d",
		c.opt.Name, len(c.m), c.maxEntry, c.opt.SizeBytes, c.GetHitRate(), len(c.prefetch))
}

func (c *LRU[K]) MoveCounts() (promotions, demotions uint64) {
	return c.promotions.Load(), c.demotions.Load()
}

func (c *LRU[K]) ResetMoveCounts() {
	c.promotions.Store(0)
	c.demotions.Store(0)
}

// -------------------- internals (mu held) --------------------

func (c *LRU[K]) evictToLimitLocked() {
	for int64(len(c.m)) > c.maxEntry {
		if c.tail == nil {
			break
		}
		c.evictNodeLocked(c.tail, EvictCapacity)
	}
}

func (c *LRU[K]) evictNodeLocked(n *node[K], reason EvictReason) {
	c.pol.OnRemove(n)
	c.removeFromList(n)
	delete(c.m, n.key)
	c.demotions.Add(1)
	c.opt.Metrics.Evict(reason)
}

func (c *LRU[K]) insertFront(n *node[K]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU[K]) moveToFront(n *node[K]) {
	if n == c.head {
		return
	}
	c.detach(n)
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU[K]) detach(n *node[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.head == n {
		c.head = n.next
	}
	if c.tail == n {
		c.tail = n.prev
	}
}

func (c *LRU[K]) removeFromList(n *node[K]) {
	c.detach(n)
	n.prev, n.next = nil, nil
}

func (c *LRU[K]) maybeReportLocked() {
	if c.opt.ReportInterval <= 0 {
		return
	}
	if c.accessed.Load()%c.opt.ReportInterval != 0 {
		return
	}
	c.log.Info().
		Int("entries", len(c.m)).
		Float64("hit_rate", c.GetHitRate()).
		Msg("cache report")
}

// -------------------- policy hooks --------------------

type lruHooks[K Key] struct{ c *LRU[K] }

func (h lruHooks[K]) MoveToFront(x policy.Node[K]) { h.c.moveToFront(x.(*node[K])) }
func (h lruHooks[K]) PushFront(x policy.Node[K])   { h.c.insertFront(x.(*node[K])) }
func (h lruHooks[K]) Remove(x policy.Node[K])      { h.c.removeFromList(x.(*node[K])) }
func (h lruHooks[K]) Back() policy.Node[K] {
	if h.c.tail == nil {
		return nil
	}
	return h.c.tail
}
func (h lruHooks[K]) Len() int { return len(h.c.m) }

var _ Cache[int64] = (*LRU[int64])(nil)
