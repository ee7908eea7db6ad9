package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/embedcache/evtune/internal/telemetry"
	"github.com/embedcache/evtune/internal/util"
	"github.com/rs/zerolog"
)

// lfuNode is one resident entry. Nodes within a bucket form a secondary
// MRU/LRU list so that same-frequency ties are broken by recency, the way
// the reference implementation's LFUCache does.
type lfuNode[K Key] struct {
	key     K
	freq    int64
	version int64

	prev, next *lfuNode[K] // links within the owning bucket
	bucket     *lfuBucket[K]
}

// lfuBucket holds every resident entry at a given frequency. Buckets form
// a doubly linked list ordered ascending by frequency (head.next is the
// lowest real frequency, tail is the highest). A node's frequency only
// ever increases, by 1 or by a caller-supplied delta, so its next bucket
// may be several positions further along; getOrCreateBucket finds or
// inserts it by scanning from the head.
type lfuBucket[K Key] struct {
	freq  int64
	count int

	head, tail *lfuNode[K] // entries within this bucket, head = MRU

	prevB, nextB *lfuBucket[K]
}

// LFU is a key-only, frequency-bucket cache: the Go port of the
// reference implementation's LFUCache, grounded in structure on
// other_examples/creachadair-cache's frequency-ordered eviction idea but
// reshaped into O(1) buckets instead of a heap (see DESIGN.md).
type LFU[K Key] struct {
	mu sync.Mutex
	m  map[K]*lfuNode[K]

	bHead, bTail *lfuBucket[K] // sentinels; real buckets sit strictly between them
	buckets      map[int64]*lfuBucket[K]

	prefetch map[K]*pin[K]

	opt      Options
	maxEntry int64

	_          util.CacheLinePad
	hits       util.PaddedAtomicInt64
	misses     util.PaddedAtomicInt64
	promotions util.PaddedAtomicUint64
	demotions  util.PaddedAtomicUint64
	accessed   atomic.Int64

	log zerolog.Logger
}

// NewLFU constructs an LFU cache. SizeBytes and Name are required.
func NewLFU[K Key](opt Options) *LFU[K] {
	o := opt.withDefaults()
	if o.SizeBytes <= 0 {
		panic("cache: SizeBytes must be > 0")
	}
	if o.Name == "" {
		panic("cache: Name must be set")
	}
	c := &LFU[K]{
		m:        make(map[K]*lfuNode[K]),
		buckets:  make(map[int64]*lfuBucket[K]),
		prefetch: make(map[K]*pin[K]),
		opt:      o,
		maxEntry: o.maxEntries(),
		log:      telemetry.New("cache." + o.Name),
	}
	c.bHead = &lfuBucket[K]{freq: -1}
	c.bTail = &lfuBucket[K]{freq: -1}
	c.bHead.nextB = c.bTail
	c.bTail.prevB = c.bHead
	return c
}

func (c *LFU[K]) Name() string     { return c.opt.Name }
func (c *LFU[K]) EntrySize() int64 { return c.opt.EntrySize }
func (c *LFU[K]) Capacity() int64  { return c.opt.SizeBytes }

// Size returns the number of distinct keys currently resident in the
// policy store.
func (c *LFU[K]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.m))
}

func (c *LFU[K]) SetSize(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opt.SizeBytes = n
	c.maxEntry = c.opt.maxEntries()
	c.evictToLimitLocked()
}

func (c *LFU[K]) Update(keys []K, n int, versions, freqs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < n; i++ {
		k := keys[i]
		c.accessed.Add(1)

		if nd, ok := c.m[k]; ok {
			if versions != nil {
				nd.version = versions[i]
			}
			delta := int64(1)
			if freqs != nil && freqs[i] > 0 {
				delta = freqs[i]
			}
			c.promote(nd, delta)
			c.promotions.Add(1)
			c.hits.Add(1)
			c.opt.Metrics.Hit()
			continue
		}

		c.misses.Add(1)
		c.opt.Metrics.Miss()

		// Miss: insert as a fresh entry, at the supplied batch frequency
		// if any (a caller re-inserting a previously pinned key whose
		// frequency was preserved) or frequency 1 otherwise.
		nd := &lfuNode[K]{key: k}
		if versions != nil {
			nd.version = versions[i]
		}
		freq := int64(1)
		if freqs != nil && freqs[i] > 0 {
			freq = freqs[i]
		}
		c.m[k] = nd
		c.insertIntoBucket(nd, c.getOrCreateBucket(freq))
		nd.freq = freq
	}
	if c.opt.StrictSize {
		c.evictToLimitLocked()
	}
	c.opt.Metrics.Size(int64(len(c.m)))
	c.maybeReportLocked()
}

// GetEvictIDs removes up to k of the least-valuable resident keys
// (lowest-frequency bucket, tail-first) and writes them into buf,
// returning the number removed. Removal is destructive.
func (c *LFU[K]) GetEvictIDs(buf []K, k int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for n < k {
		b := c.bHead.nextB
		if b == c.bTail {
			break
		}
		nd := b.tail
		if nd == nil {
			break
		}
		buf[n] = nd.key
		c.removeFromBucket(nd)
		delete(c.m, nd.key)
		c.demotions.Add(1)
		c.opt.Metrics.Evict(EvictExplicit)
		n++
	}
	c.opt.Metrics.Size(int64(len(c.m)))
	return n
}

func (c *LFU[K]) GetCachedIDs(buf []K, k int, versionsOut, freqsOut []int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for b := c.bTail.prevB; b != c.bHead && n < k; b = b.prevB {
		for nd := b.head; nd != nil && n < k; nd = nd.next {
			buf[n] = nd.key
			if versionsOut != nil {
				versionsOut[n] = nd.version
			}
			if freqsOut != nil {
				freqsOut[n] = nd.freq
			}
			n++
		}
	}
	return n
}

func (c *LFU[K]) AddToPrefetchList(keys []K, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		k := keys[i]
		if p, ok := c.prefetch[k]; ok {
			p.refCount++
			continue
		}
		// A key is never resident in both the policy store and the
		// prefetch table (invariant 1). If it's currently cached, pull it
		// out of its frequency bucket and preserve the frequency on the
		// pin so a later AddToCache can restore it exactly.
		if nd, ok := c.m[k]; ok {
			freq := nd.freq
			c.removeFromBucket(nd)
			delete(c.m, k)
			c.prefetch[k] = &pin[K]{key: k, refCount: 1, freq: freq}
			continue
		}
		c.prefetch[k] = &pin[K]{key: k, refCount: 1}
	}
}

func (c *LFU[K]) AddToCache(keys []K, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < n; i++ {
		k := keys[i]
		p, ok := c.prefetch[k]
		if !ok {
			panic(fmt.Sprintf("cache %q: AddToCache called for key %v with no outstanding prefetch pin", c.opt.Name, k))
		}
		p.refCount--
		preservedFreq := p.freq
		if p.refCount <= 0 {
			delete(c.prefetch, k)
		}
		if p.refCount > 0 {
			// Still pinned by another outstanding prefetch; do not
			// re-admit yet.
			continue
		}

		if _, exists := c.m[k]; exists {
			continue
		}
		nd := &lfuNode[K]{key: k}
		c.m[k] = nd
		freq := preservedFreq
		if freq <= 0 {
			freq = 1
		}
		c.insertIntoBucket(nd, c.getOrCreateBucket(freq))
		nd.freq = freq
	}
	if c.opt.StrictSize {
		c.evictToLimitLocked()
	}
	c.opt.Metrics.Size(int64(len(c.m)))
}

func (c *LFU[K]) GetHitRate() float64 {
	h := c.hits.Load()
	m := c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

func (c *LFU[K]) DebugString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("LFU[%s] entries=%d/%d size=%d hitrate=%.4f buckets=%d",
		c.opt.Name, len(c.m), c.maxEntry, c.opt.SizeBytes, c.GetHitRate(), len(c.buckets))
}

func (c *LFU[K]) MoveCounts() (promotions, demotions uint64) {
	return c.promotions.Load(), c.demotions.Load()
}

func (c *LFU[K]) ResetMoveCounts() {
	c.promotions.Store(0)
	c.demotions.Store(0)
}

// -------------------- internals (mu held) --------------------

// promote moves nd into the bucket for freq+delta, creating/removing
// buckets as needed.
func (c *LFU[K]) promote(nd *lfuNode[K], delta int64) {
	c.removeFromBucket(nd)
	nb := c.getOrCreateBucket(nd.freq + delta)
	nd.freq += delta
	c.insertIntoBucket(nd, nb)
}

// getOrCreateBucket returns the bucket for freq, inserting a new one at
// the correct sorted position in the ascending-frequency list if it does
// not already exist. A linear scan from the head is fine here: the
// number of distinct live frequencies is bounded by the number of
// distinct update counts ever observed, which is small in practice.
func (c *LFU[K]) getOrCreateBucket(freq int64) *lfuBucket[K] {
	if b, ok := c.buckets[freq]; ok {
		return b
	}
	after := c.bHead
	for b := c.bHead.nextB; b != c.bTail && b.freq < freq; b = b.nextB {
		after = b
	}
	nb := &lfuBucket[K]{freq: freq}
	nb.prevB = after
	nb.nextB = after.nextB
	after.nextB.prevB = nb
	after.nextB = nb
	c.buckets[freq] = nb
	return nb
}

func (c *LFU[K]) insertIntoBucket(nd *lfuNode[K], b *lfuBucket[K]) {
	nd.bucket = b
	nd.prev = nil
	nd.next = b.head
	if b.head != nil {
		b.head.prev = nd
	}
	b.head = nd
	if b.tail == nil {
		b.tail = nd
	}
	b.count++
}

func (c *LFU[K]) removeFromBucket(nd *lfuNode[K]) {
	b := nd.bucket
	if nd.prev != nil {
		nd.prev.next = nd.next
	}
	if nd.next != nil {
		nd.next.prev = nd.prev
	}
	if b.head == nd {
		b.head = nd.next
	}
	if b.tail == nd {
		b.tail = nd.prev
	}
	nd.prev, nd.next, nd.bucket = nil, nil, nil
	b.count--
	if b.count == 0 && b != c.bHead && b != c.bTail {
		b.prevB.nextB = b.nextB
		b.nextB.prevB = b.prevB
		delete(c.buckets, b.freq)
	}
}

func (c *LFU[K]) evictToLimitLocked() {
	for int64(len(c.m)) > c.maxEntry {
		b := c.bHead.nextB
		if b == c.bTail {
			break
		}
		nd := b.tail
		if nd == nil {
			break
		}
		c.removeFromBucket(nd)
		delete(c.m, nd.key)
		c.demotions.Add(1)
		c.opt.Metrics.Evict(EvictCapacity)
	}
}

func (c *LFU[K]) maybeReportLocked() {
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

var _ Cache[int64] = (*LFU[int64])(nil)
