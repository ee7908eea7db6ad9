// Package profiledcache composes a key-only cache (cache.Cache) with an
// AET profiler (profiler.Profiler) and reports traffic to the cache
// manager, implementing the spec's C3 component: every access mutates
// the underlying cache and, when the manager's sampling gate is open,
// also feeds the profiler.
package profiledcache

import (
	"sync"

	"github.com/embedcache/evtune/cache"
	"github.com/embedcache/evtune/internal/telemetry"
	"github.com/embedcache/evtune/manager"
	"github.com/embedcache/evtune/profiler"
	"github.com/rs/zerolog"
)

// ProfiledCache wraps a cache.Cache[K] and a profiler.Profiler[K] and
// registers itself with a manager.Manager for capacity tuning.
type ProfiledCache[K cache.Key] struct {
	c   cache.Cache[K]
	p   *profiler.Profiler[K]
	mgr *manager.Manager

	closeOnce sync.Once
	log       zerolog.Logger
}

// New wraps c with p and registers the pair with mgr under c.Name().
func New[K cache.Key](c cache.Cache[K], p *profiler.Profiler[K], mgr *manager.Manager) (*ProfiledCache[K], error) {
	pc := &ProfiledCache[K]{c: c, p: p, mgr: mgr, log: telemetry.New("profiledcache." + c.Name())}
	if err := mgr.Register(pc); err != nil {
		return nil, err
	}
	return pc, nil
}

// Update forwards to the underlying cache, then samples the batch in the
// profiler if the manager's sampling gate is open, and finally reports
// the traffic volume to the manager.
func (pc *ProfiledCache[K]) Update(keys []K, n int, versions, freqs []int64) {
	pc.c.Update(keys, n, versions, freqs)
	if pc.mgr.SamplingActive() {
		pc.p.ReferenceKeyBatch(keys, n)
	}
	pc.mgr.Access()
}

// AddToPrefetchList forwards to the underlying cache.
func (pc *ProfiledCache[K]) AddToPrefetchList(keys []K, n int) {
	pc.c.AddToPrefetchList(keys, n)
}

// AddToCache forwards to the underlying cache, then samples the batch
// and reports traffic, mirroring Update.
func (pc *ProfiledCache[K]) AddToCache(keys []K, n int) {
	pc.c.AddToCache(keys, n)
	if pc.mgr.SamplingActive() {
		pc.p.ReferenceKeyBatch(keys, n)
	}
	pc.mgr.Access()
}

// GetEvictIDs forwards to the underlying cache.
func (pc *ProfiledCache[K]) GetEvictIDs(buf []K, k int) int { return pc.c.GetEvictIDs(buf, k) }

// GetCachedIDs forwards to the underlying cache.
func (pc *ProfiledCache[K]) GetCachedIDs(buf []K, k int, versionsOut, freqsOut []int64) int {
	return pc.c.GetCachedIDs(buf, k, versionsOut, freqsOut)
}

// Name returns the wrapped cache's registration name.
func (pc *ProfiledCache[K]) Name() string { return pc.c.Name() }

// Size returns the number of distinct keys currently resident in the
// wrapped cache.
func (pc *ProfiledCache[K]) Size() int64 { return pc.c.Size() }

// Capacity returns the wrapped cache's current byte budget.
func (pc *ProfiledCache[K]) Capacity() int64 { return pc.c.Capacity() }

// SetSize forwards to the underlying cache. Called by the manager after
// a successful tune.
func (pc *ProfiledCache[K]) SetSize(n int64) { pc.c.SetSize(n) }

// EntrySize returns the wrapped cache's fixed per-entry footprint.
func (pc *ProfiledCache[K]) EntrySize() int64 { return pc.c.EntrySize() }

// GetHitRate returns the wrapped cache's observed hit rate.
func (pc *ProfiledCache[K]) GetHitRate() float64 { return pc.c.GetHitRate() }

// MoveCounts returns the wrapped cache's promotion/demotion counters.
func (pc *ProfiledCache[K]) MoveCounts() (promotions, demotions uint64) { return pc.c.MoveCounts() }

// ResetMoveCounts zeroes the wrapped cache's promotion/demotion counters.
func (pc *ProfiledCache[K]) ResetMoveCounts() { pc.c.ResetMoveCounts() }

// GetBucketSize returns the profiler's histogram bucket width.
func (pc *ProfiledCache[K]) GetBucketSize() int64 { return pc.p.GetBucketSize() }

// GetMRC returns the profiler's current Miss-Ratio Curve.
func (pc *ProfiledCache[K]) GetMRC(maxCacheSize int64) []float64 { return pc.p.GetMRC(maxCacheSize) }

// ResetProfiling clears the profiler's accumulated samples.
func (pc *ProfiledCache[K]) ResetProfiling() { pc.p.ResetProfiling() }

// DebugString forwards to the underlying cache.
func (pc *ProfiledCache[K]) DebugString() string { return pc.c.DebugString() }

// Close deregisters the cache from its manager and logs a warning. The
// warning is logged on the first Close whether or not the cache was
// still registered at that point. Idempotent: a second Close is a no-op.
func (pc *ProfiledCache[K]) Close() {
	pc.closeOnce.Do(func() {
		pc.log.Warn().Str("cache", pc.c.Name()).Msg("closing profiled cache still registered with manager")
		pc.mgr.Unregister(pc.c.Name())
	})
}
