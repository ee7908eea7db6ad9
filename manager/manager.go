// Package manager implements the process-wide cache coordinator: a
// registry of profiled caches, a background tuning loop, and the
// reactivation heuristic that turns profiling back on when a cache's
// access pattern shifts. Grounded directly on original_source's
// cache_manager.h/.cc.
package manager

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embedcache/evtune/config"
	"github.com/embedcache/evtune/tuning"
	"github.com/rs/zerolog"

	"github.com/embedcache/evtune/internal/telemetry"
)

// ErrAlreadyRegistered is returned by Register when a cache with the
// same name is already in the registry. The original's RegisterCache
// left this as a "// TODO: name conflict"; the port resolves it with an
// explicit error instead of silently overwriting the existing entry.
var ErrAlreadyRegistered = errors.New("manager: cache name already registered")

// Cache is the subset of a profiled cache's surface the manager needs to
// size and tune it. profiledcache.ProfiledCache implements this.
type Cache interface {
	Name() string
	Capacity() int64
	SetSize(n int64)
	EntrySize() int64
	GetHitRate() float64
	MoveCounts() (promotions, demotions uint64)
	ResetMoveCounts()
	GetBucketSize() int64
	GetMRC(maxCacheSize int64) []float64
	ResetProfiling()
}

type cacheEntry struct {
	cache          Cache
	prevPromotions uint64
	prevDemotions  uint64
}

// Metrics exposes the manager's tuning-loop activity for an external
// observability backend. metrics/prom.ManagerMetrics implements this.
type Metrics interface {
	ObserveTune(success bool)
	SetSamplingActive(active bool)
	SetCacheSize(name string, size int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTune(bool)          {}
func (noopMetrics) SetSamplingActive(bool)    {}
func (noopMetrics) SetCacheSize(string, int64) {}

// Manager is the cache-budget coordinator. Use Default for the
// process-wide singleton or New for an isolated instance (tests, or a
// process hosting more than one independent budget domain).
type Manager struct {
	cfg      config.Config
	strategy tuning.Strategy

	mu       sync.Mutex
	registry map[string]*cacheEntry

	accessCount atomic.Uint64
	step        uint64

	samplingActive atomic.Bool
	notuneCounter  int

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	metrics Metrics
	log     zerolog.Logger
}

// SetMetrics attaches an observability backend. Must be called before
// Register if the caller wants registration-time gauges populated; safe
// to call at any time otherwise.
func (m *Manager) SetMetrics(metrics Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default returns the process-wide Manager, constructing it from
// config.FromEnv on first use.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultMgr = New(config.FromEnv())
	})
	return defaultMgr
}

// New constructs an independent Manager from cfg. Callers that want the
// process-wide singleton should use Default instead.
func New(cfg config.Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		strategy: tuning.Create(cfg.TuningStrategy),
		registry: make(map[string]*cacheEntry),
		step:     1,
		ctx:      ctx,
		cancel:   cancel,
		metrics:  noopMetrics{},
		log:      telemetry.New("manager"),
	}
	m.samplingActive.Store(true)
	return m
}

// Register adds cache to the registry under its Name(). Every successful
// registration resizes all registered caches (including this one) to an
// equal split of TotalSize and starts the tuning worker if it is not
// already running. Returns ErrAlreadyRegistered if the name is already
// in use.
func (m *Manager) Register(c Cache) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.registry[c.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, c.Name())
	}
	m.registry[c.Name()] = &cacheEntry{cache: c}

	share := m.cfg.TotalSize / int64(len(m.registry))
	for _, e := range m.registry {
		e.cache.SetSize(share)
		m.metrics.SetCacheSize(e.cache.Name(), share)
	}

	m.startThread()
	return nil
}

// Unregister removes a cache from the registry. A no-op if name is not
// registered.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.registry, name)
}

// Access records one unit of traffic against the manager's global
// counter; TuneLoop compares this against TuningInterval*cache_count to
// decide when to attempt a tune.
func (m *Manager) Access() {
	m.accessCount.Add(1)
}

// CheckCache reports whether the registry is non-empty.
func (m *Manager) CheckCache() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registry) > 0
}

// SamplingActive reports whether profiled caches should currently feed
// their profiler.
func (m *Manager) SamplingActive() bool {
	return m.samplingActive.Load()
}

func (m *Manager) startThread() {
	if m.started.Swap(true) {
		return
	}
	m.log.Info().Msg("scheduling tuning thread")
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.TuneLoop()
	}()
}

// Stop signals the tuning worker to exit and waits for it. Intended for
// tests constructing isolated Managers via New; the process-wide
// Default() instance is not expected to be stopped.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

// TuneLoop is the single dedicated worker: every second, once enough
// accesses have accumulated, it checks each cache's promotion/demotion
// drift for the reactivation heuristic and, if sampling is active,
// attempts a tune.
func (m *Manager) TuneLoop() {
	m.log.Info().Msg("tuning loop begin")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for m.CheckCache() {
		select {
		case <-m.ctx.Done():
			m.log.Info().Msg("tuning thread exit")
			return
		case <-ticker.C:
		}

		cacheCount := m.cacheCount()
		accessCount := m.accessCount.Load()
		m.log.Debug().Uint64("access_count", accessCount).Msg("tune loop tick")

		if accessCount <= m.step*uint64(m.cfg.TuningInterval)*uint64(cacheCount) {
			continue
		}

		if m.checkReactivation() {
			m.notuneCounter = 0
			m.samplingActive.Store(true)
			m.metrics.SetSamplingActive(true)
		}

		if m.SamplingActive() {
			m.log.Info().Uint64("access_count", accessCount).Msg("do tune")
			m.Tune(m.cfg.TotalSize, m.cfg.TuningUnit)
		} else {
			m.log.Info().Uint64("access_count", accessCount).Msg("tuning not active")
		}

		m.step = uint64(math.Round(float64(accessCount)/(float64(m.cfg.TuningInterval)*float64(cacheCount)))) + 1
	}
	m.log.Info().Msg("tuning thread exit")
}

func (m *Manager) cacheCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registry)
}

// checkReactivation implements cache_manager.cc's promotion/demotion
// drift check: if either counter has moved by more than 20% relative to
// the previous window for any registered cache, sampling is turned back
// on.
func (m *Manager) checkReactivation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	reactivate := false
	for _, e := range m.registry {
		promotions, demotions := e.cache.MoveCounts()
		e.cache.ResetMoveCounts()

		if e.prevPromotions != 0 {
			diff := math.Abs(float64(e.prevPromotions) - float64(promotions))
			if rel := diff / float64(e.prevPromotions); rel > 0.2 {
				reactivate = true
				m.log.Info().Str("cache", e.cache.Name()).Float64("relative_diff", rel).
					Msg("promotion drift, reactivating sampling")
			}
		}
		if e.prevDemotions != 0 {
			diff := math.Abs(float64(e.prevDemotions) - float64(demotions))
			if rel := diff / float64(e.prevDemotions); rel > 0.2 {
				reactivate = true
				m.log.Info().Str("cache", e.cache.Name()).Float64("relative_diff", rel).
					Msg("demotion drift, reactivating sampling")
			}
		}
		e.prevPromotions = promotions
		e.prevDemotions = demotions
	}
	return reactivate
}

// Tune snapshots the registry and runs one DoTune pass if sampling is
// currently active.
func (m *Manager) Tune(totalSize, unit int64) {
	m.mu.Lock()
	if !m.samplingActive.Load() {
		m.mu.Unlock()
		return
	}
	caches := make([]Cache, 0, len(m.registry))
	for _, e := range m.registry {
		caches = append(caches, e.cache)
	}
	m.mu.Unlock()

	m.DoTune(totalSize, caches, unit)
}

// DoTune builds per-cache CacheItems from each cache's current profiler
// snapshot, invokes the tuning strategy, and applies the resulting sizes
// on success.
func (m *Manager) DoTune(totalSize int64, caches []Cache, unit int64) bool {
	items := make(map[string]*tuning.Item, len(caches))
	var origMCSum uint64

	for _, c := range caches {
		bucketSize := c.GetBucketSize()
		size := c.Capacity()
		entrySize := c.EntrySize()
		numEntries := size / entrySize
		mrc := c.GetMRC(size * 10)
		mr := tuning.InterpolateMRC(mrc, bucketSize, numEntries)
		vc := uint64(mrc[len(mrc)-1])
		mc := uint64(mr * float64(vc))

		actualHR := c.GetHitRate()
		actualHC := uint64(actualHR * float64(vc))
		estimatedHC := vc - mc
		var relErr float64
		if actualHC != 0 {
			relErr = float64(int64(estimatedHC)-int64(actualHC)) / float64(actualHC)
		}
		m.log.Debug().Str("cache", c.Name()).
			Uint64("estimated_hit_count", estimatedHC).
			Uint64("actual_hit_count", actualHC).
			Float64("relative_error", relErr).
			Msg("tune candidate")

		origMCSum += mc
		items[c.Name()] = &tuning.Item{
			BucketSize: bucketSize,
			OrigSize:   size,
			NewSize:    size,
			EntrySize:  entrySize,
			VC:         vc,
			MC:         mc,
			MR:         mr,
			MRC:        mrc,
		}
	}

	success := m.strategy.DoTune(totalSize, items, unit, m.cfg.MinSize)

	m.mu.Lock()
	if success {
		for _, c := range caches {
			newSize := items[c.Name()].NewSize
			c.SetSize(newSize)
			m.metrics.SetCacheSize(c.Name(), newSize)
			if m.cfg.ProfilerClear {
				c.ResetProfiling()
			}
		}
		m.notuneCounter = 0
	} else {
		m.notuneCounter++
	}
	notune := m.notuneCounter
	m.mu.Unlock()

	m.metrics.ObserveTune(success)

	if int64(notune) > m.cfg.StableSteps {
		m.samplingActive.Store(false)
		m.metrics.SetSamplingActive(false)
		for _, c := range caches {
			c.ResetProfiling()
		}
		m.log.Info().Int("notune_counter", notune).Msg("continuous tuning did not succeed, stop sampling")
	}

	m.log.Info().Bool("success", success).Msg("tuning done")
	return success
}
