package profiler

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/embedcache/evtune/internal/lastaccess"
	"github.com/embedcache/evtune/internal/telemetry"
	"github.com/embedcache/evtune/internal/util"
	"github.com/rs/zerolog"
)

// Profiler samples reuse distances for one cache's key stream and derives
// a Miss-Ratio Curve from the resulting histogram. It is grounded
// directly on original_source's SamplingLRUAETProfiler.
type Profiler[K Key] struct {
	name             string
	bucketSize       int64
	maxReuseTime     int64
	samplingInterval uint64
	samplingRate     float64

	// mu guards structural mutation (Reset/Stop/Start) versus concurrent
	// reads (ReferenceKey*/GetMRC). Readers use TryRLock so a referencer
	// racing a reset simply skips the reference instead of blocking —
	// the Go analogue of the original's run_lock + active_referencers
	// check-and-return protocol.
	mu sync.RWMutex

	histogram []util.PaddedAtomicUint64
	lastAccess *lastaccess.Map[K]
	timestamp  atomic.Uint64

	// stopped is set by Stop and cleared by Start. While stopped,
	// histogram/lastAccess are nil and every reference is a no-op,
	// mirroring StopSamplingAndReleaseResource leaving run_lock_ held
	// until the next StartSampling.
	stopped atomic.Bool

	log zerolog.Logger
}

// New constructs a Profiler ready to sample.
func New[K Key](opt Options) *Profiler[K] {
	o := opt.withDefaults()
	p := &Profiler[K]{
		name:             o.Name,
		bucketSize:       o.BucketSize,
		maxReuseTime:     o.MaxReuseTime,
		samplingInterval: o.SamplingInterval,
		samplingRate:     1.0 / float64(o.SamplingInterval),
		log:              telemetry.New("profiler." + o.Name),
	}
	p.histogram = newHistogram(o.MaxReuseTime, o.BucketSize)
	p.lastAccess = lastaccess.New[K]()
	return p
}

func newHistogram(maxReuseTime, bucketSize int64) []util.PaddedAtomicUint64 {
	return make([]util.PaddedAtomicUint64, maxReuseTime/bucketSize+3)
}

// Name returns the profiler's name.
func (p *Profiler[K]) Name() string { return p.name }

// GetBucketSize returns the histogram bucket width.
func (p *Profiler[K]) GetBucketSize() int64 { return p.bucketSize }

// ReferenceKey records a single reference to k.
func (p *Profiler[K]) ReferenceKey(k K) {
	if p.stopped.Load() {
		return
	}
	if !p.mu.TryRLock() {
		return
	}
	defer p.mu.RUnlock()
	if p.stopped.Load() {
		return
	}
	p.doReferenceKey(k)
}

// ReferenceKeyBatch records a batch of n references.
func (p *Profiler[K]) ReferenceKeyBatch(keys []K, n int) {
	if p.stopped.Load() {
		return
	}
	if !p.mu.TryRLock() {
		return
	}
	defer p.mu.RUnlock()
	if p.stopped.Load() {
		return
	}
	for i := 0; i < n; i++ {
		p.doReferenceKey(keys[i])
	}
}

// doReferenceKey implements cache_profiler.h's DoReferenceKey. Caller
// holds mu for read.
func (p *Profiler[K]) doReferenceKey(k K) {
	ts := p.timestamp.Add(1)

	slot, tracked := p.lastAccess.Load(k)
	if !tracked || slot.Load() == 0 {
		// Absent, or present but not currently being tracked: decide
		// whether to (re-)sample it.
		if !p.shouldSample() {
			return
		}
		if !tracked {
			newSlot, existed := p.lastAccess.LoadOrStore(k)
			if existed {
				// Lost the race to insert; use the slot whoever won
				// installed and try to claim it the same way a
				// previously-untracked slot would be claimed.
				newSlot.CompareAndSwap(0, ts)
			} else {
				newSlot.Store(ts)
			}
		} else {
			slot.CompareAndSwap(0, ts)
		}
		// Bucket 0 is "first sight under full sampling": only counted
		// when every reference is tracked (sampling_interval == 1).
		if p.samplingInterval == 1 {
			p.increaseHistogram(0)
		}
		return
	}

	old := slot.Load()
	dist := ts - old
	if p.samplingInterval == 1 {
		slot.CompareAndSwap(old, ts)
	} else {
		slot.CompareAndSwap(old, 0)
	}
	p.increaseHistogram(dist)
}

// shouldSample reports whether an untracked key should start being
// tracked, per the profiler's sampling interval.
func (p *Profiler[K]) shouldSample() bool {
	if p.samplingInterval == 1 {
		return true
	}
	return rand.Float64() <= p.samplingRate
}

// increaseHistogram bumps the bucket for reuse distance d.
func (p *Profiler[K]) increaseHistogram(d uint64) {
	if d > uint64(p.maxReuseTime) {
		p.histogram[len(p.histogram)-1].Add(1)
		return
	}
	if d == 0 {
		p.histogram[0].Add(1)
		return
	}
	bucket := (d-1)/uint64(p.bucketSize) + 1
	p.histogram[bucket].Add(1)
}

// GetMRC computes the Miss-Ratio Curve up to maxCacheSize (in the same
// units as reuse time, i.e. entry counts scaled by bucket size), per
// cache_profiler.h's GetMRC: prefix-sum the histogram into a CCDF, then
// walk it to emit one miss ratio per bucket-sized cache-size step.
//
// The returned slice is non-increasing, starts at 1.0, and its last
// element is the timestamp at the time of the snapshot (not a miss
// ratio) — callers use InterpolateMRC rather than indexing directly.
func (p *Profiler[K]) GetMRC(maxCacheSize int64) []float64 {
	if p.stopped.Load() {
		return []float64{1.0, float64(p.timestamp.Load())}
	}
	if !p.mu.TryRLock() {
		return []float64{1.0, float64(p.timestamp.Load())}
	}
	defer p.mu.RUnlock()
	if p.stopped.Load() {
		return []float64{1.0, float64(p.timestamp.Load())}
	}

	numElem := len(p.histogram)
	hist := make([]uint64, numElem)
	for i := range p.histogram {
		hist[i] = p.histogram[i].Load()
	}
	timestamp := p.timestamp.Load()

	var reuseSum uint64
	if p.samplingInterval != 1 {
		reuseSum += hist[0]
	} else {
		reuseSum += uint64(p.lastAccess.CountTracked())
	}

	prefixSum := make([]uint64, numElem)
	for i := 1; i < numElem; i++ {
		prefixSum[i] = prefixSum[i-1] + hist[i]
		reuseSum += hist[i]
	}
	prefixSum = prefixSum[:numElem-1]

	probGreater := make([]float64, numElem-1)
	probGreater[0] = 1.0
	for i := 1; i < numElem-1; i++ {
		if reuseSum == 0 {
			continue
		}
		probGreater[i] = float64(reuseSum-prefixSum[i]) / float64(reuseSum)
	}

	numMRCElem := int(maxCacheSize/p.bucketSize) + 1
	result := make([]float64, 0, numMRCElem+1)
	var integral float64
	t := 0
	for c := 0; c < numMRCElem; c++ {
		for integral < float64(c) && t < numElem-1 {
			integral += probGreater[t]
			t++
		}
		if t == 0 {
			result = append(result, 1.0)
		} else {
			result = append(result, probGreater[t-1])
		}
		if t >= numElem-1 {
			break
		}
	}

	for len(result) > 2 && result[len(result)-1] == result[len(result)-2] {
		result = result[:len(result)-1]
	}
	result = append(result, float64(timestamp))
	result[0] = 1.0
	return result
}

// ResetProfiling clears accumulated samples but keeps sampling active:
// used after a successful tuning pass when the manager is configured to
// clear stats (CACHE_PROFLER_CLEAR).
func (p *Profiler[K]) ResetProfiling() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timestamp.Store(0)
	p.histogram = newHistogram(p.maxReuseTime, p.bucketSize)
	p.lastAccess = lastaccess.New[K]()
}

// StopSamplingAndReleaseResource halts sampling and releases the
// histogram and last-access map. Every subsequent ReferenceKey*/GetMRC
// call is a no-op until StartSampling is called.
func (p *Profiler[K]) StopSamplingAndReleaseResource() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped.Store(true)
	p.timestamp.Store(0)
	p.histogram = nil
	p.lastAccess = nil
}

// StartSampling reallocates the profiler's structures and resumes
// sampling. A no-op if sampling was never stopped.
func (p *Profiler[K]) StartSampling() {
	if !p.stopped.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.histogram = newHistogram(p.maxReuseTime, p.bucketSize)
	p.lastAccess = lastaccess.New[K]()
	p.stopped.Store(false)
}
