// Package tuning implements the cache-budget reallocation strategies the
// manager runs against a set of profiled caches: apportion a total size
// budget across caches and greedily shift units between them to minimize
// the aggregate predicted miss count, grounded directly on
// original_source's cache_tuning_strategy.h.
package tuning

import (
	"math"
	"math/rand"
)

// Item is one cache's tuning input/output: its current budget, observed
// traffic, and MRC snapshot going in; its proposed new size and predicted
// miss count coming out.
type Item struct {
	BucketSize int64
	OrigSize   int64
	NewSize    int64
	EntrySize  int64
	VC         uint64 // reference count observed this tuning window
	MC         uint64 // predicted miss count at the current size
	MR         float64
	MRC        []float64
}

// Strategy reallocates total_size bytes across caches, biasing toward
// fewer aggregate misses. It returns false when the proposal would not
// improve on the current miss count, in which case the manager must
// leave sizes untouched.
type Strategy interface {
	DoTune(totalSize int64, caches map[string]*Item, unit, minSize int64) bool
}

// InterpolateMRC looks up the miss ratio at cache size target (in entries)
// by linearly interpolating between the two histogram buckets target
// falls between. mrc's last element is a timestamp, not a ratio, and is
// excluded from interpolation; a target at or past the last ratio's
// bucket gets that last ratio.
func InterpolateMRC(mrc []float64, bucketSize, target int64) float64 {
	if len(mrc) == 2 {
		return mrc[0]
	}
	n := len(mrc) - 1 // exclude the trailing timestamp
	bucket := float64(target) / float64(bucketSize)
	bucketInt := int(math.Floor(bucket))
	if bucketInt >= n-1 {
		return mrc[n-1]
	}
	frac := bucket - float64(bucketInt)
	return mrc[bucketInt] + frac*(mrc[bucketInt+1]-mrc[bucketInt])
}

// RandomApportion splits total across len(parts) shares, each at least
// minSize, by normalizing len(parts) independent Exp(1) draws (sampled as
// -ln(U), U ~ Uniform(0,1)) into a Dirichlet-like distribution and
// rounding to the nearest unit, then walking off the rounding remainder
// one unit at a time against randomly picked parts.
func RandomApportion(parts []int64, total, minSize int64) {
	n := len(parts)
	reserved := int64(n) * minSize
	partSize := total - reserved
	if reserved >= total {
		panic("tuning: not enough size to partition")
	}

	apportion := make([]float64, n)
	var normalizeSum float64
	for i := range apportion {
		v := rand.ExpFloat64() // Exp(1), matching -ln(Uniform(0,1))
		apportion[i] = v
		normalizeSum += v
	}
	for i := range apportion {
		apportion[i] /= normalizeSum
	}

	var sumApportion int64
	for i := 0; i < n; i++ {
		share := int64(math.Round(apportion[i] * float64(partSize)))
		sumApportion += share
		parts[i] = share
	}

	remaining := partSize - sumApportion
	step := int64(1)
	if remaining < 0 {
		step = -1
	}
	for remaining != 0 {
		picked := rand.Intn(n)
		if parts[picked]+step > 0 {
			parts[picked] += step
			remaining -= step
		}
	}

	for i := range parts {
		parts[i] += minSize
	}
}
