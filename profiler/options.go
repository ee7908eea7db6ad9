package profiler

import "github.com/embedcache/evtune/internal/util"

// Key is the set of integer kinds a profiler can track, matching
// cache.Key: embedding ids are always integral.
type Key = util.Integer

// Options configures a Profiler at construction.
type Options struct {
	// Name identifies the profiler in logs; typically the owning cache's
	// name.
	Name string

	// BucketSize is the histogram bucket width in reuse-time units.
	// Defaults to DefaultBucketSize if <= 0.
	BucketSize int64

	// MaxReuseTime is the largest reuse distance tracked exactly; larger
	// distances fall into the tail bucket. Defaults to
	// DefaultMaxReuseTime if <= 0.
	MaxReuseTime int64

	// SamplingInterval controls the fraction of untracked keys that are
	// (re-)sampled: 1 means every reference is tracked, N>1 means a
	// roughly 1/N fraction. Defaults to 1 if <= 0.
	SamplingInterval uint64
}

// Defaults mirror CACHE_PROFILER_BUCKET_SIZE / CACHE_PROFILER_MAX_REUSE_DIST
// / CACHE_PROFILER_SAMPLING_INTERVAL from spec.md §6.
const (
	DefaultBucketSize       int64 = 10
	DefaultMaxReuseTime     int64 = 100000
	DefaultSamplingInterval int64 = 1
)

func (o Options) withDefaults() Options {
	if o.BucketSize <= 0 {
		o.BucketSize = DefaultBucketSize
	}
	if o.MaxReuseTime <= 0 {
		o.MaxReuseTime = DefaultMaxReuseTime
	}
	if o.SamplingInterval == 0 {
		o.SamplingInterval = uint64(DefaultSamplingInterval)
	}
	return o
}
