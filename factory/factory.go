// Package factory implements the module's single construction surface
// for key-only caches, grounded on original_source's cache_factory.h:
// a name selects one of five strategies, two of which additionally wrap
// the cache with an AET profiler and register it with a cache manager.
package factory

import (
	"fmt"

	"github.com/embedcache/evtune/cache"
	"github.com/embedcache/evtune/manager"
	"github.com/embedcache/evtune/profiledcache"
	"github.com/embedcache/evtune/profiler"
)

// Strategy names the eviction/profiling discipline to construct.
type Strategy string

const (
	LRU                Strategy = "LRU"
	LFU                Strategy = "LFU"
	ShardedLRU         Strategy = "ShardedLRU"
	ProfiledLRU        Strategy = "ProfiledLRU"
	ProfiledShardedLRU Strategy = "ProfiledShardedLRU"
)

// Params bundles every construction input a strategy might need. Only
// the fields relevant to the chosen Strategy are read: CacheOpt.Name is
// always required; ProfilerOpt and Manager are required only for the
// Profiled* strategies.
type Params struct {
	CacheOpt    cache.Options
	ProfilerOpt profiler.Options
	Manager     *manager.Manager
}

type ctor[K cache.Key] func(Params) (cache.Cache[K], error)

// Create builds a cache.Cache[K] for the named strategy. An unknown
// strategy name is a configuration error and returns a non-nil error
// rather than panicking, since factory.Create is typically called at
// startup from configuration the caller can still reject gracefully.
func Create[K cache.Key](strategy Strategy, p Params) (cache.Cache[K], error) {
	registry := map[Strategy]ctor[K]{
		LRU: func(p Params) (cache.Cache[K], error) {
			return cache.NewLRU[K](p.CacheOpt), nil
		},
		LFU: func(p Params) (cache.Cache[K], error) {
			return cache.NewLFU[K](p.CacheOpt), nil
		},
		ShardedLRU: func(p Params) (cache.Cache[K], error) {
			return cache.NewShardedLRU[K](p.CacheOpt)
		},
		ProfiledLRU: func(p Params) (cache.Cache[K], error) {
			return newProfiled[K](cache.NewLRU[K](p.CacheOpt), p)
		},
		ProfiledShardedLRU: func(p Params) (cache.Cache[K], error) {
			sc, err := cache.NewShardedLRU[K](p.CacheOpt)
			if err != nil {
				return nil, err
			}
			return newProfiled[K](sc, p)
		},
	}

	build, ok := registry[strategy]
	if !ok {
		return nil, fmt.Errorf("factory: unknown strategy %q", strategy)
	}
	return build(p)
}

func newProfiled[K cache.Key](c cache.Cache[K], p Params) (cache.Cache[K], error) {
	if p.Manager == nil {
		return nil, fmt.Errorf("factory: profiled strategy %q requires a manager", p.CacheOpt.Name)
	}
	profilerOpt := p.ProfilerOpt
	if profilerOpt.Name == "" {
		profilerOpt.Name = p.CacheOpt.Name
	}
	prof := profiler.New[K](profilerOpt)
	return profiledcache.New[K](c, prof, p.Manager)
}
