// Command bench drives a synthetic multi-cache embedding-lookup workload
// through the manager's tuning loop and exposes Prometheus/pprof
// endpoints for observing it live.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/embedcache/evtune/cache"
	"github.com/embedcache/evtune/config"
	"github.com/embedcache/evtune/factory"
	"github.com/embedcache/evtune/manager"
	pmet "github.com/embedcache/evtune/metrics/prom"
	"github.com/embedcache/evtune/profiler"
)

func main() {
	var (
		numCaches   = flag.Int("caches", 2, "number of independent key-only caches to register")
		policy      = flag.String("policy", "lru", "eviction policy: lru | sharded")
		keys        = flag.Int("keys", 1_000_000, "keyspace size per cache")
		zipfS       = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		workers     = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "worker goroutines")
		duration    = flag.Duration("duration", 30*time.Second, "benchmark duration")
		totalSize   = flag.Int64("total_size", config.DefaultTotalSize, "global byte budget, overrides CACHE_TOTAL_SIZE")
		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	cfg := config.FromEnv()
	cfg.TotalSize = *totalSize
	mgr := manager.New(cfg)
	mgr.SetMetrics(pmet.NewManagerMetrics(nil, "evtune", "manager"))

	var strategy factory.Strategy
	switch *policy {
	case "lru":
		strategy = factory.ProfiledLRU
	case "sharded":
		strategy = factory.ProfiledShardedLRU
	default:
		log.Fatalf("unknown policy: %q (use lru or sharded)", *policy)
	}

	caches := make([]cache.Cache[int64], *numCaches)
	for i := 0; i < *numCaches; i++ {
		name := fmt.Sprintf("cache-%d", i)
		cacheMetrics := pmet.NewCacheAdapter(nil, "evtune", "cache", map[string]string{"cache": name})

		c, err := factory.Create[int64](strategy, factory.Params{
			CacheOpt: cache.Options{
				Name:       name,
				SizeBytes:  cfg.TotalSize / int64(*numCaches),
				ShardShift: uint(cfg.ShardShift),
				Metrics:    cacheMetrics,
			},
			ProfilerOpt: profiler.Options{
				Name:             name,
				BucketSize:       cfg.ProfilerBucketSize,
				MaxReuseTime:     cfg.ProfilerMaxReuseDist,
				SamplingInterval: uint64(cfg.ProfilerSamplingInterval),
			},
			Manager: mgr,
		})
		if err != nil {
			log.Fatalf("constructing %q: %v", name, err)
		}
		caches[i] = c
	}
	defer func() {
		for _, c := range caches {
			if closer, ok := c.(interface{ Close() }); ok {
				closer.Close()
			}
		}
	}()

	// ---- Load generation: each cache gets a distinct skew so the
	// manager has a genuine reallocation decision to make. ----
	//
	// A cache's own policy store is the only authority on residency, but
	// its public surface exposes no "is key resident" query (by design:
	// callers decide whether to prefetch, the cache only counts the
	// resulting hit/miss). So this driver keeps its own approximate
	// residency sketch per cache, exactly as a real storage-tier
	// collaborator would track "fetch already issued for this key"
	// externally, and drives AddToPrefetchList/AddToCache only on a
	// believed-absent key.
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	var ops uint64

	resident := make([]*sync.Map, len(caches))
	for i := range resident {
		resident[i] = &sync.Map{}
	}

	deadline := time.Now().Add(*duration)
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()
			localR := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))

			zipfs := make([]*rand.Zipf, len(caches))
			for i := range zipfs {
				s := *zipfS + float64(i)*0.3 // later caches skew harder
				zipfs[i] = rand.NewZipf(localR, s, 1.0, uint64(*keys-1))
			}

			for time.Now().Before(deadline) {
				idx := localR.Intn(len(caches))
				key := int64(zipfs[idx].Uint64())
				pc := caches[idx]

				buf := [1]int64{key}
				if _, believedResident := resident[idx].Load(key); believedResident {
					pc.Update(buf[:1], 1, nil, nil)
				} else {
					pc.AddToPrefetchList(buf[:1], 1)
					pc.AddToCache(buf[:1], 1)
					resident[idx].Store(key, struct{}{})
				}
				atomic.AddUint64(&ops, 1)
			}
		}(w)
	}
	wg.Wait()

	fmt.Printf("policy=%s caches=%d workers=%d keys=%d dur=%v total_size=%d\n",
		*policy, *numCaches, workersN, *keys, *duration, cfg.TotalSize)
	fmt.Printf("ops=%d (%.0f ops/s)\n", ops, float64(ops)/duration.Seconds())
	for _, pc := range caches {
		fmt.Printf("%s: entries=%d capacity_bytes=%d hit_rate=%.2f%%\n",
			pc.Name(), pc.Size(), pc.Capacity(), pc.GetHitRate()*100)
	}
}
