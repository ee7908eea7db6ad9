// Package prom adapts this module's cache- and manager-level
// observability hooks onto Prometheus collectors, grounded on the
// teacher's metrics/prom/prom.go adapter.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/embedcache/evtune/cache"
)

// CacheAdapter implements cache.Metrics and exports Prometheus
// counters/gauges for a single named cache. Safe for concurrent use;
// Prometheus metric types are goroutine-safe.
type CacheAdapter struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	evicts *prometheus.CounterVec
	size   prometheus.Gauge
}

// NewCacheAdapter constructs a Prometheus metrics adapter for one cache.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (typically {"cache": name})
func NewCacheAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *CacheAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &CacheAdapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.size)
	return a
}

// Hit increments the hit counter.
func (a *CacheAdapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *CacheAdapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *CacheAdapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(reason(r)).Inc()
}

// Size updates the resident-entry-count gauge.
func (a *CacheAdapter) Size(entries int64) {
	a.size.Set(float64(entries))
}

func reason(r cache.EvictReason) string {
	switch r {
	case cache.EvictCapacity:
		return "capacity"
	case cache.EvictExplicit:
		return "explicit"
	default:
		return "policy"
	}
}

// Compile-time check: ensure CacheAdapter implements cache.Metrics.
var _ cache.Metrics = (*CacheAdapter)(nil)

// ManagerMetrics exports the cache manager's own tuning-loop activity:
// how many tune passes succeeded or failed, whether sampling is
// currently active, and the current byte budget per registered cache.
type ManagerMetrics struct {
	tunePasses     *prometheus.CounterVec
	samplingActive prometheus.Gauge
	cacheSize      *prometheus.GaugeVec
}

// NewManagerMetrics constructs the manager-level Prometheus adapter.
func NewManagerMetrics(reg prometheus.Registerer, ns, sub string) *ManagerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &ManagerMetrics{
		tunePasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "tune_passes_total",
			Help:      "Tuning passes by outcome (success/no_improvement)",
		}, []string{"outcome"}),
		samplingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "sampling_active",
			Help:      "1 if the profiler sampling gate is open, 0 otherwise",
		}),
		cacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "cache_size_bytes",
			Help:      "Current byte budget per registered cache",
		}, []string{"cache"}),
	}
	reg.MustRegister(m.tunePasses, m.samplingActive, m.cacheSize)
	return m
}

// ObserveTune records the outcome of a single tuning pass.
func (m *ManagerMetrics) ObserveTune(success bool) {
	if success {
		m.tunePasses.WithLabelValues("success").Inc()
	} else {
		m.tunePasses.WithLabelValues("no_improvement").Inc()
	}
}

// SetSamplingActive updates the sampling-gate gauge.
func (m *ManagerMetrics) SetSamplingActive(active bool) {
	if active {
		m.samplingActive.Set(1)
	} else {
		m.samplingActive.Set(0)
	}
}

// SetCacheSize updates a single cache's current byte budget.
func (m *ManagerMetrics) SetCacheSize(name string, size int64) {
	m.cacheSize.WithLabelValues(name).Set(float64(size))
}
