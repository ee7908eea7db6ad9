package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/embedcache/evtune/cache"
)

func TestCacheAdapter_HitMissEvictSize(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := NewCacheAdapter(reg, "evtune", "cache", prometheus.Labels{"cache": "t1"})

	a.Hit()
	a.Hit()
	a.Miss()
	a.Evict(cache.EvictCapacity)
	a.Size(7)

	if got := counterValue(t, a.hits); got != 2 {
		t.Fatalf("want 2 hits, got %v", got)
	}
	if got := counterValue(t, a.misses); got != 1 {
		t.Fatalf("want 1 miss, got %v", got)
	}
	if got := gaugeValue(t, a.size); got != 7 {
		t.Fatalf("want size gauge 7, got %v", got)
	}
}

func TestManagerMetrics_ObserveTuneAndSamplingGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewManagerMetrics(reg, "evtune", "manager")

	m.ObserveTune(true)
	m.ObserveTune(false)
	m.SetSamplingActive(false)
	m.SetCacheSize("t1", 4096)

	if got := gaugeValue(t, m.samplingActive); got != 0 {
		t.Fatalf("want sampling_active gauge 0, got %v", got)
	}
	if got := gaugeValue(t, m.cacheSize.WithLabelValues("t1")); got != 4096 {
		t.Fatalf("want cache size gauge 4096, got %v", got)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}
