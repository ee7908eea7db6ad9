package profiledcache

import (
	"testing"

	"github.com/embedcache/evtune/cache"
	"github.com/embedcache/evtune/config"
	"github.com/embedcache/evtune/manager"
	"github.com/embedcache/evtune/profiler"
)

func newTestManager() *manager.Manager {
	cfg := config.FromEnv()
	cfg.TotalSize = 800
	cfg.MinSize = 8
	return manager.New(cfg)
}

func TestProfiledCache_RegistersAndReportsTraffic(t *testing.T) {
	t.Parallel()

	mgr := newTestManager()
	defer mgr.Stop()

	c := cache.NewLRU[int64](cache.Options{Name: "pc1", SizeBytes: 8 * cache.DefaultEntrySize})
	p := profiler.New[int64](profiler.Options{Name: "pc1"})

	pc, err := New[int64](c, p, mgr)
	if err != nil {
		t.Fatal(err)
	}

	ids := []int64{1, 2, 3}
	pc.AddToPrefetchList(ids, 3)
	pc.AddToCache(ids, 3)
	pc.Update([]int64{1}, 1, nil, nil)

	buf := make([]int64, 3)
	if n := pc.GetCachedIDs(buf, 3, nil, nil); n != 3 {
		t.Fatalf("want 3 resident keys, got %d", n)
	}
}

func TestProfiledCache_CloseUnregisters(t *testing.T) {
	t.Parallel()

	mgr := newTestManager()
	defer mgr.Stop()

	c := cache.NewLRU[int64](cache.Options{Name: "pc2", SizeBytes: 8 * cache.DefaultEntrySize})
	p := profiler.New[int64](profiler.Options{Name: "pc2"})

	pc, err := New[int64](c, p, mgr)
	if err != nil {
		t.Fatal(err)
	}

	pc.Close()
	if mgr.CheckCache() {
		t.Fatalf("want the registry empty after closing the only registered cache")
	}

	// Idempotent: a second Close must not panic.
	pc.Close()
}

func TestProfiledCache_DuplicateNameFailsRegistration(t *testing.T) {
	t.Parallel()

	mgr := newTestManager()
	defer mgr.Stop()

	c1 := cache.NewLRU[int64](cache.Options{Name: "dup", SizeBytes: 8 * cache.DefaultEntrySize})
	p1 := profiler.New[int64](profiler.Options{Name: "dup"})
	if _, err := New[int64](c1, p1, mgr); err != nil {
		t.Fatal(err)
	}

	c2 := cache.NewLRU[int64](cache.Options{Name: "dup", SizeBytes: 8 * cache.DefaultEntrySize})
	p2 := profiler.New[int64](profiler.Options{Name: "dup"})
	if _, err := New[int64](c2, p2, mgr); err == nil {
		t.Fatalf("want an error constructing a second profiled cache with the same name")
	}
}
