package manager

import (
	"testing"

	"github.com/embedcache/evtune/config"
)

// mockCache is a minimal manager.Cache used to exercise Register/Tune
// without a real profiler attached.
type mockCache struct {
	name       string
	size       int64
	entrySize  int64
	hitRate    float64
	promotions uint64
	demotions  uint64
	mrc        []float64
	bucketSize int64
	resets     int
}

func (c *mockCache) Name() string     { return c.name }
func (c *mockCache) Capacity() int64  { return c.size }
func (c *mockCache) SetSize(n int64)  { c.size = n }
func (c *mockCache) EntrySize() int64 { return c.entrySize }
func (c *mockCache) GetHitRate() float64 { return c.hitRate }
func (c *mockCache) MoveCounts() (uint64, uint64) { return c.promotions, c.demotions }
func (c *mockCache) ResetMoveCounts()  { c.promotions, c.demotions = 0, 0 }
func (c *mockCache) GetBucketSize() int64 { return c.bucketSize }
func (c *mockCache) GetMRC(maxCacheSize int64) []float64 { return c.mrc }
func (c *mockCache) ResetProfiling() { c.resets++ }

func testConfig() config.Config {
	c := config.FromEnv()
	c.TotalSize = 1000
	c.MinSize = 10
	c.TuningUnit = 10
	return c
}

func TestManager_RegisterSplitsSizeEqually(t *testing.T) {
	t.Parallel()

	m := New(testConfig())
	defer m.Stop()

	a := &mockCache{name: "a", entrySize: 1}
	b := &mockCache{name: "b", entrySize: 1}
	if err := m.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(b); err != nil {
		t.Fatal(err)
	}

	if a.size != 500 || b.size != 500 {
		t.Fatalf("want equal 500/500 split after registering two caches, got a=%d b=%d", a.size, b.size)
	}
}

func TestManager_RegisterDuplicateNameFails(t *testing.T) {
	t.Parallel()

	m := New(testConfig())
	defer m.Stop()

	a := &mockCache{name: "dup", entrySize: 1}
	if err := m.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(&mockCache{name: "dup", entrySize: 1}); err == nil {
		t.Fatalf("want error registering a duplicate name")
	}
}

func TestManager_DoTuneAppliesSizesOnSuccess(t *testing.T) {
	t.Parallel()

	m := New(testConfig())
	defer m.Stop()

	// At the 500/500 registration split "steep" still gains from every
	// extra unit while "flat" has been on its plateau since 250 entries,
	// so moving budget from flat to steep lowers the total miss count.
	steep := &mockCache{
		name: "steep", entrySize: 1, bucketSize: 250,
		mrc: []float64{1.0, 0.75, 0.5, 0.25, 0.0, 500.0},
	}
	flat := &mockCache{
		name: "flat", entrySize: 1, bucketSize: 250,
		mrc: []float64{1.0, 0.3, 0.3, 0.3, 0.3, 500.0},
	}
	if err := m.Register(steep); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(flat); err != nil {
		t.Fatal(err)
	}

	success := m.DoTune(1000, []Cache{steep, flat}, 10)
	if !success {
		t.Fatalf("want tune to succeed with a clearly-favorable MRC split")
	}
	if steep.size+flat.size != 1000 {
		t.Fatalf("want the total budget preserved, got steep=%d flat=%d", steep.size, flat.size)
	}
}

func TestManager_AccessAccumulates(t *testing.T) {
	t.Parallel()

	m := New(testConfig())
	defer m.Stop()

	for i := 0; i < 5; i++ {
		m.Access()
	}
	if got := m.accessCount.Load(); got != 5 {
		t.Fatalf("want access count 5, got %d", got)
	}
}

func TestDefault_ReturnsSameInstance(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Fatalf("want Default() to return the same singleton instance")
	}
}
