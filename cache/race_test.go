package cache

import (
	"math/rand"
	"runtime"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// A mixed workload of concurrent prefetch/admit/reference/evict calls on a
// ShardedLRU. Should pass under -race without detector reports.
func TestRace_ShardedLRU(t *testing.T) {
	c, err := NewShardedLRU[int64](Options{Name: "race1", SizeBytes: 4096 * DefaultEntrySize, ShardShift: 4})
	if err != nil {
		t.Fatal(err)
	}

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := int64(50_000)
	deadline := time.Now().Add(500 * time.Millisecond)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*9973))
			buf := make([]int64, 8)
			for time.Now().Before(deadline) {
				k := r.Int63n(keyspace)
				switch r.Intn(3) {
				case 0:
					c.AddToPrefetchList([]int64{k}, 1)
					c.AddToCache([]int64{k}, 1)
				case 1:
					c.Update([]int64{k}, 1, nil, nil)
				default:
					c.GetEvictIDs(buf, len(buf))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// Same mixed workload against LFU, whose frequency-bucket bookkeeping is
// the most pointer-heavy structure in this package.
func TestRace_LFU(t *testing.T) {
	c := NewLFU[int64](Options{Name: "race2", SizeBytes: 2048 * DefaultEntrySize})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := int64(20_000)
	deadline := time.Now().Add(500 * time.Millisecond)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*7919))
			buf := make([]int64, 8)
			for time.Now().Before(deadline) {
				k := r.Int63n(keyspace)
				switch r.Intn(3) {
				case 0:
					c.AddToPrefetchList([]int64{k}, 1)
					c.AddToCache([]int64{k}, 1)
				case 1:
					c.Update([]int64{k}, 1, nil, nil)
				default:
					c.GetEvictIDs(buf, len(buf))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
