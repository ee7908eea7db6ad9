package cache

import (
	"math/rand"
	"testing"
)

func BenchmarkLRU_Update(b *testing.B) {
	c := NewLRU[int64](Options{Name: "bench-lru", SizeBytes: 100_000 * DefaultEntrySize})
	ids := make([]int64, 100_000)
	for i := range ids {
		ids[i] = int64(i)
	}
	c.AddToPrefetchList(ids, len(ids))
	c.AddToCache(ids, len(ids))

	r := rand.New(rand.NewSource(1))
	batch := make([]int64, 64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range batch {
			batch[j] = ids[r.Intn(len(ids))]
		}
		c.Update(batch, len(batch), nil, nil)
	}
}

func BenchmarkShardedLRU_Update_Parallel(b *testing.B) {
	c, err := NewShardedLRU[int64](Options{Name: "bench-slru", SizeBytes: 100_000 * DefaultEntrySize, ShardShift: 6})
	if err != nil {
		b.Fatal(err)
	}
	ids := make([]int64, 100_000)
	for i := range ids {
		ids[i] = int64(i)
	}
	c.AddToPrefetchList(ids, len(ids))
	c.AddToCache(ids, len(ids))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		batch := make([]int64, 64)
		for pb.Next() {
			for j := range batch {
				batch[j] = ids[r.Intn(len(ids))]
			}
			c.Update(batch, len(batch), nil, nil)
		}
	})
}

func BenchmarkLFU_Update(b *testing.B) {
	c := NewLFU[int64](Options{Name: "bench-lfu", SizeBytes: 100_000 * DefaultEntrySize})
	ids := make([]int64, 100_000)
	for i := range ids {
		ids[i] = int64(i)
	}
	c.AddToPrefetchList(ids, len(ids))
	c.AddToCache(ids, len(ids))

	r := rand.New(rand.NewSource(1))
	batch := make([]int64, 64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range batch {
			batch[j] = ids[r.Intn(len(ids))]
		}
		c.Update(batch, len(batch), nil, nil)
	}
}
