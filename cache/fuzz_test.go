//go:build go1.18

package cache

import "testing"

// Fuzz the prefetch-pin/admit/reference cycle on arbitrary int64 keys.
// Guards against panics and checks that a key is never simultaneously
// reported resident and absent.
func FuzzLRU_PrefetchAdmitReference(f *testing.F) {
	f.Add(int64(0), int64(1))
	f.Add(int64(-1), int64(-1))
	f.Add(int64(1), int64(1))
	f.Add(int64(1<<62), int64(3))

	f.Fuzz(func(t *testing.T, k, refCount int64) {
		if refCount < 0 {
			refCount = -refCount
		}
		if refCount > 16 {
			refCount = 16
		}

		c := NewLRU[int64](Options{Name: "fuzz", SizeBytes: 64 * DefaultEntrySize})

		for i := int64(0); i < refCount+1; i++ {
			c.AddToPrefetchList([]int64{k}, 1)
		}
		for i := int64(0); i < refCount+1; i++ {
			c.AddToCache([]int64{k}, 1)
		}

		buf := make([]int64, 1)
		if n := c.GetCachedIDs(buf, 1, nil, nil); n != 1 || buf[0] != k {
			t.Fatalf("key %d must be resident after admission, got n=%d buf=%v", k, n, buf)
		}

		c.Update([]int64{k}, 1, nil, nil)
		if c.GetHitRate() == 0 {
			t.Fatalf("referencing a resident key must count as a hit")
		}
	})
}
