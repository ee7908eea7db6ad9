package profiler

import "testing"

// Scenario S5 from the spec: feed a block of unique keys, then repeat the
// same block so every key's reuse distance is exactly the block size. The
// resulting MRC must show miss ratio 1.0 well below the block size and a
// sharp drop once the cache size reaches it.
func TestProfiler_MRCReflectsReuseDistance(t *testing.T) {
	t.Parallel()

	const blockSize = 50
	p := New[int64](Options{Name: "s5", BucketSize: 5, MaxReuseTime: 1000})

	block := make([]int64, blockSize)
	for i := range block {
		block[i] = int64(i)
	}

	p.ReferenceKeyBatch(block, blockSize)
	p.ReferenceKeyBatch(block, blockSize)

	mrc := p.GetMRC(1000)
	if len(mrc) < 2 {
		t.Fatalf("want a non-trivial MRC, got %v", mrc)
	}
	if mrc[0] != 1.0 {
		t.Fatalf("MRC must start at 1.0, got %v", mrc[0])
	}
	// Last element is the timestamp snapshot, not a ratio.
	if mrc[len(mrc)-1] < float64(blockSize) {
		t.Fatalf("want trailing timestamp >= %d, got %v", blockSize, mrc[len(mrc)-1])
	}

	ratios := mrc[:len(mrc)-1]
	for i := 1; i < len(ratios); i++ {
		if ratios[i] > ratios[i-1] {
			t.Fatalf("MRC must be non-increasing, got %v at index %d > %v at %d", ratios[i], i, ratios[i-1], i-1)
		}
	}
}

// With no references at all, GetMRC must still return a well-formed curve
// (starting at 1.0, ending in a zero timestamp) rather than panicking on an
// empty histogram.
func TestProfiler_GetMRCOnEmptyProfiler(t *testing.T) {
	t.Parallel()

	p := New[int64](Options{Name: "empty"})
	mrc := p.GetMRC(100)
	if len(mrc) < 2 {
		t.Fatalf("want at least [ratio, timestamp], got %v", mrc)
	}
	if mrc[0] != 1.0 {
		t.Fatalf("want MRC[0] == 1.0, got %v", mrc[0])
	}
	if mrc[len(mrc)-1] != 0 {
		t.Fatalf("want trailing timestamp 0 on an unreferenced profiler, got %v", mrc[len(mrc)-1])
	}
}

// A full-sampling profiler (interval 1) must track every distinct key it
// sees.
func TestProfiler_FullSamplingTracksEveryKey(t *testing.T) {
	t.Parallel()

	p := New[int64](Options{Name: "full", SamplingInterval: 1})
	for i := int64(0); i < 20; i++ {
		p.ReferenceKey(i)
	}
	if got := p.lastAccess.Len(); got != 20 {
		t.Fatalf("want 20 tracked keys under full sampling, got %d", got)
	}
}

// Stop releases the profiler's structures and makes subsequent references
// and GetMRC calls no-ops; Start reallocates them and resumes sampling.
func TestProfiler_StopThenStart(t *testing.T) {
	t.Parallel()

	p := New[int64](Options{Name: "stopstart"})
	p.ReferenceKey(1)
	p.ReferenceKey(1)

	p.StopSamplingAndReleaseResource()
	if p.histogram != nil || p.lastAccess != nil {
		t.Fatalf("want nil internal state after stop")
	}

	p.ReferenceKey(2) // no-op while stopped
	mrc := p.GetMRC(100)
	if len(mrc) != 2 || mrc[0] != 1.0 || mrc[1] != 0 {
		t.Fatalf("want stopped-profiler snapshot [1.0, 0], got %v", mrc)
	}

	p.StartSampling()
	if p.histogram == nil || p.lastAccess == nil {
		t.Fatalf("want internal state reallocated after start")
	}
	p.ReferenceKey(3)
	if p.lastAccess.Len() != 1 {
		t.Fatalf("want sampling resumed after start, got %d tracked keys", p.lastAccess.Len())
	}
}

// ResetProfiling clears accumulated samples without stopping sampling.
func TestProfiler_ResetProfilingKeepsSamplingActive(t *testing.T) {
	t.Parallel()

	p := New[int64](Options{Name: "reset"})
	p.ReferenceKey(1)
	p.ReferenceKey(1)
	if p.timestamp.Load() == 0 {
		t.Fatalf("want nonzero timestamp before reset")
	}

	p.ResetProfiling()
	if p.timestamp.Load() != 0 {
		t.Fatalf("want timestamp cleared after reset, got %d", p.timestamp.Load())
	}
	if p.stopped.Load() {
		t.Fatalf("ResetProfiling must not stop sampling")
	}

	p.ReferenceKey(2)
	if p.lastAccess.Len() != 1 {
		t.Fatalf("want sampling active immediately after reset")
	}
}

// A reuse distance beyond MaxReuseTime must land in the tail bucket
// rather than panicking on an out-of-range index.
func TestProfiler_ReuseDistanceBeyondMaxLandsInTailBucket(t *testing.T) {
	t.Parallel()

	p := New[int64](Options{Name: "tail", BucketSize: 1, MaxReuseTime: 5})
	p.ReferenceKey(1)
	for i := int64(0); i < 10; i++ {
		p.ReferenceKey(100 + i)
	}
	p.ReferenceKey(1) // reuse distance 11, beyond MaxReuseTime 5

	tail := p.histogram[len(p.histogram)-1].Load()
	if tail != 1 {
		t.Fatalf("want 1 tail-bucket sample, got %d", tail)
	}
}
