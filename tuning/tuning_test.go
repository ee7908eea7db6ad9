package tuning

import (
	"math"
	"testing"
)

func TestInterpolateMRC_TwoElementSpecialCase(t *testing.T) {
	t.Parallel()

	mrc := []float64{1.0, 42.0} // ratio, timestamp: only two elements total
	if got := InterpolateMRC(mrc, 10, 5); got != 1.0 {
		t.Fatalf("want 1.0 for a two-element MRC, got %v", got)
	}
}

func TestInterpolateMRC_ClampsAtTail(t *testing.T) {
	t.Parallel()

	mrc := []float64{1.0, 0.8, 0.5, 0.2, 100.0} // 4 ratios + timestamp
	if got := InterpolateMRC(mrc, 1, 1000); got != mrc[3] {
		t.Fatalf("want clamp to the last ratio mrc[n-1]=%v beyond the histogram's range, got %v", mrc[3], got)
	}
}

func TestInterpolateMRC_LinearBetweenBuckets(t *testing.T) {
	t.Parallel()

	mrc := []float64{1.0, 0.5, 0.0, 100.0} // 3 ratios + timestamp, bucketSize 10
	got := InterpolateMRC(mrc, 10, 5) // halfway between bucket 0 and 1
	want := 0.75
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestRandomApportion_SumsToTotalAndRespectsMinSize(t *testing.T) {
	t.Parallel()

	const total, minSize = int64(1000), int64(10)
	parts := make([]int64, 4)
	RandomApportion(parts, total, minSize)

	var sum int64
	for _, p := range parts {
		if p < minSize {
			t.Fatalf("part %d below min size: %d", p, minSize)
		}
		sum += p
	}
	if sum != total {
		t.Fatalf("want parts summing to %d, got %d", total, sum)
	}
}

func TestRandomApportion_SinglePartGetsEverything(t *testing.T) {
	t.Parallel()

	parts := make([]int64, 1)
	RandomApportion(parts, 500, 10)
	if parts[0] != 500 {
		t.Fatalf("want the single part to receive the whole budget, got %d", parts[0])
	}
}

// A cache whose MRC drops sharply past its current working-set size
// should gain budget from a cache whose MRC is already flat, and the
// tuner must report that it improved the aggregate miss count.
func TestMinMissCountRandomGreedy_FavorsTheCacheThatBenefitsMore(t *testing.T) {
	t.Parallel()

	steepMRC := []float64{1.0, 1.0, 0.1, 0.1, 0.1, 200.0}
	flatMRC := []float64{1.0, 0.2, 0.2, 0.2, 0.2, 200.0}

	caches := map[string]*Item{
		"steep": {BucketSize: 1, EntrySize: 1, VC: 1000, MC: 1000, MRC: steepMRC},
		"flat":  {BucketSize: 1, EntrySize: 1, VC: 1000, MC: 200, MRC: flatMRC},
	}

	s := NewMinMissCountRandomGreedy()
	improved := s.DoTune(200, caches, 5, 1)
	if !improved {
		t.Fatalf("want the greedy pass to report an improvement")
	}
	if caches["steep"].NewSize+caches["flat"].NewSize != 200 {
		t.Fatalf("want the full budget allocated, got steep=%d flat=%d",
			caches["steep"].NewSize, caches["flat"].NewSize)
	}
}

func TestCreate_UnknownNameFallsBackToDefault(t *testing.T) {
	t.Parallel()

	s := Create("does-not-exist")
	if _, ok := s.(*MinMissCountRandomGreedy); !ok {
		t.Fatalf("want fallback to MinMissCountRandomGreedy, got %T", s)
	}
}
