package tuning

import (
	"github.com/embedcache/evtune/internal/telemetry"
	"github.com/rs/zerolog"
)

// MinMissCountRandomGreedy apportions the budget randomly and then
// repeatedly moves one unit from the cache that loses least to the cache
// that gains most, stopping once no transfer improves the aggregate miss
// count. It is the default and, at present, only registered strategy.
type MinMissCountRandomGreedy struct {
	log zerolog.Logger
}

// NewMinMissCountRandomGreedy constructs the strategy.
func NewMinMissCountRandomGreedy() *MinMissCountRandomGreedy {
	return &MinMissCountRandomGreedy{log: telemetry.New("tuning.min_mc_random_greedy")}
}

// DoTune implements Strategy.
func (s *MinMissCountRandomGreedy) DoTune(totalSize int64, caches map[string]*Item, unit, minSize int64) bool {
	var origMCSum uint64
	for _, item := range caches {
		origMCSum += item.MC
	}

	parts := make([]int64, len(caches))
	names := make([]string, 0, len(caches))
	for name := range caches {
		names = append(names, name)
	}
	RandomApportion(parts, totalSize, minSize)
	for i, name := range names {
		item := caches[name]
		item.NewSize = parts[i]
		newEntries := item.NewSize / item.EntrySize
		item.MR = InterpolateMRC(item.MRC, item.BucketSize, newEntries)
		item.MC = uint64(item.MR * float64(item.VC))
	}

	for {
		var maxGain, minLoss uint64
		var maxGainNewMC, minLossNewMC uint64
		maxGainName, minLossName := "", ""

		for name, item := range caches {
			newEntries := (item.NewSize + unit) / item.EntrySize
			newMR := InterpolateMRC(item.MRC, item.BucketSize, newEntries)
			newMC := uint64(newMR * float64(item.VC))
			var gain uint64
			if item.MC > newMC {
				gain = item.MC - newMC
			}
			if maxGainName == "" || gain > maxGain {
				maxGain = gain
				maxGainName = name
				maxGainNewMC = newMC
			}
		}

		for name, item := range caches {
			if name == maxGainName {
				continue
			}
			if item.NewSize <= minSize+unit {
				continue
			}
			newEntries := (item.NewSize - unit) / item.EntrySize
			newMR := InterpolateMRC(item.MRC, item.BucketSize, newEntries)
			newMC := uint64(newMR * float64(item.VC))
			var loss uint64
			if newMC > item.MC {
				loss = newMC - item.MC
			}
			if minLossName == "" || loss < minLoss {
				minLoss = loss
				minLossName = name
				minLossNewMC = newMC
			}
		}

		if maxGainName == "" || minLossName == "" || maxGain <= minLoss {
			break
		}

		caches[maxGainName].NewSize += unit
		caches[maxGainName].MC = maxGainNewMC
		caches[minLossName].NewSize -= unit
		caches[minLossName].MC = minLossNewMC
	}

	var newMCSum uint64
	for _, item := range caches {
		newMCSum += item.MC
	}

	s.log.Info().
		Uint64("orig_mc", origMCSum).
		Uint64("new_mc", newMCSum).
		Int64("diff", int64(origMCSum)-int64(newMCSum)).
		Msg("tuning pass evaluated")

	if newMCSum >= origMCSum {
		s.log.Info().Msg("new miss count not less than original, not tuning")
		return false
	}
	return true
}
