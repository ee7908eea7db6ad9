package tuning

import "github.com/embedcache/evtune/internal/telemetry"

// DefaultStrategyName is the strategy used when CACHE_TUNING_STRATEGY is
// unset or names an unknown strategy.
const DefaultStrategyName = "min_mc_random_greedy"

// Create builds a Strategy by name, mirroring
// CacheTuningStrategyCreator::Create: an unrecognized name falls back to
// the default rather than erroring, since a misconfigured strategy name
// should not stop the manager from tuning at all.
func Create(name string) Strategy {
	switch name {
	case "min_mc_random_greedy", "":
		return NewMinMissCountRandomGreedy()
	default:
		log := telemetry.New("tuning.registry")
		log.Info().
			Str("requested", name).
			Str("using", DefaultStrategyName).
			Msg("unknown tuning strategy, falling back to default")
		return NewMinMissCountRandomGreedy()
	}
}
