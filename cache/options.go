package cache

// Options configures a cache at construction. Name and SizeBytes are
// required; for the other fields zero values are safe and the
// constructors apply these defaults:
//   - nil Metrics     => NoopMetrics
//   - EntrySize <= 0  => DefaultEntrySize
//   - ReportInterval <= 0 => reporting disabled
type Options struct {
	// Name identifies the cache in logs, metrics labels, and the manager's
	// registry. Must be unique within a manager.
	Name string

	// SizeBytes is the initial size budget, in bytes. Required (> 0).
	SizeBytes int64

	// EntrySize is the fixed per-entry footprint, in bytes, used to
	// convert SizeBytes into a maximum entry count. Mirrors the original
	// implementation's assumption that all cached embedding slots are a
	// uniform size.
	EntrySize int64

	// StrictSize, when true, makes Update/AddToCache self-evict down to
	// the size budget immediately rather than leaving excess entries for
	// the caller to reclaim via GetEvictIDs. Off by default: the spec's
	// primary eviction path is caller-driven (GetEvictIDs).
	StrictSize bool

	// ReportInterval, if > 0, logs a DebugString-equivalent line via the
	// package logger every ReportInterval references.
	ReportInterval int64

	// Metrics receives Hit/Miss/Evict/Size signals. Defaults to NoopMetrics.
	Metrics Metrics

	// ShardShift selects the number of shards for ShardedLRU: shards =
	// 1 << ShardShift. Ignored by LRU/LFU. Must be >= 0.
	ShardShift uint
}

// DefaultEntrySize is used when Options.EntrySize is not set: a single
// embedding slot of 128 float32 values (512 bytes).
const DefaultEntrySize int64 = 128 * 4

func (o *Options) withDefaults() Options {
	out := *o
	if out.EntrySize <= 0 {
		out.EntrySize = DefaultEntrySize
	}
	if out.Metrics == nil {
		out.Metrics = NoopMetrics{}
	}
	return out
}

func (o *Options) maxEntries() int64 {
	if o.EntrySize <= 0 {
		return o.SizeBytes / DefaultEntrySize
	}
	return o.SizeBytes / o.EntrySize
}
