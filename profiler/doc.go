// Package profiler implements the AET (Average Eviction Time) reuse-time
// profiler: it samples the reuse distance between successive references
// to the same key and turns the resulting histogram into a Miss-Ratio
// Curve (MRC) on demand. It runs concurrently with live cache traffic and
// does not itself decide cache admission or eviction.
//
// Design
//
//   - Sampling: ReferenceKey/ReferenceKeyBatch record a reuse distance per
//     reference into a fixed-bucket histogram. Under sampling interval N>1,
//     only a 1/N fraction of untracked keys are (re-)sampled, trading
//     accuracy for memory: the last-access map only grows proportionally
//     to the sampled working set.
//
//   - Quiescence: GetMRC reads are consistent with the histogram and
//     last-access map, and ResetProfiling/Stop/Start need exclusive access
//     to rebuild them. This is modeled with a sync.RWMutex (readers are
//     ReferenceKey*/GetMRC, writers are Reset/Stop/Start) using TryRLock so
//     a referencer that would block on an in-flight reset simply skips the
//     reference rather than stalling the caller's hot path — the same
//     "observe run_lock, return" contract the spec describes.
//
//   - Stop/Start: StopSamplingAndReleaseResource additionally frees the
//     histogram and last-access map (set to nil) to reclaim memory;
//     StartSampling reallocates them. ResetProfiling, in contrast, keeps
//     sampling active and only clears accumulated state. The manager calls
//     only ResetProfiling: after every successful tuning pass when
//     CACHE_PROFLER_CLEAR is enabled, and when it suspends sampling after
//     repeated unsuccessful passes.
package profiler
