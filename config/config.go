// Package config loads the module's environment-variable configuration,
// mirroring the original's ReadInt64FromEnvVar/ReadBoolFromEnvVar/
// ReadStringFromEnvVar calls in cache_manager.cc and cache_profiler.h.
//
// No third-party env-binding library is wired here: none of the
// retrieval pack's examples use one, and spec.md's External Interfaces
// section defines configuration purely in terms of environment variables
// with documented defaults, which os.Getenv + strconv serves directly.
package config

import (
	"os"
	"strconv"
)

// Config holds every tunable the manager and its profiled caches read
// from the environment at startup.
type Config struct {
	ProfilerBucketSize       int64
	ProfilerMaxReuseDist     int64
	ProfilerSamplingInterval int64
	TuningInterval           int64
	TotalSize                int64
	MinSize                  int64
	TuningUnit               int64
	TuningStrategy           string
	ProfilerClear            bool
	ReportInterval           int64
	StableSteps              int64
	ShardShift               int64
}

// Defaults mirror spec.md §6's table, which in turn mirrors
// cache_manager.cc's constructor and cache_profiler.h's defaults.
const (
	DefaultProfilerBucketSize       int64 = 10
	DefaultProfilerMaxReuseDist     int64 = 100000
	DefaultProfilerSamplingInterval int64 = 1
	DefaultTuningInterval           int64 = 100000
	DefaultTotalSize                int64 = 32 * 1024 * 1024
	DefaultMinSize                  int64 = 2048 * 128 * 8
	DefaultTuningUnit               int64 = 8 * 128
	DefaultTuningStrategy                 = "min_mc_random_greedy"
	DefaultProfilerClear            bool  = true
	DefaultReportInterval           int64 = 10000
	DefaultStableSteps              int64 = 5
	DefaultShardShift                int64 = 0
)

// FromEnv loads a Config from the process environment, falling back to
// the documented defaults for any variable that is unset or malformed.
func FromEnv() Config {
	return Config{
		ProfilerBucketSize:       readInt64("CACHE_PROFILER_BUCKET_SIZE", DefaultProfilerBucketSize),
		ProfilerMaxReuseDist:     readInt64("CACHE_PROFILER_MAX_REUSE_DIST", DefaultProfilerMaxReuseDist),
		ProfilerSamplingInterval: readInt64("CACHE_PROFILER_SAMPLING_INTERVAL", DefaultProfilerSamplingInterval),
		TuningInterval:           readInt64("CACHE_TUNING_INTERVAL", DefaultTuningInterval),
		TotalSize:                readInt64("CACHE_TOTAL_SIZE", DefaultTotalSize),
		MinSize:                  readInt64("CACHE_MIN_SIZE", DefaultMinSize),
		TuningUnit:               readInt64("CACHE_TUNING_UNIT", DefaultTuningUnit),
		TuningStrategy:           readString("CACHE_TUNING_STRATEGY", DefaultTuningStrategy),
		ProfilerClear:            readBool("CACHE_PROFLER_CLEAR", DefaultProfilerClear),
		ReportInterval:           readInt64("CACHE_REPORT_INTERVAL", DefaultReportInterval),
		StableSteps:              readInt64("CACHE_STABLE_STEPS", DefaultStableSteps),
		ShardShift:               readInt64("CACHE_SHARD_SHIFT", DefaultShardShift),
	}
}

func readInt64(name string, def int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func readBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func readString(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
