package pools

import "testing"

func TestApplyGCConfigAcceptsZeroFields(t *testing.T) {
	// GOGC/MemoryLimit/MinRetainExtra of zero must all be no-ops, not panics.
	ApplyGCConfig(GCConfig{})
}

func TestOptimizeForHighThroughputAndLowLatencyRun(t *testing.T) {
	OptimizeForHighThroughput()
	OptimizeForLowLatency()
}

func TestGetGCStatsReportsGoroutineCount(t *testing.T) {
	stats := GetGCStats()
	if stats.NumGoroutine < 1 {
		t.Fatalf("NumGoroutine = %d, want at least 1", stats.NumGoroutine)
	}
}
