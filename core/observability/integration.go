package observability

import (
	"fmt"

	"github.com/arcedge/bdrserver/core/pools"
)

// Observatory is the central observability hub: per-handler latency and
// bottleneck detection (PerformanceMonitor) plus a periodic snapshot of the
// BDR cache's and static pool's learning/retirement activity. Grounded on
// integration.go's Observatory/TraceHandler shape; the eBPF syscall tracer
// it wrapped has no analog in a net.Conn-based engine (there is no bare fd
// to attach a tracer to) and is replaced with the two in-process counters
// this module actually produces.
type Observatory struct {
	Monitor *PerformanceMonitor
	bdr     *bdrSnapshot
	static  *staticSnapshot
	enabled bool
}

type bdrSnapshot struct {
	stabilized, demoted, evicted uint64
	currentBytes                 int64
}

type staticSnapshot struct {
	currentUsed, capacity int64
	retiredCount          uint64
}

// NewObservatory creates an Observatory with no cache snapshots recorded
// yet; RecordBDR/RecordStatic populate them.
func NewObservatory() *Observatory {
	return &Observatory{
		Monitor: NewPerformanceMonitor(),
		enabled: true,
	}
}

// TraceHandler wraps a handler with latency and error tracking.
func (o *Observatory) TraceHandler(name string, fn func() error) error {
	if !o.enabled {
		return fn()
	}

	startTime := o.Monitor.StartTrace()
	err := fn()
	o.Monitor.EndTrace(name, startTime, err != nil)
	return err
}

// RecordBDR snapshots a BDR cache's learning counters for the next report.
func (o *Observatory) RecordBDR(stabilized, demoted, evicted uint64, currentBytes int64) {
	o.bdr = &bdrSnapshot{stabilized: stabilized, demoted: demoted, evicted: evicted, currentBytes: currentBytes}
}

// RecordStatic snapshots the static pool's usage and retirement counters
// for the next report.
func (o *Observatory) RecordStatic(currentUsed, capacity int64, retiredCount uint64) {
	o.static = &staticSnapshot{currentUsed: currentUsed, capacity: capacity, retiredCount: retiredCount}
}

// GetFullReport generates a comprehensive human-readable report.
func (o *Observatory) GetFullReport() string {
	report := "Observatory report\n===================\n\n"

	report += "Handler performance:\n"
	bottlenecks := o.Monitor.GetBottlenecks()
	if len(bottlenecks) == 0 {
		report += "  no bottlenecks detected\n"
	} else {
		report += fmt.Sprintf("  %d bottlenecks detected:\n", len(bottlenecks))
		for i, b := range bottlenecks {
			report += fmt.Sprintf("    %d. [%s] %s - %s (severity: %d/10)\n",
				i+1, b.Type, b.Location, b.Details, b.Severity)
		}
	}

	if o.bdr != nil {
		report += fmt.Sprintf("\nBDR cache:\n  stabilized: %d\n  demoted:    %d\n  evicted:    %d\n  bytes:      %d\n",
			o.bdr.stabilized, o.bdr.demoted, o.bdr.evicted, o.bdr.currentBytes)
	}
	if o.static != nil {
		report += fmt.Sprintf("\nStatic pool:\n  used:     %d / %d bytes\n  retired:  %d\n",
			o.static.currentUsed, o.static.capacity, o.static.retiredCount)
	}

	report += "\nSystem metrics:\n"
	gc := pools.GetGCStats()
	report += fmt.Sprintf("  alloc:       %d MB\n", gc.AllocBytes/(1024*1024))
	report += fmt.Sprintf("  gc runs:     %d\n", gc.NumGC)
	report += fmt.Sprintf("  avg pause:   %s\n", gc.AvgPause)
	report += fmt.Sprintf("  goroutines:  %d\n", gc.NumGoroutine)

	return report
}

// Enable turns monitoring back on.
func (o *Observatory) Enable() {
	o.enabled = true
	o.Monitor.enabled.Store(true)
}

// Disable turns monitoring off; TraceHandler becomes a passthrough.
func (o *Observatory) Disable() {
	o.enabled = false
	o.Monitor.enabled.Store(false)
}

// Stop halts the Observatory's background bottleneck-detection loop.
func (o *Observatory) Stop() {
	o.Monitor.Stop()
}
