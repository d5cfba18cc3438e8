package cortexheap

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting heap metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAlloc is called after each allocation.
	// err is nil if successful.
	RecordAlloc(layout Layout, duration time.Duration, err error)

	// RecordDealloc is called for each deallocation (a no-op on the heap itself).
	RecordDealloc(layout Layout)

	// RecordOOM is called when an allocation fails for lack of memory,
	// before the OOM handler runs.
	RecordOOM(layout Layout, remaining uint32)

	// RecordDump is called after each heap image write.
	RecordDump(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAlloc(Layout, time.Duration, error) {}
func (NoopMetricsCollector) RecordDealloc(Layout)                     {}
func (NoopMetricsCollector) RecordOOM(Layout, uint32)                 {}
func (NoopMetricsCollector) RecordDump(int64, time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and fixture reports without external dependencies.
type BasicMetricsCollector struct {
	AllocCount      atomic.Int64
	AllocErrors     atomic.Int64
	AllocBytes      atomic.Int64
	AllocTotalNanos atomic.Int64
	DeallocCount    atomic.Int64
	DeallocBytes    atomic.Int64
	OOMCount        atomic.Int64
	DumpCount       atomic.Int64
	DumpErrors      atomic.Int64
	DumpBytes       atomic.Int64
}

// RecordAlloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAlloc(layout Layout, duration time.Duration, err error) {
	b.AllocCount.Add(1)
	b.AllocTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllocErrors.Add(1)
		return
	}
	b.AllocBytes.Add(int64(layout.Size))
}

// RecordDealloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDealloc(layout Layout) {
	b.DeallocCount.Add(1)
	b.DeallocBytes.Add(int64(layout.Size))
}

// RecordOOM implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOOM(Layout, uint32) {
	b.OOMCount.Add(1)
}

// RecordDump implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDump(bytes int64, _ time.Duration, err error) {
	b.DumpCount.Add(1)
	if err != nil {
		b.DumpErrors.Add(1)
		return
	}
	b.DumpBytes.Add(bytes)
}

// GetStats returns a snapshot of the collected metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	stats := BasicMetricsStats{
		AllocCount:   b.AllocCount.Load(),
		AllocErrors:  b.AllocErrors.Load(),
		AllocBytes:   b.AllocBytes.Load(),
		DeallocCount: b.DeallocCount.Load(),
		DeallocBytes: b.DeallocBytes.Load(),
		OOMCount:     b.OOMCount.Load(),
		DumpCount:    b.DumpCount.Load(),
		DumpErrors:   b.DumpErrors.Load(),
		DumpBytes:    b.DumpBytes.Load(),
	}
	if stats.AllocCount > 0 {
		stats.AllocAvgNanos = b.AllocTotalNanos.Load() / stats.AllocCount
	}
	return stats
}

// BasicMetricsStats is a point-in-time copy of BasicMetricsCollector.
type BasicMetricsStats struct {
	AllocCount    int64
	AllocErrors   int64
	AllocBytes    int64
	AllocAvgNanos int64
	DeallocCount  int64
	DeallocBytes  int64
	OOMCount      int64
	DumpCount     int64
	DumpErrors    int64
	DumpBytes     int64
}
