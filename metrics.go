package simidx

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	RecordInsert(duration time.Duration, err error)

	// RecordBulkLoad is called after each bulk load.
	// count is the number of objects handed in.
	RecordBulkLoad(count int, duration time.Duration, err error)

	// RecordSearch is called after each query.
	// k is the number of neighbors requested and zero for range queries.
	RecordSearch(k int, stats SearchStats, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)                   {}
func (NoopMetricsCollector) RecordBulkLoad(int, time.Duration, error)            {}
func (NoopMetricsCollector) RecordSearch(int, SearchStats, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)                   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	BulkLoadCount    atomic.Int64
	BulkLoadItems    atomic.Int64
	BulkLoadErrors   atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	NodesRead        atomic.Int64
	Distances        atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordBulkLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBulkLoad(count int, _ time.Duration, err error) {
	b.BulkLoadCount.Add(1)
	b.BulkLoadItems.Add(int64(count))
	if err != nil {
		b.BulkLoadErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, stats SearchStats, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.NodesRead.Add(int64(stats.NodesRead))
	b.Distances.Add(int64(stats.Distances))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		BulkLoadCount:  b.BulkLoadCount.Load(),
		BulkLoadItems:  b.BulkLoadItems.Load(),
		BulkLoadErrors: b.BulkLoadErrors.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		NodesRead:      b.NodesRead.Load(),
		Distances:      b.Distances.Load(),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	BulkLoadCount  int64
	BulkLoadItems  int64
	BulkLoadErrors int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	NodesRead      int64
	Distances      int64
	DeleteCount    int64
	DeleteErrors   int64
}
