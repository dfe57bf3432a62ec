package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight trading counters.
// Uses atomic operations for thread-safety and satisfies domain.Recorder.
type Metrics struct {
	// Counters
	ordersPlaced       atomic.Uint64
	ordersRejected     atomic.Uint64
	tradesSettled      atomic.Uint64
	settlementFailures atomic.Uint64

	// Sweep latency tracking
	sweepLatencySumNs atomic.Int64
	sweepCount        atomic.Uint64

	// Gauges
	feedClients atomic.Int32
}

// GlobalMetrics is the process-wide metrics instance.
var GlobalMetrics = &Metrics{}

func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

func (m *Metrics) RecordOrderRejected() {
	m.ordersRejected.Add(1)
}

func (m *Metrics) RecordTrade() {
	m.tradesSettled.Add(1)
}

func (m *Metrics) RecordSettlementFailure() {
	m.settlementFailures.Add(1)
}

// RecordSweep records one matching sweep with its latency.
func (m *Metrics) RecordSweep(latency time.Duration) {
	m.sweepCount.Add(1)
	m.sweepLatencySumNs.Add(latency.Nanoseconds())
}

// IncrementFeedClients increments connected feed clients by 1.
func (m *Metrics) IncrementFeedClients() {
	m.feedClients.Add(1)
}

// DecrementFeedClients decrements connected feed clients by 1.
func (m *Metrics) DecrementFeedClients() {
	m.feedClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersPlaced       uint64
	OrdersRejected     uint64
	TradesSettled      uint64
	SettlementFailures uint64
	Sweeps             uint64
	AvgSweepLatencyNs  int64
	FeedClients        int32
	Timestamp          time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.sweepCount.Load()
	if count > 0 {
		avgLatency = m.sweepLatencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersPlaced:       m.ordersPlaced.Load(),
		OrdersRejected:     m.ordersRejected.Load(),
		TradesSettled:      m.tradesSettled.Load(),
		SettlementFailures: m.settlementFailures.Load(),
		Sweeps:             count,
		AvgSweepLatencyNs:  avgLatency,
		FeedClients:        m.feedClients.Load(),
		Timestamp:          time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersPlaced.Store(0)
	m.ordersRejected.Store(0)
	m.tradesSettled.Store(0)
	m.settlementFailures.Store(0)
	m.sweepLatencySumNs.Store(0)
	m.sweepCount.Store(0)
	m.feedClients.Store(0)
}
