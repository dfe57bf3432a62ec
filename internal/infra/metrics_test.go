package infra

import (
	"testing"
	"time"

	"trading_core/internal/domain"
)

var _ domain.Recorder = (*Metrics)(nil)

func TestMetrics_RecordSweep(t *testing.T) {
	m := &Metrics{}

	m.RecordSweep(1000 * time.Nanosecond)
	m.RecordSweep(2000 * time.Nanosecond)
	m.RecordSweep(3000 * time.Nanosecond)

	snap := m.Snapshot()

	if snap.Sweeps != 3 {
		t.Errorf("Expected 3 sweeps, got %d", snap.Sweeps)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgSweepLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgSweepLatencyNs)
	}
}

func TestMetrics_OrderCounters(t *testing.T) {
	m := &Metrics{}

	m.RecordOrderPlaced()
	m.RecordOrderPlaced()
	m.RecordOrderRejected()
	m.RecordTrade()
	m.RecordSettlementFailure()

	snap := m.Snapshot()
	if snap.OrdersPlaced != 2 {
		t.Errorf("Expected 2 placed, got %d", snap.OrdersPlaced)
	}
	if snap.OrdersRejected != 1 {
		t.Errorf("Expected 1 rejected, got %d", snap.OrdersRejected)
	}
	if snap.TradesSettled != 1 || snap.SettlementFailures != 1 {
		t.Errorf("Expected 1 trade and 1 failure, got %d and %d", snap.TradesSettled, snap.SettlementFailures)
	}
}

func TestMetrics_FeedClients(t *testing.T) {
	m := &Metrics{}

	m.IncrementFeedClients()
	m.IncrementFeedClients()
	m.DecrementFeedClients()

	if got := m.Snapshot().FeedClients; got != 1 {
		t.Errorf("Expected 1 client, got %d", got)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordSweep(time.Microsecond)
	m.RecordOrderPlaced()
	m.IncrementFeedClients()

	m.Reset()
	snap := m.Snapshot()

	if snap.Sweeps != 0 {
		t.Error("Expected 0 sweeps after reset")
	}
	if snap.OrdersPlaced != 0 {
		t.Error("Expected 0 orders after reset")
	}
	if snap.FeedClients != 0 {
		t.Error("Expected 0 clients after reset")
	}
}
