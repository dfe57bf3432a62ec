package domain

import (
	"context"
	"time"
)

// Clock abstracts time so that expiry and priority can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SnapshotRepository persists and loads broker snapshots.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// Recorder receives operational counters from the broker and the matcher.
type Recorder interface {
	RecordOrderPlaced()
	RecordOrderRejected()
	RecordTrade()
	RecordSettlementFailure()
	RecordSweep(latency time.Duration)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOrderPlaced()          {}
func (NopRecorder) RecordOrderRejected()        {}
func (NopRecorder) RecordTrade()                {}
func (NopRecorder) RecordSettlementFailure()    {}
func (NopRecorder) RecordSweep(_ time.Duration) {}
