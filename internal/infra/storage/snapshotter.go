package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trading_core/internal/domain"
)

// SnapshotSource produces the state to persist, normally Broker.Snapshot.
type SnapshotSource func() *domain.Snapshot

// Snapshotter periodically saves snapshots to a repository.
type Snapshotter struct {
	source   SnapshotSource
	repo     domain.SnapshotRepository
	interval time.Duration
	retryMin time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	lastAt  time.Time
	lastErr error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSnapshotter creates a snapshotter. intervalSec <= 0 defaults to 30 seconds.
func NewSnapshotter(source SnapshotSource, repo domain.SnapshotRepository, intervalSec int, logger *slog.Logger) *Snapshotter {
	interval := 30 * time.Second
	if intervalSec > 0 {
		interval = time.Duration(intervalSec) * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{
		source:   source,
		repo:     repo,
		interval: interval,
		retryMin: time.Second,
		logger:   logger,
	}
}

// Start begins the periodic save loop.
func (s *Snapshotter) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Snapshot loop panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Snapshot loop stopped")
				return
			case <-ticker.C:
				if err := s.Save(ctx); err != nil {
					s.logger.Warn("Periodic snapshot failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// Save takes one snapshot and persists it, retrying with exponential backoff.
func (s *Snapshotter) Save(ctx context.Context) error {
	snap := s.source()

	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s
			delay := s.retryMin << uint(i-1)
			s.logger.Info("Retrying snapshot save", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := s.repo.SaveSnapshot(ctx, snap)
		if err == nil {
			s.mu.Lock()
			s.lastAt, s.lastErr = snap.TakenAt, nil
			s.mu.Unlock()
			s.logger.Debug("Snapshot saved",
				slog.Int("accounts", len(snap.Accounts)),
				slog.Int("orders", len(snap.Orders)),
			)
			return nil
		}
		lastErr = err
		s.logger.Warn("Snapshot save attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}

	s.mu.Lock()
	s.lastErr = lastErr
	s.mu.Unlock()
	return lastErr
}

// Stop stops the loop and waits for it to exit.
func (s *Snapshotter) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}
}

// Last returns when the last successful snapshot was taken and the last save error.
func (s *Snapshotter) Last() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAt, s.lastErr
}
