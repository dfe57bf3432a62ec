package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Target is what the sweeper drives, normally the broker.
type Target interface {
	Match(ctx context.Context, symbol string) (SweepResult, error)
	MatchAll(ctx context.Context) []SweepResult
}

const recentSweeps = 32

// Sweeper is the single goroutine that runs matching sweeps.
// Triggers are coalesced per symbol; a ticker runs a full sweep.
type Sweeper struct {
	target   Target
	inbox    chan string
	interval time.Duration
	dumpFile string
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	recent  []SweepResult
	sweeps  uint64
}

// NewSweeper creates a sweeper. interval <= 0 disables the periodic sweep.
func NewSweeper(target Target, inboxSize int, interval time.Duration, dumpFile string, logger *slog.Logger) *Sweeper {
	if inboxSize <= 0 {
		inboxSize = 1
	}
	if dumpFile == "" {
		dumpFile = "panic_dump.json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		target:   target,
		inbox:    make(chan string, inboxSize),
		interval: interval,
		dumpFile: dumpFile,
		logger:   logger,
		pending:  make(map[string]struct{}),
	}
}

// Trigger requests a sweep of symbol without blocking.
// Returns false when the inbox is full; the periodic sweep picks it up.
func (s *Sweeper) Trigger(symbol string) bool {
	s.mu.Lock()
	if _, ok := s.pending[symbol]; ok {
		s.mu.Unlock()
		return true
	}
	s.pending[symbol] = struct{}{}
	s.mu.Unlock()

	select {
	case s.inbox <- symbol:
		return true
	default:
		s.mu.Lock()
		delete(s.pending, symbol)
		s.mu.Unlock()
		s.logger.Warn("Sweep inbox full, deferring to periodic sweep", slog.String("symbol", symbol))
		return false
	}
}

// Run processes triggers until ctx is done. It MUST be run in a single goroutine.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("Sweeper started", slog.Duration("interval", s.interval))

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState(s.dumpFile)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopping...")
			return nil
		case symbol := <-s.inbox:
			s.mu.Lock()
			delete(s.pending, symbol)
			s.mu.Unlock()
			s.sweepOne(ctx, symbol)
		case <-tick:
			for _, res := range s.target.MatchAll(ctx) {
				s.record(res)
			}
		}
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, symbol string) {
	res, err := s.target.Match(ctx, symbol)
	if err != nil {
		s.logger.Warn("Triggered sweep failed", slog.String("symbol", symbol), slog.Any("error", err))
		return
	}
	s.record(res)
}

func (s *Sweeper) record(res SweepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweeps++
	s.recent = append(s.recent, res)
	if len(s.recent) > recentSweeps {
		s.recent = s.recent[len(s.recent)-recentSweeps:]
	}
}

// Recent returns the last sweep results, oldest first.
func (s *Sweeper) Recent() []SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SweepResult, len(s.recent))
	copy(out, s.recent)
	return out
}

// Sweeps returns the number of sweeps recorded since start.
func (s *Sweeper) Sweeps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

// DumpState writes the recent sweep results to a file (for post-mortem).
func (s *Sweeper) DumpState(filename string) {
	s.logger.Info("Dumping sweeper state...", slog.String("file", filename))

	s.mu.Lock()
	data := struct {
		Sweeps  uint64        `json:"sweeps"`
		Pending []string      `json:"pending"`
		Recent  []SweepResult `json:"recent"`
	}{
		Sweeps: s.sweeps,
		Recent: s.recent,
	}
	for sym := range s.pending {
		data.Pending = append(data.Pending, sym)
	}
	b, err := json.MarshalIndent(data, "", "  ")
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Failed to marshal state", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		s.logger.Error("Failed to write state dump", slog.Any("error", err))
	}
}
