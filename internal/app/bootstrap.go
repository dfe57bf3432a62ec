package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trading_core/internal/domain"
	"trading_core/internal/engine"
	"trading_core/internal/event"
	"trading_core/internal/infra"
	"trading_core/internal/infra/feed"
	"trading_core/internal/infra/storage"
	"trading_core/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config      *infra.Config
	Logger      *slog.Logger
	Metrics     *infra.Metrics
	Storage     *storage.Storage
	Hub         *feed.Hub
	Broker      *service.Broker
	Sweeper     *engine.Sweeper
	Snapshotter *storage.Snapshotter
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires storage, the feed, the broker and the sweeper.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	slog.Info("🚀 Bootstrapping trading core...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)
	b.Metrics = infra.GlobalMetrics

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Trade feed and event fan-out
	publishers := event.Fanout{store}
	if cfg.Feed.Enabled {
		b.Hub = feed.NewHub(b.Metrics, b.Logger)
		publishers = append(publishers, b.Hub)
	}

	// 5. Broker
	b.Broker = service.NewBroker(service.Options{
		AutoMatch: cfg.Broker.AutoMatch,
		Logger:    b.Logger,
		Metrics:   b.Metrics,
		Publisher: publishers,
	})

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		if err := b.Broker.Restore(ctx, snap); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		slog.Info("✅ State restored",
			slog.Time("taken_at", snap.TakenAt),
			slog.Int("orders", len(snap.Orders)),
		)
	}
	if err := Seed(b.Broker, cfg); err != nil {
		return err
	}

	// 6. Sweeper & snapshot loop
	b.Sweeper = engine.NewSweeper(
		b.Broker,
		cfg.Broker.InboxSize,
		time.Duration(cfg.Broker.SweepIntervalMS)*time.Millisecond,
		cfg.Broker.DumpFile,
		b.Logger,
	)
	b.Broker.SetTrigger(b.Sweeper.Trigger)
	b.Snapshotter = storage.NewSnapshotter(b.Broker.Snapshot, store, cfg.Storage.SnapshotIntervalSec, b.Logger)
	slog.Info("✅ Broker ready",
		slog.Int("accounts", len(b.Broker.Accounts())),
		slog.Int("securities", len(b.Broker.Securities())),
	)

	return nil
}

// Seed registers the configured accounts and instruments that are not present yet.
// Restored state always wins over the seed.
func Seed(broker *service.Broker, cfg *infra.Config) error {
	for _, si := range cfg.Seed.Instruments {
		if _, err := broker.Security(si.Symbol); err == nil {
			continue
		}
		kind, err := domain.KindFromClass(si.Class, si.FaceValue)
		if err != nil {
			return &domain.ConfigError{Field: "seed.instruments", Err: err}
		}
		broker.AddSecurity(domain.NewInstrument(si.Symbol, kind, si.Price))
	}

	for _, sa := range cfg.Seed.Accounts {
		if _, err := broker.Account(sa.Name); err == nil {
			continue
		}
		acc := domain.NewAccountWithBalance(sa.Name, sa.Balance)
		for sym, qty := range sa.Holdings {
			if err := acc.Grant(sym, qty); err != nil {
				return &domain.ConfigError{Field: "seed.accounts", Err: fmt.Errorf("%s: %w", sa.Name, err)}
			}
		}
		broker.AddAccount(acc)
	}
	return nil
}
