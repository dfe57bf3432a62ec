package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trading_core/internal/domain"
	"trading_core/internal/infra"
	"trading_core/internal/service"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := `
broker:
  auto_match: false
  sweep_interval_ms: 0
storage:
  path: ` + filepath.Join(dir, "venue.db") + `
logging:
  level: error
  dir: ` + filepath.Join(dir, "logs") + `
seed:
  accounts:
    - name: alice
      balance: "500"
      holdings:
        ACME: 10
    - name: bob
      balance: "500"
  instruments:
    - symbol: ACME
      class: stock
      price: "10"
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestBootstrap_SeedAndRestore(t *testing.T) {
	ctx := context.Background()
	path := writeConfig(t)

	first := NewBootstrap()
	if err := first.Initialize(ctx, path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	alice, err := first.Broker.Account("alice")
	if err != nil {
		t.Fatalf("Expected seeded alice: %v", err)
	}
	if alice.Holding("ACME") != 10 {
		t.Errorf("Expected 10 ACME, got %d", alice.Holding("ACME"))
	}
	bob, _ := first.Broker.Account("bob")

	if _, err := first.Broker.PlaceOrderFor(ctx, "ACME", alice, domain.SideSell, domain.OrderTypeLimit, 4, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if _, err := first.Broker.PlaceOrderFor(ctx, "ACME", bob, domain.SideBuy, domain.OrderTypeLimit, 4, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if got := first.Broker.MatchAll(ctx); len(got) != 1 || got[0].Settled() != 1 {
		t.Fatalf("Expected one settled trade, got %+v", got)
	}
	if err := first.Snapshotter.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first.Storage.Close()

	// A second start restores the traded state instead of reseeding
	second := NewBootstrap()
	if err := second.Initialize(ctx, path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { second.Storage.Close() })

	alice, _ = second.Broker.Account("alice")
	bob, _ = second.Broker.Account("bob")
	if alice.Holding("ACME") != 6 || bob.Holding("ACME") != 4 {
		t.Errorf("Expected holdings 6/4, got %d/%d", alice.Holding("ACME"), bob.Holding("ACME"))
	}
	if !bob.Balance().Equal(decimal.NewFromInt(460)) {
		t.Errorf("Expected bob balance 460, got %s", bob.Balance())
	}
	if len(second.Broker.Orders()) != 2 {
		t.Errorf("Expected 2 restored orders, got %d", len(second.Broker.Orders()))
	}

	trades, err := second.Storage.RecentTrades(ctx, "ACME", 10)
	if err != nil || len(trades) != 1 {
		t.Errorf("Expected 1 journaled trade, got %d (%v)", len(trades), err)
	}
}

func TestSeed_SkipsExisting(t *testing.T) {
	cfg := infra.DefaultConfig()
	cfg.Seed.Accounts = []infra.SeedAccount{{Name: "carol", Balance: decimal.NewFromInt(1)}}
	cfg.Seed.Instruments = []infra.SeedInstrument{{Symbol: "T10", Class: domain.ClassBond, Price: decimal.NewFromInt(99), FaceValue: decimal.NewFromInt(1000)}}

	broker := service.NewBroker(service.Options{})
	existing := domain.NewAccountWithBalance("carol", decimal.NewFromInt(42))
	broker.AddAccount(existing)

	if err := Seed(broker, &cfg); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	acc, _ := broker.Account("carol")
	if acc != existing || !acc.Balance().Equal(decimal.NewFromInt(42)) {
		t.Errorf("Expected existing carol untouched, got %s", acc.Balance())
	}
	inst, err := broker.Security("T10")
	if err != nil {
		t.Fatalf("Expected seeded T10: %v", err)
	}
	if _, ok := inst.Kind().(domain.Bond); !ok {
		t.Errorf("Expected bond kind, got %T", inst.Kind())
	}
}
