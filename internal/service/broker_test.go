package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trading_core/internal/domain"
	"trading_core/internal/event"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestBroker(autoMatch bool) *Broker {
	return NewBroker(Options{
		AutoMatch: autoMatch,
		Clock:     &testClock{now: time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)},
	})
}

func TestBroker_AddAccount(t *testing.T) {
	b := newTestBroker(false)
	a := domain.NewAccount("a1")

	if !b.AddAccount(a) {
		t.Fatal("First AddAccount should return true")
	}
	if b.AddAccount(a) {
		t.Error("Duplicate AddAccount should return false")
	}
	if b.AddAccount(domain.NewAccount("a1")) {
		t.Error("Another account under a taken name should be rejected")
	}
	got, err := b.Account("a1")
	if err != nil || got != a {
		t.Errorf("Expected the registered account, got %v, %v", got, err)
	}
	if _, err := b.Account("missing"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestBroker_AddAccounts(t *testing.T) {
	b := newTestBroker(false)
	a, c := domain.NewAccount("a"), domain.NewAccount("b")
	b.AddAccount(c)

	returns := b.AddAccounts(a, c)

	if len(returns) != 2 || !returns[0] || returns[1] {
		t.Errorf("Expected [true false], got %v", returns)
	}
	accounts := b.Accounts()
	if len(accounts) != 2 || accounts[0] != a || accounts[1] != c {
		t.Error("Accounts should be sorted by name")
	}
}

func TestBroker_AddSecurity(t *testing.T) {
	b := newTestBroker(false)
	nvda := domain.NewStock("NVDA", dec("10"))

	if !b.AddSecurity(nvda) {
		t.Fatal("First AddSecurity should return true")
	}
	if b.AddSecurity(nvda) {
		t.Error("Duplicate AddSecurity should return false")
	}
	b.AddSecurity(domain.NewStock("AAPL", dec("5")))

	secs := b.Securities()
	if len(secs) != 2 || secs[0].Symbol() != "AAPL" {
		t.Errorf("Securities should be sorted by symbol, got %d items", len(secs))
	}
	if _, err := b.Security("MSFT"); !errors.Is(err, domain.ErrSecurityNotFound) {
		t.Errorf("Expected ErrSecurityNotFound, got %v", err)
	}
	if _, ok := b.Book().Partition("NVDA"); !ok {
		t.Error("AddSecurity should register the book partition")
	}
}

func TestBroker_PlaceOrderValidation(t *testing.T) {
	b := newTestBroker(false)
	acc := domain.NewAccountWithBalance("alice", dec("100"))
	inst := domain.NewStock("ACME", dec("10"))
	b.AddAccount(acc)
	b.AddSecurity(inst)

	past := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	impostor := domain.NewAccount("alice")
	unlisted := domain.NewStock("NOPE", dec("1"))

	tests := []struct {
		name  string
		order *domain.Order
		cause error
	}{
		{"nil order", nil, nil},
		{"order without id", &domain.Order{Account: acc, Instrument: inst, Quantity: 1}, nil},
		{"nil account", domain.NewOrder(nil, inst, domain.SideBuy, domain.OrderTypeLimit, 1, dec("1")), nil},
		{"unregistered account object", domain.NewOrder(impostor, inst, domain.SideBuy, domain.OrderTypeLimit, 1, dec("1")), domain.ErrAccountNotFound},
		{"nil instrument", domain.NewOrder(acc, nil, domain.SideBuy, domain.OrderTypeLimit, 1, dec("1")), nil},
		{"unregistered instrument", domain.NewOrder(acc, unlisted, domain.SideBuy, domain.OrderTypeLimit, 1, dec("1")), domain.ErrSecurityNotFound},
		{"zero quantity", domain.NewOrder(acc, inst, domain.SideBuy, domain.OrderTypeLimit, 0, dec("1")), nil},
		{"negative price", domain.NewOrder(acc, inst, domain.SideBuy, domain.OrderTypeLimit, 1, dec("-0.01")), nil},
		{"expiry in the past", domain.NewOrder(acc, inst, domain.SideBuy, domain.OrderTypeLimit, 1, dec("1")).WithExpiry(past), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.PlaceOrder(context.Background(), tt.order)
			if !errors.Is(err, domain.ErrOrderPlacement) {
				t.Fatalf("Expected ErrOrderPlacement, got %v", err)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("Expected cause %v, got %v", tt.cause, err)
			}
		})
	}

	if n := len(b.Orders()); n != 0 {
		t.Errorf("Rejected orders must not be admitted, got %d", n)
	}
	if len(acc.Orders()) != 0 || len(inst.Orders()) != 0 {
		t.Error("Rejected orders must not be recorded")
	}
}

func TestBroker_ValidationOrder(t *testing.T) {
	b := newTestBroker(false)
	inst := domain.NewStock("ACME", dec("10"))
	b.AddSecurity(inst)

	// Unregistered account and bad quantity: the account check runs first
	o := domain.NewOrder(domain.NewAccount("ghost"), inst, domain.SideBuy, domain.OrderTypeLimit, 0, dec("1"))
	_, err := b.PlaceOrder(context.Background(), o)

	var ope *domain.OrderPlacementError
	if !errors.As(err, &ope) {
		t.Fatalf("Expected OrderPlacementError, got %v", err)
	}
	if ope.Reason != "the specified account is not managed by the broker" {
		t.Errorf("Unexpected reason: %q", ope.Reason)
	}
}

func TestBroker_PlaceOrderFor(t *testing.T) {
	b := newTestBroker(false)
	acc := domain.NewAccount("alice")
	b.AddAccount(acc)
	b.AddSecurity(domain.NewStock("ACME", dec("10")))

	o, err := b.PlaceOrderFor(context.Background(), "ACME", acc, domain.SideBuy, domain.OrderTypeLimit, 3, dec("9"))
	if err != nil {
		t.Fatalf("PlaceOrderFor failed: %v", err)
	}
	st, ok := b.State(o.ID)
	if !ok || st.PlacedAt.IsZero() || st.Executed {
		t.Errorf("Expected stamped open state, got %+v", st)
	}

	_, err = b.PlaceOrderFor(context.Background(), "NOPE", acc, domain.SideBuy, domain.OrderTypeLimit, 1, dec("1"))
	if !errors.Is(err, domain.ErrOrderPlacement) || !errors.Is(err, domain.ErrSecurityNotFound) {
		t.Errorf("Expected placement error for unknown symbol, got %v", err)
	}
}

func TestBroker_DuplicatePlacement(t *testing.T) {
	b := newTestBroker(false)
	acc := domain.NewAccount("alice")
	inst := domain.NewStock("ACME", dec("10"))
	b.AddAccount(acc)
	b.AddSecurity(inst)
	o := domain.NewOrder(acc, inst, domain.SideBuy, domain.OrderTypeLimit, 1, dec("10"))

	if _, err := b.PlaceOrder(context.Background(), o); err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	first, _ := b.State(o.ID)

	again, err := b.PlaceOrder(context.Background(), o)
	if err != nil || again != o {
		t.Fatalf("Duplicate placement should return the order, got %v", err)
	}
	second, _ := b.State(o.ID)

	if len(b.Orders()) != 1 || len(acc.Orders()) != 1 || len(inst.Orders()) != 1 {
		t.Error("Duplicate placement must not grow any history")
	}
	if !first.PlacedAt.Equal(second.PlacedAt) {
		t.Error("Duplicate placement must not restamp the order")
	}
}

func TestBroker_AutoMatch(t *testing.T) {
	var events []event.Type
	b := NewBroker(Options{
		AutoMatch: true,
		Publisher: event.PublisherFunc(func(ev event.Event) { events = append(events, ev.GetType()) }),
	})
	alice := domain.NewAccount("alice")
	_ = alice.Grant("ACME", 10)
	bob := domain.NewAccountWithBalance("bob", dec("100"))
	b.AddAccounts(alice, bob)
	b.AddSecurity(domain.NewStock("ACME", dec("10")))
	ctx := context.Background()

	sell, err := b.PlaceOrderFor(ctx, "ACME", alice, domain.SideSell, domain.OrderTypeLimit, 10, dec("10"))
	if err != nil {
		t.Fatalf("Sell placement failed: %v", err)
	}
	buy, err := b.PlaceOrderFor(ctx, "ACME", bob, domain.SideBuy, domain.OrderTypeLimit, 10, dec("10"))
	if err != nil {
		t.Fatalf("Buy placement failed: %v", err)
	}

	if len(b.OpenOrders()) != 0 {
		t.Errorf("Both orders should be executed, %d open", len(b.OpenOrders()))
	}
	for _, o := range []*domain.Order{sell, buy} {
		if st, _ := b.State(o.ID); !st.Executed {
			t.Errorf("Order %s not executed", o.ID)
		}
	}
	if !bob.Balance().IsZero() || !alice.Balance().Equal(dec("100")) {
		t.Errorf("Unexpected balances: bob=%s alice=%s", bob.Balance(), alice.Balance())
	}
	if bob.Holding("ACME") != 10 || alice.Holding("ACME") != 0 {
		t.Error("Holdings not moved")
	}

	want := []event.Type{event.TypeOrder, event.TypeOrder, event.TypeTrade}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("Expected events %v, got %v", want, events)
	}
}

func TestBroker_AutoMatchUsesTrigger(t *testing.T) {
	b := newTestBroker(true)
	acc := domain.NewAccount("alice")
	b.AddAccount(acc)
	b.AddSecurity(domain.NewStock("ACME", dec("10")))

	var triggered []string
	b.SetTrigger(func(symbol string) bool {
		triggered = append(triggered, symbol)
		return true
	})

	if _, err := b.PlaceOrderFor(context.Background(), "ACME", acc, domain.SideBuy, domain.OrderTypeLimit, 1, dec("1")); err != nil {
		t.Fatalf("PlaceOrderFor failed: %v", err)
	}
	if len(triggered) != 1 || triggered[0] != "ACME" {
		t.Errorf("Expected one ACME trigger, got %v", triggered)
	}
}

func TestBroker_CancelOrder(t *testing.T) {
	b := newTestBroker(false)
	acc := domain.NewAccount("alice")
	b.AddAccount(acc)
	b.AddSecurity(domain.NewStock("ACME", dec("10")))
	ctx := context.Background()

	o, _ := b.PlaceOrderFor(ctx, "ACME", acc, domain.SideBuy, domain.OrderTypeLimit, 1, dec("9"))
	if err := b.CancelOrder(ctx, o.ID); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if len(b.OpenOrders()) != 0 || len(b.Orders()) != 1 {
		t.Error("Cancelled order leaves the open set but stays in the book")
	}
	if err := b.CancelOrder(ctx, o.ID); !errors.Is(err, domain.ErrOrderNotOpen) {
		t.Errorf("Expected ErrOrderNotOpen, got %v", err)
	}
}

func TestBroker_MarketPrice(t *testing.T) {
	b := newTestBroker(false)
	acc := domain.NewAccount("alice")
	b.AddAccount(acc)
	b.AddSecurity(domain.NewStock("ACME", dec("10")))
	ctx := context.Background()

	mp, err := b.MarketPrice(ctx, "ACME")
	if err != nil {
		t.Fatalf("MarketPrice failed: %v", err)
	}
	if !mp.Last.Equal(dec("10")) || mp.Bid.Valid || mp.Ask.Valid || mp.Spread.Valid {
		t.Errorf("Empty book should only quote last, got %+v", mp)
	}

	b.PlaceOrderFor(ctx, "ACME", acc, domain.SideBuy, domain.OrderTypeLimit, 1, dec("9.5"))
	b.PlaceOrderFor(ctx, "ACME", acc, domain.SideSell, domain.OrderTypeLimit, 1, dec("10.25"))

	mp, _ = b.MarketPrice(ctx, "ACME")
	if !mp.Bid.Valid || !mp.Bid.Decimal.Equal(dec("9.5")) {
		t.Errorf("Expected bid 9.5, got %+v", mp.Bid)
	}
	if !mp.Spread.Valid || !mp.Spread.Decimal.Equal(dec("0.75")) {
		t.Errorf("Expected spread 0.75, got %+v", mp.Spread)
	}
	if _, err := b.MarketPrice(ctx, "NOPE"); !errors.Is(err, domain.ErrSecurityNotFound) {
		t.Errorf("Expected ErrSecurityNotFound, got %v", err)
	}
}

func TestBroker_SpreadSweepsCrossedBook(t *testing.T) {
	b := newTestBroker(true)
	seller := domain.NewAccount("alice")
	buyer := domain.NewAccountWithBalance("bob", dec("100"))
	b.AddAccounts(seller, buyer)
	b.AddSecurity(domain.NewStock("ACME", dec("10")))
	_ = seller.Grant("ACME", 5)
	ctx := context.Background()

	// A trigger that only queues leaves the book crossed after placement
	b.SetTrigger(func(string) bool { return true })

	b.PlaceOrderFor(ctx, "ACME", seller, domain.SideSell, domain.OrderTypeLimit, 5, dec("10"))
	b.PlaceOrderFor(ctx, "ACME", buyer, domain.SideBuy, domain.OrderTypeLimit, 5, dec("12"))

	if raw, ok := b.Book().Spread("ACME"); !ok || !raw.Equal(dec("-2")) {
		t.Fatalf("Expected raw spread -2, got %s (%v)", raw, ok)
	}

	spread, ok, err := b.Spread(ctx, "ACME")
	if err != nil {
		t.Fatalf("Spread failed: %v", err)
	}
	if ok {
		t.Errorf("Expected an empty book after the sweep, got spread %s", spread)
	}
	if buyer.Holding("ACME") != 5 || seller.Holding("ACME") != 0 {
		t.Errorf("Expected holdings 0/5, got %d/%d", seller.Holding("ACME"), buyer.Holding("ACME"))
	}
	if _, _, err := b.Spread(ctx, "NOPE"); !errors.Is(err, domain.ErrSecurityNotFound) {
		t.Errorf("Expected ErrSecurityNotFound, got %v", err)
	}
}

func TestBroker_MarketPriceSweepsCrossedBook(t *testing.T) {
	b := newTestBroker(true)
	seller := domain.NewAccount("alice")
	buyer := domain.NewAccountWithBalance("bob", dec("100"))
	b.AddAccounts(seller, buyer)
	b.AddSecurity(domain.NewStock("ACME", dec("10")))
	_ = seller.Grant("ACME", 8)
	ctx := context.Background()
	b.SetTrigger(func(string) bool { return true })

	// 3 of the ask stay on the book once the crossed part settles
	b.PlaceOrderFor(ctx, "ACME", seller, domain.SideSell, domain.OrderTypeLimit, 3, dec("13"))
	b.PlaceOrderFor(ctx, "ACME", seller, domain.SideSell, domain.OrderTypeLimit, 5, dec("10"))
	b.PlaceOrderFor(ctx, "ACME", buyer, domain.SideBuy, domain.OrderTypeLimit, 5, dec("12"))

	mp, err := b.MarketPrice(ctx, "ACME")
	if err != nil {
		t.Fatalf("MarketPrice failed: %v", err)
	}
	if mp.Spread.Valid || mp.Bid.Valid {
		t.Errorf("Expected no bid after the sweep, got %+v", mp)
	}
	if !mp.Ask.Valid || !mp.Ask.Decimal.Equal(dec("13")) {
		t.Errorf("Expected ask 13, got %+v", mp.Ask)
	}
	if len(b.OpenOrders()) != 1 {
		t.Errorf("Expected one resting ask, got %d", len(b.OpenOrders()))
	}
}

func TestBroker_CanceledContext(t *testing.T) {
	b := newTestBroker(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.PlaceOrder(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBroker_ConcurrentTradingConservesTotals(t *testing.T) {
	b := newTestBroker(true)
	const traders = 8

	var accounts []*domain.Account
	for i := 0; i < traders; i++ {
		acc := domain.NewAccountWithBalance(fmt.Sprintf("t%d", i), dec("1000"))
		_ = acc.Grant("ACME", 50)
		accounts = append(accounts, acc)
		b.AddAccount(acc)
	}
	b.AddSecurity(domain.NewStock("ACME", dec("10")))

	var wg sync.WaitGroup
	for i, acc := range accounts {
		wg.Add(1)
		go func(i int, acc *domain.Account) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				side := domain.SideBuy
				if (i+j)%2 == 0 {
					side = domain.SideSell
				}
				px := decimal.NewFromInt(int64(9 + j%3))
				_, _ = b.PlaceOrderFor(context.Background(), "ACME", acc, side, domain.OrderTypeLimit, 1, px)
			}
		}(i, acc)
	}
	wg.Wait()
	b.MatchAll(context.Background())

	cash := decimal.Zero
	var shares int64
	for _, acc := range accounts {
		if acc.Balance().IsNegative() || acc.Holding("ACME") < 0 {
			t.Fatalf("Account %s went negative", acc.Name())
		}
		cash = cash.Add(acc.Balance())
		shares += acc.Holding("ACME")
	}
	if !cash.Equal(dec("8000")) {
		t.Errorf("Cash must be conserved, got %s", cash)
	}
	if shares != traders*50 {
		t.Errorf("Shares must be conserved, got %d", shares)
	}
}
