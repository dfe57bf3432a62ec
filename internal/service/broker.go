package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"trading_core/internal/domain"
	"trading_core/internal/engine"
	"trading_core/internal/event"
	"trading_core/internal/execution"
	"trading_core/internal/orderbook"

	"github.com/shopspring/decimal"
)

// Options configures a Broker. The zero value is usable.
type Options struct {
	AutoMatch bool
	Clock     domain.Clock
	Logger    *slog.Logger
	Metrics   domain.Recorder
	Publisher event.Publisher
}

// Broker owns the account and instrument registries and the order book,
// validates placements and routes them to matching.
type Broker struct {
	mu         sync.RWMutex
	accounts   map[string]*domain.Account
	securities map[string]*domain.Instrument
	trigger    func(symbol string) bool

	book      *orderbook.Book
	matcher   *engine.Matcher
	clock     domain.Clock
	autoMatch bool
	publisher event.Publisher
	metrics   domain.Recorder
	logger    *slog.Logger
}

// NewBroker creates a broker with empty registries.
func NewBroker(opts Options) *Broker {
	if opts.Clock == nil {
		opts.Clock = domain.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = domain.NopRecorder{}
	}
	settler := execution.NewSettler(opts.Logger, opts.Metrics)
	return &Broker{
		accounts:   make(map[string]*domain.Account),
		securities: make(map[string]*domain.Instrument),
		book:       orderbook.NewBook(opts.Clock, opts.Logger),
		matcher:    engine.NewMatcher(settler, opts.Publisher, opts.Metrics, opts.Logger),
		clock:      opts.Clock,
		autoMatch:  opts.AutoMatch,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
}

// SetTrigger routes auto-matching through fn (normally Sweeper.Trigger)
// instead of matching synchronously inside PlaceOrder.
func (b *Broker) SetTrigger(fn func(symbol string) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trigger = fn
}

// Book exposes the order book for introspection.
func (b *Broker) Book() *orderbook.Book {
	return b.book
}

// AddAccount registers acc. Returns false if the name is taken.
func (b *Broker) AddAccount(acc *domain.Account) bool {
	if acc == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.accounts[acc.Name()]; ok {
		b.logger.Warn("Account already exists", slog.String("account", acc.Name()))
		return false
	}
	b.accounts[acc.Name()] = acc
	b.logger.Info("Account added", slog.String("account", acc.Name()))
	return true
}

// AddAccounts registers each account and reports per account whether it was added.
func (b *Broker) AddAccounts(accounts ...*domain.Account) []bool {
	out := make([]bool, len(accounts))
	for i, acc := range accounts {
		out[i] = b.AddAccount(acc)
	}
	return out
}

// AddSecurity registers inst and its order-book partition.
func (b *Broker) AddSecurity(inst *domain.Instrument) bool {
	if inst == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.securities[inst.Symbol()]; ok {
		return false
	}
	b.securities[inst.Symbol()] = inst
	b.book.AddSecurity(inst.Symbol())
	if p, ok := b.book.Partition(inst.Symbol()); ok {
		inst.Attach(p)
	}
	b.logger.Info("Security added",
		slog.String("symbol", inst.Symbol()),
		slog.String("class", inst.Kind().Class()),
	)
	return true
}

// Account looks up a registered account.
func (b *Broker) Account(name string) (*domain.Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	acc, ok := b.accounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, name)
	}
	return acc, nil
}

// Security looks up a registered instrument.
func (b *Broker) Security(symbol string) (*domain.Instrument, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	inst, ok := b.securities[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSecurityNotFound, symbol)
	}
	return inst, nil
}

// Accounts returns every registered account sorted by name.
func (b *Broker) Accounts() []*domain.Account {
	b.mu.RLock()
	result := make([]*domain.Account, 0, len(b.accounts))
	for _, acc := range b.accounts {
		result = append(result, acc)
	}
	b.mu.RUnlock()

	domain.SortAccounts(result)
	return result
}

// Securities returns every registered instrument sorted by symbol.
func (b *Broker) Securities() []*domain.Instrument {
	b.mu.RLock()
	result := make([]*domain.Instrument, 0, len(b.securities))
	for _, inst := range b.securities {
		result = append(result, inst)
	}
	b.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol() < result[j].Symbol()
	})
	return result
}

// Orders returns every admitted order.
func (b *Broker) Orders() []*domain.Order {
	return b.book.AllOrders()
}

// OpenOrders returns every order open now.
func (b *Broker) OpenOrders() []*domain.Order {
	return b.book.OpenOrders()
}

// PlaceOrder validates o and admits it to the book.
// A duplicate placement returns o without changing any state.
func (b *Broker) PlaceOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := b.clock.Now()
	if err := b.validate(o, now); err != nil {
		b.metrics.RecordOrderRejected()
		b.logger.Warn("Order rejected", slog.Any("error", err))
		return nil, err
	}

	st := domain.OrderState{PlacedAt: now}
	if o.ExpiresAt != nil {
		st.ExpiresAt = *o.ExpiresAt
	}
	added, err := b.book.AddOrder(o, st)
	if err != nil {
		b.metrics.RecordOrderRejected()
		return nil, &domain.OrderPlacementError{Reason: err.Error(), Err: err}
	}
	if !added {
		return o, nil
	}

	o.Account.AddOrder(o)
	o.Instrument.AddOrder(o)
	b.metrics.RecordOrderPlaced()
	b.publishOrder(o, event.OrderPlaced)

	if b.autoMatch {
		b.routeMatch(ctx, o.Symbol())
	}
	return o, nil
}

// PlaceOrderFor builds an order on a registered symbol and places it.
func (b *Broker) PlaceOrderFor(ctx context.Context, symbol string, acc *domain.Account, side domain.Side, typ domain.OrderType, quantity int64, price decimal.Decimal) (*domain.Order, error) {
	inst, err := b.Security(symbol)
	if err != nil {
		b.metrics.RecordOrderRejected()
		return nil, &domain.OrderPlacementError{
			Reason: fmt.Sprintf("the security '%s' is not tradable with this broker", symbol),
			Err:    err,
		}
	}
	return b.PlaceOrder(ctx, domain.NewOrder(acc, inst, side, typ, quantity, price))
}

func (b *Broker) routeMatch(ctx context.Context, symbol string) {
	b.mu.RLock()
	trigger := b.trigger
	b.mu.RUnlock()

	if trigger != nil && trigger(symbol) {
		return
	}
	if _, err := b.Match(ctx, symbol); err != nil {
		b.logger.Warn("Auto-match failed", slog.String("symbol", symbol), slog.Any("error", err))
	}
}

// Match runs one sweep of symbol.
func (b *Broker) Match(ctx context.Context, symbol string) (engine.SweepResult, error) {
	if err := ctx.Err(); err != nil {
		return engine.SweepResult{}, err
	}
	inst, err := b.Security(symbol)
	if err != nil {
		return engine.SweepResult{}, err
	}
	p, ok := b.book.Partition(symbol)
	if !ok {
		return engine.SweepResult{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedSecurity, symbol)
	}
	return b.matcher.Match(inst, p), nil
}

// MatchAll sweeps every instrument in symbol order.
func (b *Broker) MatchAll(ctx context.Context) []engine.SweepResult {
	var results []engine.SweepResult
	for _, inst := range b.Securities() {
		if ctx.Err() != nil {
			break
		}
		res, err := b.Match(ctx, inst.Symbol())
		if err != nil {
			continue
		}
		results = append(results, res)
	}
	return results
}

// CancelOrder retires an open order.
func (b *Broker) CancelOrder(ctx context.Context, id domain.OrderID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.book.Cancel(id); err != nil {
		return err
	}
	if o, ok := b.book.Order(id); ok {
		b.publishOrder(o, event.OrderCancelled)
	}
	b.logger.Info("Order cancelled", slog.String("order_id", string(id)))
	return nil
}

// State returns the lifecycle record of an admitted order.
func (b *Broker) State(id domain.OrderID) (domain.OrderState, bool) {
	return b.book.State(id)
}

func (b *Broker) publishOrder(o *domain.Order, status event.OrderStatus) {
	if b.publisher == nil {
		return
	}
	ev := event.AcquireOrderEvent()
	ev.Seq = event.NextSeq()
	ev.Ts = b.clock.Now()
	ev.OrderID = string(o.ID)
	ev.Symbol = o.Symbol()
	ev.Account = o.AccountName()
	ev.Side = string(o.Side)
	ev.Kind = string(o.Type)
	ev.Quantity = o.Quantity
	ev.Price = o.Price
	ev.Status = status

	b.publisher.Publish(ev)
	event.ReleaseOrderEvent(ev)
}
