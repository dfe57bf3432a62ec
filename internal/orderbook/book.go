package orderbook

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"trading_core/internal/domain"

	"github.com/shopspring/decimal"
)

// Book indexes admitted orders per instrument.
// All partitions share one StateTable, the canonical lifecycle store.
type Book struct {
	states *domain.StateTable
	clock  domain.Clock
	logger *slog.Logger

	mu         sync.RWMutex
	partitions map[string]*Partition
	owners     map[domain.OrderID]*Partition
}

// NewBook creates an empty book. A nil clock reads the wall clock.
func NewBook(clock domain.Clock, logger *slog.Logger) *Book {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{
		states:     domain.NewStateTable(),
		clock:      clock,
		logger:     logger,
		partitions: make(map[string]*Partition),
		owners:     make(map[domain.OrderID]*Partition),
	}
}

// AddSecurity registers a partition for symbol. Returns false if one exists.
func (b *Book) AddSecurity(symbol string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.partitions[symbol]; ok {
		return false
	}
	b.partitions[symbol] = newPartition(symbol, b.states, b.clock)
	return true
}

// Partition returns the partition of symbol.
func (b *Book) Partition(symbol string) (*Partition, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.partitions[symbol]
	return p, ok
}

func (b *Book) lookup(symbol string) (*Partition, error) {
	p, ok := b.Partition(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSecurityNotFound, symbol)
	}
	return p, nil
}

// Symbols returns the registered symbols in lexical order.
func (b *Book) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.partitions))
	for sym := range b.partitions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// AddOrder admits o with its initial lifecycle state.
// Returns false without error when o was already admitted.
func (b *Book) AddOrder(o *domain.Order, st domain.OrderState) (bool, error) {
	p, ok := b.Partition(o.Symbol())
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrUnsupportedSecurity, o.Symbol())
	}
	if !p.add(o, st) {
		return false, nil
	}

	b.mu.Lock()
	b.owners[o.ID] = p
	b.mu.Unlock()

	b.logger.Debug("Order admitted",
		slog.String("order_id", string(o.ID)),
		slog.String("symbol", p.symbol),
		slog.String("side", string(o.Side)),
	)
	return true, nil
}

// Restore re-admits a persisted order with its lifecycle state.
func (b *Book) Restore(o *domain.Order, st domain.OrderState) (bool, error) {
	return b.AddOrder(o, st)
}

// AllOrders returns every admitted order, symbols in lexical order, each in admission order.
func (b *Book) AllOrders() []*domain.Order {
	var out []*domain.Order
	for _, sym := range b.Symbols() {
		p, _ := b.Partition(sym)
		out = append(out, p.AllOrders()...)
	}
	return out
}

// Freeze runs fn with every partition locked, taken in symbol order, so no sweep
// can interleave. fn receives every admitted order as AllOrders would.
// fn must not call back into partitions; State and IsOpen are safe.
func (b *Book) Freeze(fn func(orders []*domain.Order)) {
	syms := b.Symbols()
	parts := make([]*Partition, 0, len(syms))
	for _, sym := range syms {
		if p, ok := b.Partition(sym); ok {
			parts = append(parts, p)
		}
	}

	for _, p := range parts {
		p.mu.Lock()
	}
	defer func() {
		for i := len(parts) - 1; i >= 0; i-- {
			parts[i].mu.Unlock()
		}
	}()

	var orders []*domain.Order
	for _, p := range parts {
		orders = append(orders, p.orders...)
	}
	fn(orders)
}

// AllOrdersFor returns every order admitted for symbol.
func (b *Book) AllOrdersFor(symbol string) ([]*domain.Order, error) {
	p, err := b.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return p.AllOrders(), nil
}

// OpenOrders returns every open order across partitions.
func (b *Book) OpenOrders() []*domain.Order {
	var out []*domain.Order
	for _, sym := range b.Symbols() {
		p, _ := b.Partition(sym)
		out = append(out, p.OpenOrders()...)
	}
	return out
}

// OpenOrdersFor returns the open orders of symbol.
func (b *Book) OpenOrdersFor(symbol string) ([]*domain.Order, error) {
	p, err := b.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return p.OpenOrders(), nil
}

// Bids returns the open BUY orders of symbol in price-time priority.
func (b *Book) Bids(symbol string) ([]*domain.Order, error) {
	p, err := b.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return p.Bids(), nil
}

// Asks returns the open SELL orders of symbol in price-time priority.
func (b *Book) Asks(symbol string) ([]*domain.Order, error) {
	p, err := b.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return p.Asks(), nil
}

func (b *Book) BestBid(symbol string) (decimal.Decimal, bool) {
	p, ok := b.Partition(symbol)
	if !ok {
		return decimal.Zero, false
	}
	return p.BestBid()
}

func (b *Book) BestAsk(symbol string) (decimal.Decimal, bool) {
	p, ok := b.Partition(symbol)
	if !ok {
		return decimal.Zero, false
	}
	return p.BestAsk()
}

// Spread is the raw spread of symbol; it can be negative until the book is swept.
func (b *Book) Spread(symbol string) (decimal.Decimal, bool) {
	p, ok := b.Partition(symbol)
	if !ok {
		return decimal.Zero, false
	}
	return p.Spread()
}

func (b *Book) BidPrices(symbol string) []decimal.Decimal {
	p, ok := b.Partition(symbol)
	if !ok {
		return nil
	}
	return p.BidPrices()
}

func (b *Book) AskPrices(symbol string) []decimal.Decimal {
	p, ok := b.Partition(symbol)
	if !ok {
		return nil
	}
	return p.AskPrices()
}

// Cancel retires an open order. It stays in AllOrders and leaves the open set.
func (b *Book) Cancel(id domain.OrderID) error {
	b.mu.RLock()
	p, ok := b.owners[id]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err := p.cancel(id); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	return nil
}

// Order returns an admitted order by ID.
func (b *Book) Order(id domain.OrderID) (*domain.Order, bool) {
	b.mu.RLock()
	p, ok := b.owners[id]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.order(id)
}

// State returns the lifecycle record of an admitted order.
func (b *Book) State(id domain.OrderID) (domain.OrderState, bool) {
	return b.states.Get(id)
}

// IsOpen reports whether the order is open now.
func (b *Book) IsOpen(id domain.OrderID) bool {
	st, ok := b.states.Get(id)
	return ok && st.IsOpen(b.clock.Now())
}

// Len returns the number of admitted orders.
func (b *Book) Len() int {
	return b.states.Len()
}
