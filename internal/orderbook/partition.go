package orderbook

import (
	"sync"
	"time"

	"trading_core/internal/domain"

	"github.com/shopspring/decimal"
)

// Partition is the order book of one instrument.
// mu is held for admission, reads and a whole matching sweep.
type Partition struct {
	symbol string
	states *domain.StateTable
	clock  domain.Clock

	mu     sync.Mutex
	orders []*domain.Order // Admission order
	slots  map[domain.OrderID]int
	bySlot map[int]entry
	bids   *queue
	asks   *queue
}

func newPartition(symbol string, states *domain.StateTable, clock domain.Clock) *Partition {
	return &Partition{
		symbol: symbol,
		states: states,
		clock:  clock,
		slots:  make(map[domain.OrderID]int),
		bySlot: make(map[int]entry),
		bids:   newQueue(domain.SideBuy),
		asks:   newQueue(domain.SideSell),
	}
}

// Symbol returns the instrument symbol of the partition.
func (p *Partition) Symbol() string {
	return p.symbol
}

// add admits o with st. Returns false for an order already in the partition.
func (p *Partition) add(o *domain.Order, st domain.OrderState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.slots[o.ID]; ok {
		return false
	}
	slot, added := p.states.Insert(o.ID, st)
	if !added {
		return false
	}
	stored := p.states.At(slot)
	e := newEntry(o, slot, stored)
	p.slots[o.ID] = slot
	p.bySlot[slot] = e
	p.orders = append(p.orders, o)

	if stored.IsOpen(p.clock.Now()) {
		p.sideOf(o.Side).push(e)
	}
	return true
}

// cancel retires an open order by moving its expiration to now.
func (p *Partition) cancel(id domain.OrderID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	now := p.clock.Now()
	if !p.states.IsOpen(slot, now) {
		return domain.ErrOrderNotOpen
	}
	p.states.Expire(slot, now)
	p.removeLocked(slot)
	return nil
}

func (p *Partition) removeLocked(slot int) {
	e, ok := p.bySlot[slot]
	if !ok {
		return
	}
	p.sideOf(e.order.Side).remove(e)
}

func (p *Partition) order(id domain.OrderID) (*domain.Order, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[id]
	if !ok {
		return nil, false
	}
	return p.bySlot[slot].order, true
}

func (p *Partition) sideOf(side domain.Side) *queue {
	if side == domain.SideBuy {
		return p.bids
	}
	return p.asks
}

func (p *Partition) isOpen(now time.Time) func(entry) bool {
	return func(e entry) bool {
		return p.states.IsOpen(e.slot, now)
	}
}

// Len returns the number of admitted orders, open or not.
func (p *Partition) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

// AllOrders returns every admitted order in admission order.
func (p *Partition) AllOrders() []*domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*domain.Order, len(p.orders))
	copy(out, p.orders)
	return out
}

// OpenOrders returns the orders open at call time, in admission order.
func (p *Partition) OpenOrders() []*domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	out := make([]*domain.Order, 0, len(p.orders))
	for _, o := range p.orders {
		if p.states.IsOpen(p.slots[o.ID], now) {
			out = append(out, o)
		}
	}
	return out
}

// Bids returns the open BUY orders in priority order.
func (p *Partition) Bids() []*domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sideLocked(p.bids, p.clock.Now())
}

// Asks returns the open SELL orders in priority order.
func (p *Partition) Asks() []*domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sideLocked(p.asks, p.clock.Now())
}

func (p *Partition) sideLocked(q *queue, now time.Time) []*domain.Order {
	out := make([]*domain.Order, 0, q.len())
	q.scan(p.isOpen(now), func(e entry) bool {
		out = append(out, e.order)
		return true
	})
	return out
}

// BestBid returns the highest open BUY LIMIT price.
func (p *Partition) BestBid() (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bestLocked(p.bids, p.clock.Now())
}

// BestAsk returns the lowest open SELL LIMIT price.
func (p *Partition) BestAsk() (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bestLocked(p.asks, p.clock.Now())
}

func (p *Partition) bestLocked(q *queue, now time.Time) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	q.scan(p.isOpen(now), func(e entry) bool {
		if e.market {
			return true
		}
		best, found = e.price, true
		return false
	})
	return best, found
}

// Spread returns best ask minus best bid when both sides are quoted.
// It reads the book as is; a negative value means a crossed book not yet swept.
// Broker.Spread matches first.
func (p *Partition) Spread() (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	bid, ok := p.bestLocked(p.bids, now)
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := p.bestLocked(p.asks, now)
	if !ok {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// BidPrices returns the open BUY LIMIT prices in priority order.
func (p *Partition) BidPrices() []decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pricesLocked(p.bids, p.clock.Now())
}

// AskPrices returns the open SELL LIMIT prices in priority order.
func (p *Partition) AskPrices() []decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pricesLocked(p.asks, p.clock.Now())
}

func (p *Partition) pricesLocked(q *queue, now time.Time) []decimal.Decimal {
	var out []decimal.Decimal
	q.scan(p.isOpen(now), func(e entry) bool {
		if !e.market {
			out = append(out, e.price)
		}
		return true
	})
	return out
}

// Sweep runs fn with the partition locked. The view must not escape fn.
func (p *Partition) Sweep(fn func(v *View)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&View{p: p, now: p.clock.Now()})
}

// View is the locked matching surface of a partition, valid only inside Sweep.
type View struct {
	p   *Partition
	now time.Time
}

// Now is the instant the sweep was started.
func (v *View) Now() time.Time { return v.now }

// Symbol returns the partition symbol.
func (v *View) Symbol() string { return v.p.symbol }

// Bids returns the open BUY orders in priority order.
func (v *View) Bids() []*domain.Order { return v.p.sideLocked(v.p.bids, v.now) }

// Asks returns the open SELL orders in priority order.
func (v *View) Asks() []*domain.Order { return v.p.sideLocked(v.p.asks, v.now) }

// State returns the lifecycle record of o.
func (v *View) State(o *domain.Order) (domain.OrderState, bool) {
	slot, ok := v.p.slots[o.ID]
	if !ok {
		return domain.OrderState{}, false
	}
	return v.p.states.At(slot), true
}

// Execute marks both orders executed at the sweep instant and removes them from the queues.
func (v *View) Execute(buy, sell *domain.Order) {
	bs, bok := v.p.slots[buy.ID]
	ss, sok := v.p.slots[sell.ID]
	if !bok || !sok {
		return
	}
	v.p.removeLocked(bs)
	v.p.removeLocked(ss)
	v.p.states.MarkExecuted(v.now, bs, ss)
}
