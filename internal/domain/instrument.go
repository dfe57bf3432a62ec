package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ClassStock = "STOCK"
	ClassBond  = "BOND"
)

var hundred = decimal.NewFromInt(100)

// Kind supplies the variant-specific rules of an instrument.
type Kind interface {
	// Class names the variant ("STOCK", "BOND").
	Class() string
	// Notional returns the cash that changes hands for quantity at price.
	Notional(price decimal.Decimal, quantity int64) decimal.Decimal
}

// Stock is quoted per share.
type Stock struct{}

func (Stock) Class() string { return ClassStock }

func (Stock) Notional(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}

// Bond is quoted as a percentage of its face value.
type Bond struct {
	FaceValue decimal.Decimal
}

func (Bond) Class() string { return ClassBond }

func (b Bond) Notional(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Div(hundred).Mul(b.FaceValue).Mul(decimal.NewFromInt(quantity))
}

// PriceEntry is one point of an instrument's trade price history.
type PriceEntry struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Quotes is the read side of an order-book partition, attached to its instrument.
type Quotes interface {
	AllOrders() []*Order
	OpenOrders() []*Order
	BestBid() (decimal.Decimal, bool)
	BestAsk() (decimal.Decimal, bool)
	Spread() (decimal.Decimal, bool)
	BidPrices() []decimal.Decimal
	AskPrices() []decimal.Decimal
}

// Instrument is a tradable security identified by a unique symbol.
type Instrument struct {
	symbol string
	kind   Kind

	mu      sync.RWMutex
	price   decimal.Decimal
	history []PriceEntry
	orders  []*Order
	quotes  Quotes
}

// NewInstrument creates an instrument of the given kind. Negative prices are clamped to zero.
func NewInstrument(symbol string, kind Kind, initialPrice decimal.Decimal) *Instrument {
	if kind == nil {
		kind = Stock{}
	}
	if initialPrice.IsNegative() {
		initialPrice = decimal.Zero
	}
	return &Instrument{symbol: symbol, kind: kind, price: initialPrice}
}

// NewStock creates a share-quoted instrument.
func NewStock(symbol string, initialPrice decimal.Decimal) *Instrument {
	return NewInstrument(symbol, Stock{}, initialPrice)
}

// NewBond creates a percent-of-face quoted instrument.
func NewBond(symbol string, initialPrice, faceValue decimal.Decimal) *Instrument {
	return NewInstrument(symbol, Bond{FaceValue: faceValue}, initialPrice)
}

func (i *Instrument) Symbol() string { return i.symbol }

func (i *Instrument) Kind() Kind { return i.kind }

// Price returns the last trade price (or the initial price before any trade).
func (i *Instrument) Price() decimal.Decimal {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.price
}

// PriceHistory returns a copy of the recorded trade prices, oldest first.
func (i *Instrument) PriceHistory() []PriceEntry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]PriceEntry, len(i.history))
	copy(out, i.history)
	return out
}

// RecordPrice appends a history entry and updates the current price.
func (i *Instrument) RecordPrice(price decimal.Decimal, at time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.price = price
	i.history = append(i.history, PriceEntry{Price: price, Timestamp: at})
}

// RestoreHistory replaces the price history; used when loading a snapshot.
func (i *Instrument) RestoreHistory(history []PriceEntry) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.history = make([]PriceEntry, len(history))
	copy(i.history, history)
}

// Attach binds the instrument to its order-book partition.
func (i *Instrument) Attach(q Quotes) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.quotes = q
}

// AddOrder records a placed order against the instrument.
func (i *Instrument) AddOrder(o *Order) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.orders = append(i.orders, o)
}

// Orders returns the orders recorded against the instrument, in placement order.
func (i *Instrument) Orders() []*Order {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]*Order, len(i.orders))
	copy(out, i.orders)
	return out
}

func (i *Instrument) attached() Quotes {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.quotes
}

// AllOrders returns every order admitted to the instrument's partition.
func (i *Instrument) AllOrders() []*Order {
	if q := i.attached(); q != nil {
		return q.AllOrders()
	}
	return nil
}

// OpenOrders returns the open orders of the instrument's partition.
func (i *Instrument) OpenOrders() []*Order {
	if q := i.attached(); q != nil {
		return q.OpenOrders()
	}
	return nil
}

// Bid returns the best bid, if any.
func (i *Instrument) Bid() (decimal.Decimal, bool) {
	if q := i.attached(); q != nil {
		return q.BestBid()
	}
	return decimal.Zero, false
}

// Ask returns the best ask, if any.
func (i *Instrument) Ask() (decimal.Decimal, bool) {
	if q := i.attached(); q != nil {
		return q.BestAsk()
	}
	return decimal.Zero, false
}

// Spread returns ask minus bid when both sides are quoted.
func (i *Instrument) Spread() (decimal.Decimal, bool) {
	if q := i.attached(); q != nil {
		return q.Spread()
	}
	return decimal.Zero, false
}

// BidPrices returns open BUY limit prices in priority order.
func (i *Instrument) BidPrices() []decimal.Decimal {
	if q := i.attached(); q != nil {
		return q.BidPrices()
	}
	return nil
}

// AskPrices returns open SELL limit prices in priority order.
func (i *Instrument) AskPrices() []decimal.Decimal {
	if q := i.attached(); q != nil {
		return q.AskPrices()
	}
	return nil
}
