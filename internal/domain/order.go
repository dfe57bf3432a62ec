package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderID identifies an order. Identity, not field equality, decides duplicates.
type OrderID string

// Side is the direction of an order.
type Side string

// OrderType selects between market and limit execution.
type OrderType string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order is an immutable trading intent.
// Lifecycle (placement, execution) is tracked in a StateTable, not here.
type Order struct {
	ID         OrderID
	Account    *Account
	Instrument *Instrument
	Side       Side
	Type       OrderType
	Quantity   int64
	Price      decimal.Decimal // Limit price. Ignored for MARKET orders.
	CreatedAt  time.Time

	// ExpiresAt may be set before placement. Nil means the order never expires.
	ExpiresAt *time.Time
}

// NewOrder creates an order with a fresh identifier.
func NewOrder(account *Account, instrument *Instrument, side Side, typ OrderType, quantity int64, price decimal.Decimal) *Order {
	return &Order{
		ID:         OrderID(uuid.NewString()),
		Account:    account,
		Instrument: instrument,
		Side:       side,
		Type:       typ,
		Quantity:   quantity,
		Price:      price,
		CreatedAt:  time.Now(),
	}
}

// WithExpiry sets the expiration and returns the order for chaining.
func (o *Order) WithExpiry(at time.Time) *Order {
	o.ExpiresAt = &at
	return o
}

// Symbol returns the instrument symbol, or "" when the order has none.
func (o *Order) Symbol() string {
	if o.Instrument == nil {
		return ""
	}
	return o.Instrument.Symbol()
}

// AccountName returns the owning account name, or "" when the order has none.
func (o *Order) AccountName() string {
	if o.Account == nil {
		return ""
	}
	return o.Account.Name()
}

// IsMarket reports whether the order has no price constraint.
func (o *Order) IsMarket() bool {
	return o.Type == OrderTypeMarket
}
