package event

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Type names an event kind on the wire.
type Type string

const (
	TypeTrade Type = "TRADE"
	TypeOrder Type = "ORDER"
)

// Event is anything published by the broker or the matcher.
type Event interface {
	GetSeq() uint64
	GetType() Type
}

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	Seq uint64    `json:"seq"`
	Ts  time.Time `json:"ts"`
}

func (e *BaseEvent) GetSeq() uint64 { return e.Seq }

var seq atomic.Uint64

// NextSeq returns a process-wide increasing event sequence number.
func NextSeq() uint64 {
	return seq.Add(1)
}

// TradeEvent is published once per settled trade.
type TradeEvent struct {
	BaseEvent
	TradeID     string          `json:"trade_id"`
	Symbol      string          `json:"symbol"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Amount      decimal.Decimal `json:"amount"`
}

func (e *TradeEvent) GetType() Type { return TypeTrade }

// OrderStatus is the lifecycle transition reported by an OrderEvent.
type OrderStatus string

const (
	OrderPlaced    OrderStatus = "PLACED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// OrderEvent is published on admission and cancellation.
type OrderEvent struct {
	BaseEvent
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Account  string          `json:"account"`
	Side     string          `json:"side"`
	Kind     string          `json:"kind"` // MARKET or LIMIT
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Status   OrderStatus     `json:"status"`
}

func (e *OrderEvent) GetType() Type { return TypeOrder }

// Publisher receives events synchronously. Events may be pooled, so a
// publisher must copy anything it keeps after Publish returns.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Fanout publishes to every non-nil publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ev)
		}
	}
}
