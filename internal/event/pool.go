package event

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Pools for the events emitted on every trade and placement.
//
// Usage:
//
//	ev := AcquireTradeEvent()
//	ev.Symbol = "ACME"
//	publisher.Publish(ev)
//	ReleaseTradeEvent(ev) // after every publisher returned
var tradePool = sync.Pool{
	New: func() interface{} {
		return &TradeEvent{}
	},
}

// AcquireTradeEvent gets a zeroed TradeEvent from the pool.
func AcquireTradeEvent() *TradeEvent {
	return tradePool.Get().(*TradeEvent)
}

// ReleaseTradeEvent resets ev and returns it to the pool.
func ReleaseTradeEvent(ev *TradeEvent) {
	if ev == nil {
		return
	}
	*ev = TradeEvent{Price: decimal.Zero, Amount: decimal.Zero}
	tradePool.Put(ev)
}

var orderPool = sync.Pool{
	New: func() interface{} {
		return &OrderEvent{}
	},
}

// AcquireOrderEvent gets a zeroed OrderEvent from the pool.
func AcquireOrderEvent() *OrderEvent {
	return orderPool.Get().(*OrderEvent)
}

// ReleaseOrderEvent resets ev and returns it to the pool.
func ReleaseOrderEvent(ev *OrderEvent) {
	if ev == nil {
		return
	}
	*ev = OrderEvent{Price: decimal.Zero}
	orderPool.Put(ev)
}

// Warmup pre-allocates a batch of events of each kind.
func Warmup() {
	const batchSize = 256

	trades := make([]*TradeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		trades = append(trades, AcquireTradeEvent())
	}
	for _, ev := range trades {
		ReleaseTradeEvent(ev)
	}

	orders := make([]*OrderEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		orders = append(orders, AcquireOrderEvent())
	}
	for _, ev := range orders {
		ReleaseOrderEvent(ev)
	}
}
