package execution

import (
	"trading_core/internal/domain"

	"github.com/shopspring/decimal"
)

// Crosses reports whether buy and sell can trade on price.
func Crosses(buy, sell *domain.Order) bool {
	if buy.IsMarket() || sell.IsMarket() {
		return true
	}
	return buy.Price.GreaterThanOrEqual(sell.Price)
}

// TradePrice picks the execution price of a crossing pair.
// The resting (earlier placed) order sets the price. A resting MARKET order
// takes the other side's limit, and two MARKET orders trade at current.
func TradePrice(buy, sell *domain.Order, buyState, sellState domain.OrderState, current decimal.Decimal) decimal.Decimal {
	resting, incoming := buy, sell
	if rests(sellState, buyState) {
		resting, incoming = sell, buy
	}
	switch {
	case !resting.IsMarket():
		return resting.Price
	case !incoming.IsMarket():
		return incoming.Price
	default:
		return current
	}
}

// rests reports whether a was placed before b.
func rests(a, b domain.OrderState) bool {
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.Before(b.PlacedAt)
	}
	return a.Seq < b.Seq
}
