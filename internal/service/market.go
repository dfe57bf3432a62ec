package service

import (
	"context"
	"time"

	"trading_core/internal/domain"

	"github.com/shopspring/decimal"
)

// MarketPrice is the quote of one instrument at a point in time.
// Bid, Ask and Spread are invalid when the book side is empty.
type MarketPrice struct {
	Symbol    string              `json:"symbol"`
	Last      decimal.Decimal     `json:"last"`
	Bid       decimal.NullDecimal `json:"bid"`
	Ask       decimal.NullDecimal `json:"ask"`
	Spread    decimal.NullDecimal `json:"spread"`
	Timestamp time.Time           `json:"timestamp"`
}

// Spread returns best ask minus best bid of symbol. A crossed book is swept
// before it is read, so the result is negative only if that sweep settled nothing
// that uncrossed it.
func (b *Broker) Spread(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	inst, err := b.Security(symbol)
	if err != nil {
		return decimal.Zero, false, err
	}
	if err := b.uncross(ctx, inst); err != nil {
		return decimal.Zero, false, err
	}
	spread, ok := inst.Spread()
	return spread, ok, nil
}

// MarketPrice returns the current quote of symbol, sweeping a crossed book first.
func (b *Broker) MarketPrice(ctx context.Context, symbol string) (MarketPrice, error) {
	inst, err := b.Security(symbol)
	if err != nil {
		return MarketPrice{}, err
	}
	if err := b.uncross(ctx, inst); err != nil {
		return MarketPrice{}, err
	}

	mp := MarketPrice{
		Symbol:    symbol,
		Last:      inst.Price(),
		Timestamp: b.clock.Now(),
	}
	if bid, ok := inst.Bid(); ok {
		mp.Bid = decimal.NewNullDecimal(bid)
	}
	if ask, ok := inst.Ask(); ok {
		mp.Ask = decimal.NewNullDecimal(ask)
	}
	if spread, ok := inst.Spread(); ok {
		mp.Spread = decimal.NewNullDecimal(spread)
	}
	return mp, nil
}

func (b *Broker) uncross(ctx context.Context, inst *domain.Instrument) error {
	spread, ok := inst.Spread()
	if !ok || !spread.IsNegative() {
		return nil
	}
	_, err := b.Match(ctx, inst.Symbol())
	return err
}
