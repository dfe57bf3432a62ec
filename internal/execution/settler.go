package execution

import (
	"log/slog"
	"time"

	"trading_core/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is the record of one settled match.
type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	BuyOrder   *domain.Order   `json:"-"`
	SellOrder  *domain.Order   `json:"-"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Settler moves cash and holdings between the two sides of a match.
type Settler struct {
	logger  *slog.Logger
	metrics domain.Recorder
}

// NewSettler creates a settler. Nil arguments fall back to defaults.
func NewSettler(logger *slog.Logger, metrics domain.Recorder) *Settler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = domain.NopRecorder{}
	}
	return &Settler{logger: logger, metrics: metrics}
}

// Settle transfers the settlement amount of buy/sell at price.
// On error no ledger or holding has changed.
func (s *Settler) Settle(buy, sell *domain.Order, price decimal.Decimal, at time.Time) (*Trade, error) {
	inst := buy.Instrument
	amount := inst.Kind().Notional(price, buy.Quantity)

	if err := domain.Transfer(buy.Account, sell.Account, inst.Symbol(), buy.Quantity, amount); err != nil {
		s.metrics.RecordSettlementFailure()
		s.logger.Warn("Settlement refused",
			slog.String("symbol", inst.Symbol()),
			slog.String("buy_order_id", string(buy.ID)),
			slog.String("sell_order_id", string(sell.ID)),
			slog.String("amount", amount.String()),
			slog.Any("error", err),
		)
		return nil, &domain.SettlementError{BuyOrderID: buy.ID, SellOrderID: sell.ID, Err: err}
	}

	s.metrics.RecordTrade()
	trade := &Trade{
		ID:         uuid.NewString(),
		Symbol:     inst.Symbol(),
		BuyOrder:   buy,
		SellOrder:  sell,
		Quantity:   buy.Quantity,
		Price:      price,
		Amount:     amount,
		ExecutedAt: at,
	}
	s.logger.Info("Trade settled",
		slog.String("trade_id", trade.ID),
		slog.String("symbol", trade.Symbol),
		slog.String("buyer", buy.AccountName()),
		slog.String("seller", sell.AccountName()),
		slog.Int64("quantity", trade.Quantity),
		slog.String("price", price.String()),
	)
	return trade, nil
}
