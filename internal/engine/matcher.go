package engine

import (
	"errors"
	"log/slog"
	"time"

	"trading_core/internal/domain"
	"trading_core/internal/event"
	"trading_core/internal/execution"
	"trading_core/internal/orderbook"
)

// Outcome classifies one matching attempt.
type Outcome string

const (
	OutcomeSettled              Outcome = "SETTLED"
	OutcomeQuantityMismatch     Outcome = "QUANTITY_MISMATCH"
	OutcomeSelfTrade            Outcome = "SELF_TRADE"
	OutcomeInsufficientFunds    Outcome = "INSUFFICIENT_FUNDS"
	OutcomeInsufficientHoldings Outcome = "INSUFFICIENT_HOLDINGS"
	OutcomeFailed               Outcome = "FAILED"
)

// Attempt is one crossing pair considered by a sweep.
type Attempt struct {
	BuyOrderID  domain.OrderID `json:"buy_order_id"`
	SellOrderID domain.OrderID `json:"sell_order_id"`
	Outcome     Outcome        `json:"outcome"`
	Error       string         `json:"error,omitempty"`
}

// SweepResult reports everything one sweep of one instrument did.
type SweepResult struct {
	Symbol    string             `json:"symbol"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
	Attempts  []Attempt          `json:"attempts"`
	Trades    []*execution.Trade `json:"trades"`
}

// Settled returns the number of trades the sweep produced.
func (r SweepResult) Settled() int {
	return len(r.Trades)
}

// Matcher runs full-fill-only crossing sweeps over book partitions.
type Matcher struct {
	settler   *execution.Settler
	publisher event.Publisher
	metrics   domain.Recorder
	logger    *slog.Logger
}

// NewMatcher creates a matcher. publisher and metrics may be nil.
func NewMatcher(settler *execution.Settler, publisher event.Publisher, metrics domain.Recorder, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = domain.NopRecorder{}
	}
	if settler == nil {
		settler = execution.NewSettler(logger, metrics)
	}
	return &Matcher{settler: settler, publisher: publisher, metrics: metrics, logger: logger}
}

// Match sweeps inst's partition once. Failures are reported in the result, never returned.
// Events are published after the partition lock is released.
func (m *Matcher) Match(inst *domain.Instrument, p *orderbook.Partition) SweepResult {
	start := time.Now()
	result := SweepResult{Symbol: p.Symbol()}

	p.Sweep(func(v *orderbook.View) {
		result.StartedAt = v.Now()
		m.sweep(inst, v, &result)
	})

	result.Duration = time.Since(start)
	m.metrics.RecordSweep(result.Duration)

	for _, tr := range result.Trades {
		m.publish(tr)
	}
	if len(result.Attempts) > 0 {
		m.logger.Debug("Sweep completed",
			slog.String("symbol", result.Symbol),
			slog.Int("attempts", len(result.Attempts)),
			slog.Int("trades", len(result.Trades)),
			slog.Duration("duration", result.Duration),
		)
	}
	return result
}

func (m *Matcher) sweep(inst *domain.Instrument, v *orderbook.View, result *SweepResult) {
	bids := v.Bids()
	asks := v.Asks()
	taken := make(map[domain.OrderID]struct{})

	for _, buy := range bids {
	scan:
		for _, sell := range asks {
			if _, ok := taken[sell.ID]; ok {
				continue
			}
			if !execution.Crosses(buy, sell) {
				// Asks are ordered, nothing cheaper follows
				break
			}
			if buy.Account == sell.Account {
				result.Attempts = append(result.Attempts, Attempt{BuyOrderID: buy.ID, SellOrderID: sell.ID, Outcome: OutcomeSelfTrade})
				continue
			}
			if buy.Quantity != sell.Quantity {
				result.Attempts = append(result.Attempts, Attempt{BuyOrderID: buy.ID, SellOrderID: sell.ID, Outcome: OutcomeQuantityMismatch})
				continue
			}

			bs, _ := v.State(buy)
			ss, _ := v.State(sell)
			price := execution.TradePrice(buy, sell, bs, ss, inst.Price())

			trade, err := m.settler.Settle(buy, sell, price, v.Now())
			if err != nil {
				attempt := Attempt{BuyOrderID: buy.ID, SellOrderID: sell.ID, Outcome: OutcomeFailed, Error: err.Error()}
				switch {
				case errors.Is(err, domain.ErrInsufficientFunds):
					attempt.Outcome = OutcomeInsufficientFunds
					result.Attempts = append(result.Attempts, attempt)
					break scan
				case errors.Is(err, domain.ErrInsufficientHoldings):
					attempt.Outcome = OutcomeInsufficientHoldings
					taken[sell.ID] = struct{}{}
				}
				result.Attempts = append(result.Attempts, attempt)
				continue
			}

			v.Execute(buy, sell)
			inst.RecordPrice(price, v.Now())
			taken[sell.ID] = struct{}{}
			result.Attempts = append(result.Attempts, Attempt{BuyOrderID: buy.ID, SellOrderID: sell.ID, Outcome: OutcomeSettled})
			result.Trades = append(result.Trades, trade)
			break
		}
	}
}

func (m *Matcher) publish(tr *execution.Trade) {
	if m.publisher == nil {
		return
	}
	ev := event.AcquireTradeEvent()
	ev.Seq = event.NextSeq()
	ev.Ts = tr.ExecutedAt
	ev.TradeID = tr.ID
	ev.Symbol = tr.Symbol
	ev.BuyOrderID = string(tr.BuyOrder.ID)
	ev.SellOrderID = string(tr.SellOrder.ID)
	ev.Buyer = tr.BuyOrder.AccountName()
	ev.Seller = tr.SellOrder.AccountName()
	ev.Quantity = tr.Quantity
	ev.Price = tr.Price
	ev.Amount = tr.Amount

	m.publisher.Publish(ev)
	event.ReleaseTradeEvent(ev)
}
