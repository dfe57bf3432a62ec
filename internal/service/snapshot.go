package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"trading_core/internal/domain"
)

// Snapshot captures accounts, instruments and every admitted order with its lifecycle state.
// The book is frozen for the whole capture, so a sweep is either fully in or fully out.
func (b *Broker) Snapshot() *domain.Snapshot {
	snap := &domain.Snapshot{TakenAt: b.clock.Now()}

	b.book.Freeze(func(orders []*domain.Order) {
		for _, acc := range b.Accounts() {
			snap.Accounts = append(snap.Accounts, domain.AccountSnapshot{
				Name:     acc.Name(),
				Balance:  acc.Balance(),
				Holdings: acc.Holdings(),
			})
		}
		for _, inst := range b.Securities() {
			snap.Instruments = append(snap.Instruments, domain.SnapshotInstrument(inst))
		}

		for _, o := range orders {
			st, _ := b.book.State(o.ID)
			snap.Orders = append(snap.Orders, domain.OrderSnapshot{
				ID:        o.ID,
				Account:   o.AccountName(),
				Symbol:    o.Symbol(),
				Side:      o.Side,
				Type:      o.Type,
				Quantity:  o.Quantity,
				Price:     o.Price,
				CreatedAt: o.CreatedAt,
				State:     st,
			})
		}
	})
	sort.SliceStable(snap.Orders, func(i, j int) bool {
		return snap.Orders[i].State.Seq < snap.Orders[j].State.Seq
	})
	return snap
}

// Restore loads snap into the registries and the book.
// Accounts and instruments already registered are kept as they are.
func (b *Broker) Restore(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}

	for _, as := range snap.Accounts {
		acc := domain.NewAccountWithBalance(as.Name, as.Balance)
		for symbol, qty := range as.Holdings {
			if err := acc.Grant(symbol, qty); err != nil {
				return fmt.Errorf("restore holdings of %s: %w", as.Name, err)
			}
		}
		b.AddAccount(acc)
	}

	for _, is := range snap.Instruments {
		kind, err := domain.KindFromClass(is.Class, is.FaceValue)
		if err != nil {
			return fmt.Errorf("restore instrument %s: %w", is.Symbol, err)
		}
		inst := domain.NewInstrument(is.Symbol, kind, is.Price)
		inst.RestoreHistory(is.History)
		b.AddSecurity(inst)
	}

	orders := make([]domain.OrderSnapshot, len(snap.Orders))
	copy(orders, snap.Orders)
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].State.Seq < orders[j].State.Seq
	})

	restored := 0
	for _, rec := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		acc, err := b.Account(rec.Account)
		if err != nil {
			return fmt.Errorf("restore order %s: %w", rec.ID, err)
		}
		inst, err := b.Security(rec.Symbol)
		if err != nil {
			return fmt.Errorf("restore order %s: %w", rec.ID, err)
		}

		o := &domain.Order{
			ID:         rec.ID,
			Account:    acc,
			Instrument: inst,
			Side:       rec.Side,
			Type:       rec.Type,
			Quantity:   rec.Quantity,
			Price:      rec.Price,
			CreatedAt:  rec.CreatedAt,
		}
		if !rec.State.ExpiresAt.IsZero() {
			expires := rec.State.ExpiresAt
			o.ExpiresAt = &expires
		}

		added, err := b.book.Restore(o, rec.State)
		if err != nil {
			return fmt.Errorf("restore order %s: %w", rec.ID, err)
		}
		if added {
			acc.AddOrder(o)
			inst.AddOrder(o)
			restored++
		}
	}

	b.logger.Info("Broker state restored",
		slog.Int("accounts", len(snap.Accounts)),
		slog.Int("instruments", len(snap.Instruments)),
		slog.Int("orders", restored),
	)
	return nil
}
