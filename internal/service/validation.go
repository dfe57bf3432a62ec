package service

import (
	"fmt"
	"time"

	"trading_core/internal/domain"
)

// validate runs the placement checks in order and stops at the first failure.
func (b *Broker) validate(o *domain.Order, now time.Time) error {
	if o == nil || o.ID == "" {
		return domain.NewOrderPlacementError("order cannot be nil")
	}
	if err := b.validateAccount(o); err != nil {
		return err
	}
	if err := b.validateSecurity(o); err != nil {
		return err
	}
	if o.Quantity < 1 {
		return domain.NewOrderPlacementError("tradable quantity must be at least 1")
	}
	if o.Price.IsNegative() {
		return domain.NewOrderPlacementError("the price must not be negative")
	}
	if o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
		return domain.NewOrderPlacementError("order expiration date must be in the future")
	}
	return nil
}

func (b *Broker) validateAccount(o *domain.Order) error {
	if o.Account == nil {
		return domain.NewOrderPlacementError("an order must be associated with a valid account")
	}

	b.mu.RLock()
	registered := b.accounts[o.Account.Name()]
	b.mu.RUnlock()

	if registered != o.Account {
		return &domain.OrderPlacementError{
			Reason: "the specified account is not managed by the broker",
			Err:    domain.ErrAccountNotFound,
		}
	}
	return nil
}

func (b *Broker) validateSecurity(o *domain.Order) error {
	if o.Instrument == nil {
		return domain.NewOrderPlacementError("an order must have a valid security")
	}

	b.mu.RLock()
	registered := b.securities[o.Instrument.Symbol()]
	b.mu.RUnlock()

	if registered != o.Instrument {
		return &domain.OrderPlacementError{
			Reason: fmt.Sprintf("the security '%s' is not tradable with this broker", o.Instrument.Symbol()),
			Err:    domain.ErrSecurityNotFound,
		}
	}
	return nil
}
