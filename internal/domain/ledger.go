package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger is a single cash balance with guarded mutation.
// Invariant: Balance >= 0 after every operation.
// Ledger is not safe for concurrent use; Account serializes access to it.
type Ledger struct {
	balance decimal.Decimal
}

// NewLedger creates a ledger with an opening balance. Negative openings are clamped to zero.
func NewLedger(opening decimal.Decimal) Ledger {
	if opening.IsNegative() {
		opening = decimal.Zero
	}
	return Ledger{balance: opening}
}

// Balance returns the current balance.
func (l *Ledger) Balance() decimal.Decimal {
	return l.balance
}

// Deposit adds funds to the balance.
func (l *Ledger) Deposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("deposit %s: %w", amount, ErrInvalidAmount)
	}
	l.balance = l.balance.Add(amount)
	return nil
}

// Withdraw removes funds from the balance. The balance is unchanged on error.
func (l *Ledger) Withdraw(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("withdraw %s: %w", amount, ErrInvalidAmount)
	}
	if !l.HasSufficientFunds(amount) {
		return fmt.Errorf("withdraw %s, balance %s: %w", amount, l.balance, ErrInsufficientFunds)
	}
	l.balance = l.balance.Sub(amount)
	return nil
}

// HasSufficientFunds reports whether amount can be withdrawn without going negative.
func (l *Ledger) HasSufficientFunds(amount decimal.Decimal) bool {
	return !l.balance.Sub(amount).IsNegative()
}

// VerifyInvariant checks that the balance is non-negative.
func (l *Ledger) VerifyInvariant() error {
	if l.balance.IsNegative() {
		return fmt.Errorf("LEDGER_INVARIANT_NEGATIVE_BALANCE: %s", l.balance)
	}
	return nil
}
