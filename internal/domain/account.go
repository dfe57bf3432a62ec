package domain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Account is a registered trading participant.
// mu guards ledger and holdings; histMu guards the order history.
type Account struct {
	name string

	mu       sync.Mutex
	ledger   Ledger
	holdings Holdings

	histMu  sync.RWMutex
	history []*Order
	seen    map[OrderID]struct{}
}

// NewAccount creates an account with a zero balance.
func NewAccount(name string) *Account {
	return NewAccountWithBalance(name, decimal.Zero)
}

// NewAccountWithBalance creates an account with an opening balance.
func NewAccountWithBalance(name string, balance decimal.Decimal) *Account {
	return &Account{
		name:     name,
		ledger:   NewLedger(balance),
		holdings: NewHoldings(),
		seen:     make(map[OrderID]struct{}),
	}
}

// Name returns the unique account name.
func (a *Account) Name() string {
	return a.name
}

// Balance returns the current cash balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Balance()
}

// Deposit adds cash to the ledger.
func (a *Account) Deposit(amount decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Deposit(amount)
}

// Withdraw removes cash from the ledger.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Withdraw(amount)
}

// HasSufficientFunds reports whether amount could be withdrawn now.
func (a *Account) HasSufficientFunds(amount decimal.Decimal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.HasSufficientFunds(amount)
}

// Holding returns the quantity held of symbol.
func (a *Account) Holding(symbol string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holdings.Get(symbol)
}

// Holdings returns a copy of all holdings.
func (a *Account) Holdings() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holdings.Snapshot()
}

// Grant credits quantity of symbol outside of settlement (initial positions, restore).
func (a *Account) Grant(symbol string, quantity int64) error {
	if quantity < 0 {
		return ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holdings.Adjust(symbol, quantity)
}

// AddOrder appends o to the history. Returns false if o is already recorded.
func (a *Account) AddOrder(o *Order) bool {
	a.histMu.Lock()
	defer a.histMu.Unlock()

	if _, ok := a.seen[o.ID]; ok {
		return false
	}
	a.seen[o.ID] = struct{}{}
	a.history = append(a.history, o)
	return true
}

// Orders returns the order history in placement order.
func (a *Account) Orders() []*Order {
	a.histMu.RLock()
	defer a.histMu.RUnlock()

	out := make([]*Order, len(a.history))
	copy(out, a.history)
	return out
}

// Transfer settles a trade between buyer and seller: the buyer pays amount
// and receives quantity of symbol, the seller the reverse.
// Both account locks are held for the whole step, acquired in name order.
// Every check runs before any write, so on error nothing has changed.
func Transfer(buyer, seller *Account, symbol string, quantity int64, amount decimal.Decimal) error {
	if quantity < 0 || amount.IsNegative() {
		return ErrInvalidAmount
	}
	unlock := lockPair(buyer, seller)
	defer unlock()

	if !buyer.ledger.HasSufficientFunds(amount) {
		return ErrInsufficientFunds
	}
	if seller.holdings.Get(symbol) < quantity {
		return ErrInsufficientHoldings
	}

	// The checks above cover every failure of these writes. An error here means
	// a half-applied trade, so it panics instead of returning.
	mustApply(buyer.ledger.Withdraw(amount))
	mustApply(seller.ledger.Deposit(amount))
	mustApply(buyer.holdings.Adjust(symbol, quantity))
	mustApply(seller.holdings.Adjust(symbol, -quantity))
	return nil
}

func mustApply(err error) {
	if err != nil {
		panic(fmt.Sprintf("transfer invariant broken: %v", err))
	}
}

// lockPair locks a and b in ascending name order and returns the unlock func.
func lockPair(a, b *Account) func() {
	if a == b {
		a.mu.Lock()
		return a.mu.Unlock
	}
	first, second := a, b
	if second.name < first.name {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

// SortAccounts orders accounts by name.
func SortAccounts(accounts []*Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].name < accounts[j].name
	})
}
