package domain

import (
	"errors"
	"strings"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable.
// Resource errors (funds, holdings) are retriable: the same settlement may
// succeed after a deposit. Everything else is not.
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return KindOf(err) == KindResource
}

var (
	// ErrInsufficientFunds is returned when a withdrawal would drive a ledger negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings is returned when a holdings adjustment would go negative.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrInvalidAmount is returned for negative deposit or withdraw amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAccountNotFound is returned on lookup of an unregistered account name.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSecurityNotFound is returned on lookup of an unregistered symbol.
	ErrSecurityNotFound = errors.New("security not found")

	// ErrUnsupportedSecurity is returned when admission targets a symbol without a book partition.
	ErrUnsupportedSecurity = errors.New("unsupported security")

	// ErrOrderPlacement matches every *OrderPlacementError.
	ErrOrderPlacement = errors.New("order placement error")

	// ErrOrderNotFound is returned when an order ID is unknown to the book.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotOpen is returned when cancelling an executed or expired order.
	ErrOrderNotOpen = errors.New("order not open")
)

// ErrorKind groups errors by the boundary that reports them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindLookup
	KindResource
	KindIntegration
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindLookup:
		return "LOOKUP"
	case KindResource:
		return "RESOURCE"
	case KindIntegration:
		return "INTEGRATION"
	default:
		return "UNKNOWN"
	}
}

// KindOf classifies err so callers can branch on recoverable vs fatal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrOrderPlacement), errors.Is(err, ErrInvalidAmount):
		return KindValidation
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientHoldings):
		return KindResource
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrSecurityNotFound),
		errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrOrderNotOpen):
		return KindLookup
	case errors.Is(err, ErrUnsupportedSecurity):
		return KindIntegration
	default:
		return KindUnknown
	}
}

// OrderPlacementError carries the human-readable reason a placement was refused.
type OrderPlacementError struct {
	Reason string
	Err    error // Optional cause (e.g. ErrSecurityNotFound)
}

// NewOrderPlacementError creates a validation error without a cause.
func NewOrderPlacementError(reason string) *OrderPlacementError {
	return &OrderPlacementError{Reason: reason}
}

func (e *OrderPlacementError) Error() string {
	if e.Err != nil {
		return "order validation error: " + e.Reason + ": " + e.Err.Error()
	}
	return "order validation error: " + e.Reason
}

func (e *OrderPlacementError) Is(target error) bool {
	return target == ErrOrderPlacement
}

func (e *OrderPlacementError) Unwrap() error {
	return e.Err
}

// SettlementError reports a settlement attempt that was refused.
// Ledgers and holdings are untouched when this is returned.
type SettlementError struct {
	BuyOrderID  OrderID
	SellOrderID OrderID
	Err         error
}

func (e *SettlementError) Error() string {
	var sb strings.Builder
	sb.WriteString("settlement ")
	sb.WriteString(string(e.BuyOrderID))
	sb.WriteString("/")
	sb.WriteString(string(e.SellOrderID))
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *SettlementError) IsRetriable() bool {
	return KindOf(e.Err) == KindResource
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
