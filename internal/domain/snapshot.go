package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a plain-record view of broker state for persistence collaborators.
type Snapshot struct {
	TakenAt     time.Time            `json:"taken_at"`
	Accounts    []AccountSnapshot    `json:"accounts"`
	Instruments []InstrumentSnapshot `json:"instruments"`
	Orders      []OrderSnapshot      `json:"orders"` // Admission order
}

type AccountSnapshot struct {
	Name     string           `json:"name"`
	Balance  decimal.Decimal  `json:"balance"`
	Holdings map[string]int64 `json:"holdings"`
}

type InstrumentSnapshot struct {
	Symbol    string          `json:"symbol"`
	Class     string          `json:"class"`
	Price     decimal.Decimal `json:"price"`
	FaceValue decimal.Decimal `json:"face_value"` // Bonds only
	History   []PriceEntry    `json:"history"`
}

type OrderSnapshot struct {
	ID        OrderID         `json:"id"`
	Account   string          `json:"account"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	State     OrderState      `json:"state"`
}

// SnapshotInstrument captures the record of an instrument.
func SnapshotInstrument(i *Instrument) InstrumentSnapshot {
	snap := InstrumentSnapshot{
		Symbol:  i.Symbol(),
		Class:   i.Kind().Class(),
		Price:   i.Price(),
		History: i.PriceHistory(),
	}
	if b, ok := i.Kind().(Bond); ok {
		snap.FaceValue = b.FaceValue
	}
	return snap
}

// KindFromClass rebuilds a Kind from its class name, case-insensitively.
func KindFromClass(class string, faceValue decimal.Decimal) (Kind, error) {
	switch strings.ToUpper(class) {
	case ClassStock, "":
		return Stock{}, nil
	case ClassBond:
		if !faceValue.IsPositive() {
			return nil, fmt.Errorf("bond face value must be positive, got %s", faceValue)
		}
		return Bond{FaceValue: faceValue}, nil
	default:
		return nil, fmt.Errorf("unknown instrument class %q", class)
	}
}
