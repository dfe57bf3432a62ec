package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decimals are stored as text so sqlite never rounds them through REAL.

// SnapshotMetaRecord marks that a snapshot exists and when it was taken.
type SnapshotMetaRecord struct {
	ID      uint `gorm:"primaryKey"`
	TakenAt time.Time
}

type AccountRecord struct {
	Name    string          `gorm:"primaryKey"`
	Balance decimal.Decimal `gorm:"type:text"`
}

type HoldingRecord struct {
	Account  string `gorm:"primaryKey"`
	Symbol   string `gorm:"primaryKey"`
	Quantity int64
}

type InstrumentRecord struct {
	Symbol    string `gorm:"primaryKey"`
	Class     string
	Price     decimal.Decimal `gorm:"type:text"`
	FaceValue decimal.Decimal `gorm:"type:text"`
}

type PriceEntryRecord struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	Symbol    string          `gorm:"index"`
	Price     decimal.Decimal `gorm:"type:text"`
	Timestamp time.Time
}

// OrderRecord is an order's terms plus its lifecycle state.
type OrderRecord struct {
	ID         string `gorm:"primaryKey"`
	Account    string `gorm:"index"`
	Symbol     string `gorm:"index"`
	Side       string
	Type       string
	Quantity   int64
	Price      decimal.Decimal `gorm:"type:text"`
	Issued     time.Time
	Seq        uint64 `gorm:"index"`
	PlacedAt   time.Time
	ExpiresAt  time.Time
	Executed   bool
	ExecutedAt time.Time
}

// TradeRecord is one journaled trade.
type TradeRecord struct {
	ID          string `gorm:"primaryKey"`
	Seq         uint64 `gorm:"index"`
	Symbol      string `gorm:"index"`
	BuyOrderID  string
	SellOrderID string
	Buyer       string
	Seller      string
	Quantity    int64
	Price       decimal.Decimal `gorm:"type:text"`
	Amount      decimal.Decimal `gorm:"type:text"`
	ExecutedAt  time.Time
}
