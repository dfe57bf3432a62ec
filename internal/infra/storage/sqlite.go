package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trading_core/internal/domain"
	"trading_core/internal/event"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists broker snapshots and the trade journal in sqlite.
type Storage struct {
	db *gorm.DB
}

var _ domain.SnapshotRepository = (*Storage)(nil)

// NewStorage opens (or creates) the sqlite database at path.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		return nil, &domain.ConfigError{Field: "storage.path", Err: errors.New("required")}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&SnapshotMetaRecord{},
		&AccountRecord{},
		&HoldingRecord{},
		&InstrumentRecord{},
		&PriceEntryRecord{},
		&OrderRecord{},
		&TradeRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Snapshot Operations
// ======================================================================================

// SaveSnapshot replaces the stored snapshot in one transaction.
// The trade journal is append-only and is left untouched.
func (s *Storage) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&SnapshotMetaRecord{}, &AccountRecord{}, &HoldingRecord{},
			&InstrumentRecord{}, &PriceEntryRecord{}, &OrderRecord{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}

		if err := tx.Create(&SnapshotMetaRecord{ID: 1, TakenAt: snap.TakenAt}).Error; err != nil {
			return err
		}

		accounts, holdings := accountRecords(snap.Accounts)
		instruments, prices := instrumentRecords(snap.Instruments)
		orders := orderRecords(snap.Orders)

		if err := createAll(tx, accounts); err != nil {
			return err
		}
		if err := createAll(tx, holdings); err != nil {
			return err
		}
		if err := createAll(tx, instruments); err != nil {
			return err
		}
		if err := createAll(tx, prices); err != nil {
			return err
		}
		return createAll(tx, orders)
	})
}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, 200).Error
}

// LoadSnapshot returns the stored snapshot, or nil when none was saved.
func (s *Storage) LoadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	db := s.db.WithContext(ctx)

	var meta SnapshotMetaRecord
	err := db.First(&meta, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}

	var (
		accounts    []AccountRecord
		holdings    []HoldingRecord
		instruments []InstrumentRecord
		prices      []PriceEntryRecord
		orders      []OrderRecord
	)
	if err := db.Order("name").Find(&accounts).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&holdings).Error; err != nil {
		return nil, err
	}
	if err := db.Order("symbol").Find(&instruments).Error; err != nil {
		return nil, err
	}
	if err := db.Order("id").Find(&prices).Error; err != nil {
		return nil, err
	}
	if err := db.Order("seq").Find(&orders).Error; err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{TakenAt: meta.TakenAt}

	byAccount := make(map[string]map[string]int64)
	for _, h := range holdings {
		if byAccount[h.Account] == nil {
			byAccount[h.Account] = make(map[string]int64)
		}
		byAccount[h.Account][h.Symbol] = h.Quantity
	}
	for _, a := range accounts {
		held := byAccount[a.Name]
		if held == nil {
			held = make(map[string]int64)
		}
		snap.Accounts = append(snap.Accounts, domain.AccountSnapshot{Name: a.Name, Balance: a.Balance, Holdings: held})
	}

	history := make(map[string][]domain.PriceEntry)
	for _, p := range prices {
		history[p.Symbol] = append(history[p.Symbol], domain.PriceEntry{Price: p.Price, Timestamp: p.Timestamp})
	}
	for _, i := range instruments {
		snap.Instruments = append(snap.Instruments, domain.InstrumentSnapshot{
			Symbol:    i.Symbol,
			Class:     i.Class,
			Price:     i.Price,
			FaceValue: i.FaceValue,
			History:   history[i.Symbol],
		})
	}

	for _, o := range orders {
		snap.Orders = append(snap.Orders, o.toSnapshot())
	}
	return snap, nil
}

// ======================================================================================
// Trade Journal
// ======================================================================================

// SaveTrade appends a settled trade to the journal.
func (s *Storage) SaveTrade(ctx context.Context, ev *event.TradeEvent) error {
	rec := TradeRecord{
		ID:          ev.TradeID,
		Seq:         ev.Seq,
		Symbol:      ev.Symbol,
		BuyOrderID:  ev.BuyOrderID,
		SellOrderID: ev.SellOrderID,
		Buyer:       ev.Buyer,
		Seller:      ev.Seller,
		Quantity:    ev.Quantity,
		Price:       ev.Price,
		Amount:      ev.Amount,
		ExecutedAt:  ev.Ts,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// RecentTrades returns up to limit journaled trades, newest first.
// An empty symbol matches every instrument.
func (s *Storage) RecentTrades(ctx context.Context, symbol string, limit int) ([]TradeRecord, error) {
	q := s.db.WithContext(ctx).Order("seq DESC")
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var trades []TradeRecord
	err := q.Find(&trades).Error
	return trades, err
}

// Publish journals trade events; other events are ignored.
func (s *Storage) Publish(ev event.Event) {
	te, ok := ev.(*event.TradeEvent)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.SaveTrade(ctx, te); err != nil {
		slog.Error("Failed to journal trade",
			slog.String("trade_id", te.TradeID),
			slog.Any("error", err),
		)
	}
}

// ======================================================================================
// Record conversion
// ======================================================================================

func accountRecords(in []domain.AccountSnapshot) ([]AccountRecord, []HoldingRecord) {
	accounts := make([]AccountRecord, 0, len(in))
	var holdings []HoldingRecord
	for _, a := range in {
		accounts = append(accounts, AccountRecord{Name: a.Name, Balance: a.Balance})
		for sym, qty := range a.Holdings {
			holdings = append(holdings, HoldingRecord{Account: a.Name, Symbol: sym, Quantity: qty})
		}
	}
	return accounts, holdings
}

func instrumentRecords(in []domain.InstrumentSnapshot) ([]InstrumentRecord, []PriceEntryRecord) {
	instruments := make([]InstrumentRecord, 0, len(in))
	var prices []PriceEntryRecord
	for _, i := range in {
		instruments = append(instruments, InstrumentRecord{
			Symbol:    i.Symbol,
			Class:     i.Class,
			Price:     i.Price,
			FaceValue: i.FaceValue,
		})
		for _, p := range i.History {
			prices = append(prices, PriceEntryRecord{Symbol: i.Symbol, Price: p.Price, Timestamp: p.Timestamp})
		}
	}
	return instruments, prices
}

func orderRecords(in []domain.OrderSnapshot) []OrderRecord {
	out := make([]OrderRecord, 0, len(in))
	for _, o := range in {
		out = append(out, OrderRecord{
			ID:         string(o.ID),
			Account:    o.Account,
			Symbol:     o.Symbol,
			Side:       string(o.Side),
			Type:       string(o.Type),
			Quantity:   o.Quantity,
			Price:      o.Price,
			Issued:     o.CreatedAt,
			Seq:        o.State.Seq,
			PlacedAt:   o.State.PlacedAt,
			ExpiresAt:  o.State.ExpiresAt,
			Executed:   o.State.Executed,
			ExecutedAt: o.State.ExecutedAt,
		})
	}
	return out
}

func (o OrderRecord) toSnapshot() domain.OrderSnapshot {
	return domain.OrderSnapshot{
		ID:        domain.OrderID(o.ID),
		Account:   o.Account,
		Symbol:    o.Symbol,
		Side:      domain.Side(o.Side),
		Type:      domain.OrderType(o.Type),
		Quantity:  o.Quantity,
		Price:     o.Price,
		CreatedAt: o.Issued,
		State: domain.OrderState{
			Seq:        o.Seq,
			PlacedAt:   o.PlacedAt,
			ExpiresAt:  o.ExpiresAt,
			Executed:   o.Executed,
			ExecutedAt: o.ExecutedAt,
		},
	}
}
