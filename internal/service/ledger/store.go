// Package ledger owns the append-only ledger_entries table. A balance is
// always the sum of a user's entries for one currency.
package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"deposit-core/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*size far from overflowing the offset.
	MaxPage = 100000

	SortAsc  = "asc"
	SortDesc = "desc"
)

type Balance struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// Page selects a slice of a user's transaction history.
type Page struct {
	Page int    `json:"page"`
	Size int    `json:"size"`
	Sort string `json:"sort"`
}

// Normalize clamps p into a valid page: 1 <= page <= MaxPage, 1 <= size <= MaxPageSize,
// sort asc or desc (newest first by default).
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if s := strings.ToLower(p.Sort); s == SortAsc {
		p.Sort = SortAsc
	} else {
		p.Sort = SortDesc
	}
	return p
}

type EntryPage struct {
	Entries []model.LedgerEntry `json:"entries"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	Size    int                 `json:"size"`
	Sort    string              `json:"sort"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle so callers can open a transaction around AppendTx.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// AppendTx inserts entries inside tx. IDs are written back into the slice.
func AppendTx(tx *gorm.DB, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return tx.Create(&entries).Error
}

// Balances folds the user's entries per currency. Currencies that sum to
// zero are omitted.
func (s *Store) Balances(ctx context.Context, userID uint64) ([]Balance, error) {
	return balancesOf(s.db.WithContext(ctx), userID)
}

func balancesOf(db *gorm.DB, userID uint64) ([]Balance, error) {
	var rows []Balance
	err := db.Model(&model.LedgerEntry{}).
		Select("currency, SUM(delta) AS amount").
		Where("user_id = ?", userID).
		Group("currency").
		Order("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, r := range rows {
		if !r.Amount.IsZero() {
			out = append(out, r)
		}
	}
	return out, nil
}

func balanceOf(db *gorm.DB, userID uint64, currency string) (decimal.Decimal, error) {
	var row struct {
		Amount decimal.NullDecimal
	}
	err := db.Model(&model.LedgerEntry{}).
		Select("SUM(delta) AS amount").
		Where("user_id = ? AND currency = ?", userID, currency).
		Scan(&row).Error
	if err != nil || !row.Amount.Valid {
		return decimal.Zero, err
	}
	return row.Amount.Decimal, nil
}

// Entries pages through the user's history. Replay audit rows are not
// part of the user-facing history.
func (s *Store) Entries(ctx context.Context, userID uint64, p Page) (EntryPage, error) {
	p = p.Normalize()
	out := EntryPage{Page: p.Page, Size: p.Size, Sort: p.Sort, Entries: []model.LedgerEntry{}}

	history := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&model.LedgerEntry{}).
			Where("user_id = ? AND reason <> ?", userID, model.ReasonWebhookReplayIgnored)
	}

	if err := history().Count(&out.Total).Error; err != nil {
		return out, err
	}
	if out.Total == 0 {
		return out, nil
	}

	err := history().Order("id " + p.Sort).
		Offset((p.Page - 1) * p.Size).
		Limit(p.Size).
		Find(&out.Entries).Error
	return out, err
}

// Liabilities sums every user's balance per currency.
func (s *Store) Liabilities(ctx context.Context) ([]Balance, error) {
	var rows []Balance
	err := s.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Select("currency, SUM(delta) AS amount").
		Group("currency").
		Order("currency").
		Scan(&rows).Error
	return rows, err
}
