package conversion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
)

// RateSource returns how many platform units one unit of coin is worth.
// Implementations return an error wrapping errno.ErrRateUnavailable when
// they cannot price the coin.
type RateSource interface {
	Rate(ctx context.Context, coin string) (decimal.Decimal, error)
}

// StaticRates prices coins from configuration.
type StaticRates map[string]decimal.Decimal

// NewStaticRates parses a coin -> rate map of decimal strings.
func NewStaticRates(raw map[string]string) (StaticRates, error) {
	rates := make(StaticRates, len(raw))
	for coin, s := range raw {
		r, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", coin, err)
		}
		rates[strings.ToUpper(coin)] = r
	}
	return rates, nil
}

func (s StaticRates) Rate(_ context.Context, coin string) (decimal.Decimal, error) {
	r, ok := s[strings.ToUpper(coin)]
	if !ok || !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no static rate for %s", errno.ErrRateUnavailable, coin)
	}
	return r, nil
}

// DBRates reads the exchange_rates table.
type DBRates struct {
	db *gorm.DB
}

func NewDBRates(db *gorm.DB) *DBRates {
	return &DBRates{db: db}
}

func (s *DBRates) Rate(ctx context.Context, coin string) (decimal.Decimal, error) {
	var row model.ExchangeRate
	err := s.db.WithContext(ctx).Where("coin = ?", strings.ToUpper(coin)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("%w: no stored rate for %s", errno.ErrRateUnavailable, coin)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", errno.ErrRateUnavailable, err)
	}
	if !row.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate for %s", errno.ErrRateUnavailable, coin)
	}
	return row.Rate, nil
}

// Upsert stores the rate for coin.
func (s *DBRates) Upsert(ctx context.Context, coin string, rate decimal.Decimal) error {
	row := model.ExchangeRate{Coin: strings.ToUpper(coin), Rate: rate}
	return s.db.WithContext(ctx).Save(&row).Error
}

// ChainRates tries each source in order and returns the first rate found.
type ChainRates []RateSource

func (c ChainRates) Rate(ctx context.Context, coin string) (decimal.Decimal, error) {
	errs := make([]error, 0, len(c))
	for _, src := range c {
		r, err := src.Rate(ctx, coin)
		if err == nil {
			return r, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no rate sources", errno.ErrRateUnavailable)
	}
	return decimal.Zero, errors.Join(errs...)
}
