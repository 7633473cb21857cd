// Package conversion decides how a completed deposit lands in the ledger:
// converted to the platform currency, or kept in the deposited coin.
package conversion

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/logger"
)

// Deposit is the part of a verified deposit event the engine needs.
type Deposit struct {
	EventID    string
	UserID     uint64
	CoinSymbol string
	Amount     decimal.Decimal
}

// Setting is the receiving user's conversion policy.
type Setting struct {
	AutoConvert bool
	RateSource  string // empty selects the default source
}

type Config struct {
	PlatformCurrency string
	PlatformDecimals int32
}

type Engine struct {
	platformCurrency string
	decimals         int32
	defaultSource    RateSource
	sources          map[string]RateSource
}

type Option func(*Engine)

// WithSource makes src selectable by name from a user setting.
func WithSource(name string, src RateSource) Option {
	return func(e *Engine) { e.sources[name] = src }
}

func NewEngine(cfg Config, def RateSource, opts ...Option) *Engine {
	e := &Engine{
		platformCurrency: strings.ToUpper(cfg.PlatformCurrency),
		decimals:         cfg.PlatformDecimals,
		defaultSource:    def,
		sources:          make(map[string]RateSource),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) PlatformCurrency() string {
	return e.platformCurrency
}

// Decide returns the ledger entries for d under setting s. It never
// substitutes a rate: if pricing fails the error wraps ErrRateUnavailable.
func (e *Engine) Decide(ctx context.Context, d Deposit, s Setting) ([]model.LedgerEntry, error) {
	if !d.Amount.IsPositive() {
		return nil, errno.ErrInvalidAmount
	}
	coin := strings.ToUpper(d.CoinSymbol)

	if !s.AutoConvert {
		return []model.LedgerEntry{e.entry(d, coin, d.Amount, model.ReasonDepositCrypto)}, nil
	}

	rate := decimal.NewFromInt(1)
	if coin != e.platformCurrency {
		src, err := e.source(s.RateSource)
		if err != nil {
			return nil, err
		}
		rate, err = src.Rate(ctx, coin)
		if err != nil {
			return nil, err
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: non-positive rate for %s", errno.ErrRateUnavailable, coin)
		}
	}

	converted := d.Amount.Mul(rate).RoundFloor(e.decimals)
	if !converted.IsPositive() {
		// below one platform unit: keep the coin rather than credit zero
		logger.Warn("deposit too small to convert, crediting coin",
			zap.String("event_id", d.EventID),
			zap.String("coin", coin),
			zap.String("amount", d.Amount.String()),
			zap.String("rate", rate.String()))
		return []model.LedgerEntry{e.entry(d, coin, d.Amount, model.ReasonDepositCrypto)}, nil
	}

	return []model.LedgerEntry{e.entry(d, e.platformCurrency, converted, model.ReasonDepositConversion)}, nil
}

func (e *Engine) source(name string) (RateSource, error) {
	if name == "" {
		if e.defaultSource == nil {
			return nil, fmt.Errorf("%w: no default rate source", errno.ErrRateUnavailable)
		}
		return e.defaultSource, nil
	}
	if src, ok := e.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("%w: unknown rate source %q", errno.ErrRateUnavailable, name)
}

func (e *Engine) entry(d Deposit, currency string, delta decimal.Decimal, reason string) model.LedgerEntry {
	eventID := d.EventID
	return model.LedgerEntry{
		UserID:        d.UserID,
		Currency:      currency,
		Delta:         delta,
		Reason:        reason,
		SourceEventID: &eventID,
	}
}
