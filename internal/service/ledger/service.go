package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/lock"
	"deposit-core/pkg/logger"
)

const (
	lockTTL   = 10 * time.Second
	lockWait  = 2 * time.Second
	lockRetry = 20 * time.Millisecond
)

// Invalidator drops cached reads for a user after a write is durable.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID uint64) error
}

type Config struct {
	PlatformCurrency string
	WelcomeBonus     decimal.Decimal
}

// Entry is a manual ledger change requested by a collaborator.
type Entry struct {
	UserID   uint64
	Currency string
	Amount   decimal.Decimal // always positive, the direction comes from Credit/Debit
	Reason   string
	// IdempotencyKey makes a retried request return the first entry.
	IdempotencyKey string
}

// Service is the write side of the ledger used outside the webhook path.
type Service struct {
	store  *Store
	inv    Invalidator
	locker lock.DistributedLock
	cfg    Config
}

func NewService(store *Store, inv Invalidator, locker lock.DistributedLock, cfg Config) *Service {
	if locker == nil {
		locker = lock.NewLocalLock()
	}
	return &Service{store: store, inv: inv, locker: locker, cfg: cfg}
}

// Credit appends a positive entry. The bool reports whether a new entry was
// written (false when the idempotency key was already used).
func (s *Service) Credit(ctx context.Context, e Entry) (*model.LedgerEntry, bool, error) {
	if err := validate(e); err != nil {
		return nil, false, err
	}
	return s.credit(ctx, e)
}

func (s *Service) credit(ctx context.Context, e Entry) (*model.LedgerEntry, bool, error) {
	entry := newEntry(e, e.Amount)

	err := create(s.store.DB().WithContext(ctx), &entry)
	if errors.Is(err, errDuplicate) {
		err = s.loadByKey(ctx, *entry.IdempotencyKey, &entry)
		return &entry, false, err
	}
	if err != nil {
		return nil, false, err
	}
	s.invalidate(ctx, e.UserID)
	return &entry, true, nil
}

// Debit appends a negative entry if the user holds at least Amount of Currency.
// Debits for one user and currency are serialised through the lock.
func (s *Service) Debit(ctx context.Context, e Entry) (*model.LedgerEntry, bool, error) {
	if err := validate(e); err != nil {
		return nil, false, err
	}
	entry := newEntry(e, e.Amount.Neg())

	// a retried debit must not fail on the balance it already consumed
	if entry.IdempotencyKey != nil {
		err := s.loadByKey(ctx, *entry.IdempotencyKey, &entry)
		if err == nil {
			return &entry, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	key := fmt.Sprintf("ledger:debit:%d:%s", e.UserID, entry.Currency)
	err := s.withLock(ctx, key, func() error {
		return s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			bal, err := balanceOf(tx, e.UserID, entry.Currency)
			if err != nil {
				return err
			}
			if bal.LessThan(e.Amount) {
				return errno.ErrInsufficientBalance
			}
			return create(tx, &entry)
		})
	})
	if errors.Is(err, errDuplicate) {
		err = s.loadByKey(ctx, e.IdempotencyKey, &entry)
		return &entry, false, err
	}
	if err != nil {
		return nil, false, err
	}
	s.invalidate(ctx, e.UserID)
	return &entry, true, nil
}

// GrantWelcomeBonus credits the configured bonus once per user.
func (s *Service) GrantWelcomeBonus(ctx context.Context, userID uint64) (*model.LedgerEntry, bool, error) {
	if !s.cfg.WelcomeBonus.IsPositive() {
		return nil, false, nil
	}
	if userID == 0 {
		return nil, false, errno.ErrUserNotFound
	}
	return s.credit(ctx, Entry{
		UserID:         userID,
		Currency:       s.cfg.PlatformCurrency,
		Amount:         s.cfg.WelcomeBonus,
		Reason:         model.ReasonWelcomeBonus,
		IdempotencyKey: fmt.Sprintf("%s:%d", model.ReasonWelcomeBonus, userID),
	})
}

var errDuplicate = errors.New("idempotency key already used")

// create inserts entry. A clash on the idempotency key is reported as
// errDuplicate; inside a transaction the caller must roll back before
// loading the existing row.
func create(db *gorm.DB, entry *model.LedgerEntry) error {
	err := db.Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) && entry.IdempotencyKey != nil {
		return errDuplicate
	}
	return err
}

func (s *Service) loadByKey(ctx context.Context, key string, entry *model.LedgerEntry) error {
	var existing model.LedgerEntry
	if err := s.store.DB().WithContext(ctx).Where("idempotency_key = ?", key).First(&existing).Error; err != nil {
		return err
	}
	*entry = existing
	return nil
}

func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	deadline := time.Now().Add(lockWait)
	for {
		ok, err := s.locker.Acquire(ctx, key, lockTTL)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return errno.ErrLedgerBusy
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetry):
		}
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			logger.Warn("release ledger lock", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}

func (s *Service) invalidate(ctx context.Context, userID uint64) {
	if s.inv == nil {
		return
	}
	if err := s.inv.InvalidateUser(ctx, userID); err != nil {
		logger.Error("invalidate balance cache", zap.Uint64("user_id", userID), zap.Error(err))
	}
}

func validate(e Entry) error {
	if e.UserID == 0 {
		return errno.ErrUserNotFound
	}
	if !e.Amount.IsPositive() {
		return errno.ErrInvalidAmount
	}
	if strings.TrimSpace(e.Currency) == "" {
		return errno.ErrInvalidAmount.WithMessage("currency is required")
	}
	// webhook and bonus reasons are written only by their own paths
	if !manualReasons[e.Reason] {
		return errno.ErrInvalidReason
	}
	return nil
}

// manualReasons are the reasons a collaborator may write directly. Empty
// means adjustment.
var manualReasons = map[string]bool{
	"":                     true,
	model.ReasonAdjustment: true,
	model.ReasonWithdrawal: true,
}

func newEntry(e Entry, delta decimal.Decimal) model.LedgerEntry {
	reason := e.Reason
	if reason == "" {
		reason = model.ReasonAdjustment
	}
	entry := model.LedgerEntry{
		UserID:   e.UserID,
		Currency: strings.ToUpper(e.Currency),
		Delta:    delta,
		Reason:   reason,
	}
	if e.IdempotencyKey != "" {
		key := e.IdempotencyKey
		entry.IdempotencyKey = &key
	}
	return entry
}
