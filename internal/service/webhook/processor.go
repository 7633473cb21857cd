// Package webhook turns signed provider callbacks into ledger entries,
// exactly once per provider event id.
//
// A delivery moves Received -> Verified -> Deduplicated (new or replay) ->
// Applied, or ends Rejected. The dedupe decision is taken by the unique
// index on webhook_events.provider_event_id inside the same transaction
// that appends the ledger entries, so concurrent redeliveries on different
// instances cannot both apply.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"deposit-core/internal/model"
	"deposit-core/internal/provider"
	"deposit-core/internal/service/conversion"
	"deposit-core/internal/service/ledger"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
	"deposit-core/pkg/signature"
)

// TopicApplied carries one message per applied event.
const TopicApplied = "wallet.deposit.applied"

type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeReplay          Outcome = "replay_ignored"
	OutcomeIgnoredStatus   Outcome = "ignored_status"
	OutcomeBadSignature    Outcome = "bad_signature"
	OutcomeInvalidPayload  Outcome = "invalid_payload"
	OutcomeProcessingError Outcome = "processing_error"
)

// Delivery is one inbound webhook request. Body must be the exact bytes
// received on the wire.
type Delivery struct {
	Body      []byte
	AppID     string
	Signature string
	Timestamp string
}

type Result struct {
	Outcome Outcome
	EventID string
	Kind    string
	UserID  uint64
	Entries []model.LedgerEntry
}

// HTTPStatus is the status the provider should see. Only processing errors
// ask for a retry.
func (r Result) HTTPStatus() int {
	switch r.Outcome {
	case OutcomeApplied, OutcomeReplay, OutcomeIgnoredStatus:
		return http.StatusOK
	case OutcomeBadSignature:
		return http.StatusUnauthorized
	case OutcomeInvalidPayload:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type SettingsReader interface {
	Get(ctx context.Context, userID uint64) (model.UserSetting, error)
}

type Decider interface {
	Decide(ctx context.Context, d conversion.Deposit, s conversion.Setting) ([]model.LedgerEntry, error)
}

type Invalidator interface {
	InvalidateUser(ctx context.Context, userID uint64) error
}

// RecordFetcher confirms a deposit against the provider's own records.
type RecordFetcher interface {
	GetDepositRecord(ctx context.Context, recordID string) (*provider.DepositRecord, error)
}

// AppliedMessage is published through the outbox once an event is applied.
type AppliedMessage struct {
	EventID    string          `json:"event_id"`
	Kind       string          `json:"kind"`
	UserID     uint64          `json:"user_id"`
	CoinSymbol string          `json:"coin_symbol"`
	Chain      string          `json:"chain"`
	Amount     decimal.Decimal `json:"amount"`
	TxHash     string          `json:"tx_hash"`
	Entries    []AppliedEntry  `json:"entries"`
	AppliedAt  time.Time       `json:"applied_at"`
}

type AppliedEntry struct {
	Currency string          `json:"currency"`
	Delta    decimal.Decimal `json:"delta"`
	Reason   string          `json:"reason"`
}

var errReplay = errors.New("webhook event already applied")

type Processor struct {
	db          *gorm.DB
	signer      *signature.Signer
	settings    SettingsReader
	engine      Decider
	invalidator Invalidator

	index   AppliedIndex
	fetcher RecordFetcher
	maxSkew time.Duration
	topic   string
	now     func() time.Time
}

type Option func(*Processor)

func WithAppliedIndex(idx AppliedIndex) Option {
	return func(p *Processor) { p.index = idx }
}

// WithConfirmation re-fetches every completed deposit from the provider
// before crediting it.
func WithConfirmation(f RecordFetcher) Option {
	return func(p *Processor) { p.fetcher = f }
}

// WithMaxSkew rejects deliveries whose timestamp is further than d from now.
func WithMaxSkew(d time.Duration) Option {
	return func(p *Processor) { p.maxSkew = d }
}

func WithTopic(topic string) Option {
	return func(p *Processor) { p.topic = topic }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(db *gorm.DB, signer *signature.Signer, settings SettingsReader, engine Decider, inv Invalidator, opts ...Option) *Processor {
	p := &Processor{
		db:          db,
		signer:      signer,
		settings:    settings,
		engine:      engine,
		invalidator: inv,
		index:       noIndex{},
		topic:       TopicApplied,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one delivery through the state machine. The returned error
// carries the cause for logs; what the provider sees is Result.HTTPStatus.
func (p *Processor) Process(ctx context.Context, d Delivery) (res Result, err error) {
	defer func() { p.observe(res, err) }()

	if !p.verify(d) {
		return Result{Outcome: OutcomeBadSignature}, errno.ErrBadSignature
	}

	ev, err := ParseEvent(d.Body)
	if err != nil {
		return Result{Outcome: OutcomeInvalidPayload}, fmt.Errorf("%w: %v", errno.ErrInvalidPayload, err)
	}
	res = Result{EventID: ev.RecordID, Kind: ev.Type, UserID: ev.UserID()}

	if ev.Status != StatusCompleted {
		res.Outcome = OutcomeIgnoredStatus
		return res, nil
	}

	if p.index.Seen(ctx, ev.RecordID) {
		return p.replay(ctx, ev, res), nil
	}

	entries, err := p.prepare(ctx, ev)
	if err != nil {
		res.Outcome = OutcomeProcessingError
		return res, fmt.Errorf("%w: %w", errno.ErrProcessing, err)
	}

	err = p.apply(ctx, ev, d.Body, entries)
	if errors.Is(err, errReplay) {
		p.index.Mark(ctx, ev.RecordID)
		return p.replay(ctx, ev, res), nil
	}
	if err != nil {
		res.Outcome = OutcomeProcessingError
		return res, fmt.Errorf("%w: %w", errno.ErrProcessing, err)
	}

	// the write is durable; readers arriving from here on must miss the cache
	p.index.Mark(ctx, ev.RecordID)
	if err := p.invalidator.InvalidateUser(ctx, ev.UserID()); err != nil {
		logger.Error("invalidate balance cache after webhook",
			zap.String("event_id", ev.RecordID), zap.Uint64("user_id", ev.UserID()), zap.Error(err))
	}

	res.Outcome = OutcomeApplied
	res.Entries = entries
	return res, nil
}

func (p *Processor) verify(d Delivery) bool {
	ok := p.signer.Verify(d.Body, d.AppID, d.Signature, d.Timestamp)

	ts, valid := signature.ParseTimestamp(d.Timestamp)
	if !valid {
		return false
	}
	if p.maxSkew > 0 {
		skew := p.now().Sub(ts)
		if skew < 0 {
			skew = -skew
		}
		if skew > p.maxSkew {
			return false
		}
	}
	return ok
}

// prepare computes the ledger entries outside the transaction: the
// provider round trip and the rate lookup must not hold a connection.
func (p *Processor) prepare(ctx context.Context, ev *Event) ([]model.LedgerEntry, error) {
	eventID := ev.RecordID

	if ev.Type == KindWithdrawal {
		return []model.LedgerEntry{{
			UserID:        ev.UserID(),
			Currency:      ev.CoinSymbol,
			Delta:         ev.Amount.Neg(),
			Reason:        model.ReasonWithdrawal,
			SourceEventID: &eventID,
		}}, nil
	}

	if err := p.confirm(ctx, ev); err != nil {
		return nil, err
	}

	setting, err := p.settings.Get(ctx, ev.UserID())
	if err != nil {
		return nil, fmt.Errorf("load conversion setting: %w", err)
	}
	return p.engine.Decide(ctx, conversion.Deposit{
		EventID:    eventID,
		UserID:     ev.UserID(),
		CoinSymbol: ev.CoinSymbol,
		Amount:     ev.Amount,
	}, conversion.Setting{AutoConvert: setting.AutoConvert, RateSource: setting.RateSource})
}

func (p *Processor) confirm(ctx context.Context, ev *Event) error {
	if p.fetcher == nil {
		return nil
	}
	rec, err := p.fetcher.GetDepositRecord(ctx, ev.RecordID)
	if err != nil {
		return err
	}
	if !rec.Completed() {
		return fmt.Errorf("provider reports deposit %s as %q", ev.RecordID, rec.Status)
	}
	if !rec.Amount.Equal(ev.Amount) || rec.ReferenceID != ev.ReferenceID || !strings.EqualFold(rec.CoinSymbol, ev.CoinSymbol) {
		logger.Error("webhook does not match provider record",
			zap.String("event_id", ev.RecordID),
			zap.String("webhook_amount", ev.Amount.String()),
			zap.String("record_amount", rec.Amount.String()),
			zap.String("webhook_reference", ev.ReferenceID),
			zap.String("record_reference", rec.ReferenceID))
		return fmt.Errorf("deposit %s does not match provider record", ev.RecordID)
	}
	return nil
}

// apply reserves the event id and appends its entries atomically. A
// duplicate id rolls everything back and reports errReplay.
func (p *Processor) apply(ctx context.Context, ev *Event, body []byte, entries []model.LedgerEntry) error {
	appliedAt := p.now()
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := model.WebhookEvent{
			ProviderEventID: ev.RecordID,
			Kind:            ev.Type,
			UserID:          ev.UserID(),
			CoinSymbol:      ev.CoinSymbol,
			Chain:           ev.Chain,
			Amount:          ev.Amount,
			TxHash:          ev.TxID,
			Status:          ev.Status,
			Payload:         body,
			AppliedAt:       appliedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errReplay
			}
			return fmt.Errorf("reserve event: %w", err)
		}

		if err := ledger.AppendTx(tx, entries); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}

		msg := AppliedMessage{
			EventID:    ev.RecordID,
			Kind:       ev.Type,
			UserID:     ev.UserID(),
			CoinSymbol: ev.CoinSymbol,
			Chain:      ev.Chain,
			Amount:     ev.Amount,
			TxHash:     ev.TxID,
			AppliedAt:  appliedAt,
		}
		for _, e := range entries {
			msg.Entries = append(msg.Entries, AppliedEntry{Currency: e.Currency, Delta: e.Delta, Reason: e.Reason})
		}
		if err := model.CreateOutboxMessage(tx, p.topic, strconv.FormatUint(ev.UserID(), 10), msg); err != nil {
			return fmt.Errorf("write outbox: %w", err)
		}
		return nil
	})
}

// replay records a zero-delta audit entry. It does not touch balances, so
// a failure here is logged and the delivery is still acknowledged.
func (p *Processor) replay(ctx context.Context, ev *Event, res Result) Result {
	eventID := ev.RecordID
	audit := []model.LedgerEntry{{
		UserID:        ev.UserID(),
		Currency:      ev.CoinSymbol,
		Delta:         decimal.Zero,
		Reason:        model.ReasonWebhookReplayIgnored,
		SourceEventID: &eventID,
	}}
	if err := ledger.AppendTx(p.db.WithContext(ctx), audit); err != nil {
		logger.Error("append replay audit entry", zap.String("event_id", eventID), zap.Error(err))
	} else {
		res.Entries = audit
	}
	res.Outcome = OutcomeReplay
	return res
}

func (p *Processor) observe(res Result, err error) {
	kind := res.Kind
	if kind == "" {
		kind = "unknown"
	}
	monitor.Business.WebhookOutcomesTotal.WithLabelValues(kind, string(res.Outcome)).Inc()

	fields := []zap.Field{
		zap.String("event_id", res.EventID),
		zap.String("kind", kind),
		zap.String("outcome", string(res.Outcome)),
		zap.Uint64("user_id", res.UserID),
	}
	switch res.Outcome {
	case OutcomeApplied:
		for _, e := range res.Entries {
			if e.Delta.IsPositive() {
				monitor.Business.CreditedAmountTotal.WithLabelValues(e.Currency).Add(e.Delta.InexactFloat64())
			}
		}
		logger.Info("webhook applied", fields...)
	case OutcomeReplay, OutcomeIgnoredStatus:
		logger.Info("webhook acknowledged", fields...)
	case OutcomeProcessingError:
		logger.Error("webhook processing failed", append(fields, zap.Error(err))...)
	default:
		logger.Warn("webhook rejected", append(fields, zap.Error(err))...)
	}
}
