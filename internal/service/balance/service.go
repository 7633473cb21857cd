// Package balance serves balance and history reads through a TTL cache,
// with concurrent misses for one key collapsed into a single ledger query.
package balance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"deposit-core/internal/service/ledger"
	"deposit-core/pkg/cache"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
	"deposit-core/pkg/stampede"
)

// Reader is the ledger query side.
type Reader interface {
	Balances(ctx context.Context, userID uint64) ([]ledger.Balance, error)
	Entries(ctx context.Context, userID uint64, p ledger.Page) (ledger.EntryPage, error)
}

type Config struct {
	BalanceTTL    time.Duration
	ListTTL       time.Duration
	MaxPendingAge time.Duration
}

func BalanceKey(userID uint64) string {
	return fmt.Sprintf("balance:user:%d", userID)
}

func TxListKey(userID uint64, p ledger.Page) string {
	p = p.Normalize()
	return fmt.Sprintf("txlist:user:%d:page:%d:size:%d:sort:%s", userID, p.Page, p.Size, p.Sort)
}

// userKeys matches every cached read shape of one user.
func userKeys(userID uint64) cache.Matcher {
	return cache.Any(
		cache.Equals(BalanceKey(userID)),
		cache.Prefix(fmt.Sprintf("txlist:user:%d:", userID)),
	)
}

type Service struct {
	reader Reader
	cache  cache.Cache
	cfg    Config

	balances *stampede.Guard[[]ledger.Balance]
	lists    *stampede.Guard[ledger.EntryPage]

	// fence orders cache fills against invalidation: a value computed
	// before an invalidation started is never stored after it.
	fence sync.RWMutex
	gen   uint64
}

const defaultMaxPendingAge = 10 * time.Second

func NewService(reader Reader, c cache.Cache, cfg Config) *Service {
	if cfg.MaxPendingAge <= 0 {
		cfg.MaxPendingAge = defaultMaxPendingAge
	}
	return &Service{
		reader:   reader,
		cache:    c,
		cfg:      cfg,
		balances: stampede.New[[]ledger.Balance](cfg.MaxPendingAge),
		lists:    stampede.New[ledger.EntryPage](cfg.MaxPendingAge),
	}
}

// GetBalance returns the user's non-zero balances per currency.
func (s *Service) GetBalance(ctx context.Context, userID uint64) ([]ledger.Balance, error) {
	key := BalanceKey(userID)

	var cached []ledger.Balance
	if s.lookup(ctx, "balance", key, &cached) {
		return cached, nil
	}

	return s.balances.Execute(ctx, key, func(ctx context.Context) ([]ledger.Balance, error) {
		gen := s.generation()
		v, err := s.reader.Balances(ctx, userID)
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = []ledger.Balance{}
		}
		s.fill(ctx, key, v, s.cfg.BalanceTTL, gen)
		return v, nil
	})
}

// ListTransactions returns one page of the user's history.
func (s *Service) ListTransactions(ctx context.Context, userID uint64, p ledger.Page) (ledger.EntryPage, error) {
	p = p.Normalize()
	key := TxListKey(userID, p)

	var cached ledger.EntryPage
	if s.lookup(ctx, "txlist", key, &cached) {
		return cached, nil
	}

	return s.lists.Execute(ctx, key, func(ctx context.Context) (ledger.EntryPage, error) {
		gen := s.generation()
		v, err := s.reader.Entries(ctx, userID, p)
		if err != nil {
			return ledger.EntryPage{}, err
		}
		s.fill(ctx, key, v, s.cfg.ListTTL, gen)
		return v, nil
	})
}

// InvalidateUser drops every cached read for the user and detaches in-flight
// recomputations, so the next reader queries the ledger again. It returns
// once the entries are gone.
func (s *Service) InvalidateUser(ctx context.Context, userID uint64) error {
	match := userKeys(userID)

	s.fence.Lock()
	s.gen++
	n, err := s.cache.Invalidate(ctx, match)
	s.fence.Unlock()

	detached := s.balances.Forget(match) + s.lists.Forget(match)
	logger.Debug("balance cache invalidated",
		zap.Uint64("user_id", userID),
		zap.Int("removed", n),
		zap.Int("detached", detached))
	return err
}

// Run sweeps abandoned computations until ctx ends.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	go s.balances.Run(ctx, interval)
	s.lists.Run(ctx, interval)
}

// RegisterMetrics exposes the stampede counters.
func (s *Service) RegisterMetrics() error {
	if err := monitor.RegisterStampede("balance", s.balances.Stats); err != nil {
		return err
	}
	return monitor.RegisterStampede("txlist", s.lists.Stats)
}

func (s *Service) lookup(ctx context.Context, shape, key string, target interface{}) bool {
	err := s.cache.Get(ctx, key, target)
	if err == nil {
		monitor.Business.CacheRequestsTotal.WithLabelValues(shape, "hit").Inc()
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("balance cache read failed", zap.String("key", key), zap.Error(err))
	}
	monitor.Business.CacheRequestsTotal.WithLabelValues(shape, "miss").Inc()
	return false
}

func (s *Service) generation() uint64 {
	s.fence.RLock()
	defer s.fence.RUnlock()
	return s.gen
}

func (s *Service) fill(ctx context.Context, key string, v interface{}, ttl time.Duration, gen uint64) {
	s.fence.RLock()
	defer s.fence.RUnlock()
	if s.gen != gen {
		return
	}
	if err := s.cache.Set(ctx, key, v, ttl); err != nil {
		logger.Warn("balance cache write failed", zap.String("key", key), zap.Error(err))
	}
}
