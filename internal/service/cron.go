package service

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"deposit-core/internal/provider"
	"deposit-core/internal/service/ledger"
	"deposit-core/pkg/lock"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
)

const reconcileLockKey = "cron:lock:reconcile"

type AssetLister interface {
	GetAssets(ctx context.Context) ([]provider.Asset, error)
}

type LiabilityReader interface {
	Liabilities(ctx context.Context) ([]ledger.Balance, error)
}

// Shortfall is a coin whose user balances exceed what the provider holds.
type Shortfall struct {
	Coin      string
	Owed      string
	Available string
}

type CronService struct {
	cron             *cron.Cron
	spec             string
	locker           lock.DistributedLock
	assets           AssetLister
	ledger           LiabilityReader
	platformCurrency string
}

func NewCronService(spec string, locker lock.DistributedLock, assets AssetLister, ledger LiabilityReader, platformCurrency string) *CronService {
	// 使用标准配置 (分级), 另支持 @every 描述符
	return &CronService{
		cron:             cron.New(),
		spec:             spec,
		locker:           locker,
		assets:           assets,
		ledger:           ledger,
		platformCurrency: strings.ToUpper(platformCurrency),
	}
}

func (s *CronService) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Reconcile(ctx); err != nil {
			logger.Error("reconcile failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("cron service started", zap.String("reconcile", s.spec))
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("cron service stopped")
}

// Reconcile compares what users are owed per coin with what the provider
// holds and publishes both as gauges. Only one instance runs it at a time;
// the others return (nil, nil).
func (s *CronService) Reconcile(ctx context.Context) ([]Shortfall, error) {
	locked, err := s.locker.Acquire(ctx, reconcileLockKey, time.Minute)
	if err != nil {
		return nil, err
	}
	if !locked {
		logger.Debug("reconcile already running elsewhere")
		return nil, nil
	}
	defer s.locker.Release(context.WithoutCancel(ctx), reconcileLockKey)

	assets, err := s.assets.GetAssets(ctx)
	if err != nil {
		return nil, err
	}
	owed, err := s.ledger.Liabilities(ctx)
	if err != nil {
		return nil, err
	}

	held := make(map[string]provider.Asset, len(assets))
	for _, a := range assets {
		coin := strings.ToUpper(a.CoinSymbol)
		held[coin] = a
		monitor.Business.ProviderAssetBalance.WithLabelValues(coin).Set(a.Available.InexactFloat64())
	}

	var shortfalls []Shortfall
	for _, b := range owed {
		monitor.Business.LedgerLiability.WithLabelValues(b.Currency).Set(b.Amount.InexactFloat64())
		if b.Currency == s.platformCurrency || !b.Amount.IsPositive() {
			continue
		}
		a := held[b.Currency]
		if b.Amount.GreaterThan(a.Available) {
			sf := Shortfall{Coin: b.Currency, Owed: b.Amount.String(), Available: a.Available.String()}
			shortfalls = append(shortfalls, sf)
			logger.Warn("provider balance below user liabilities",
				zap.String("coin", sf.Coin), zap.String("owed", sf.Owed), zap.String("available", sf.Available))
		}
	}

	logger.Info("reconcile finished", zap.Int("coins", len(owed)), zap.Int("shortfalls", len(shortfalls)))
	return shortfalls, nil
}
