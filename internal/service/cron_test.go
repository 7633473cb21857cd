package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/internal/provider"
	"deposit-core/internal/service/ledger"
	"deposit-core/pkg/lock"
	"deposit-core/pkg/monitor"
)

type staticAssets []provider.Asset

func (a staticAssets) GetAssets(context.Context) ([]provider.Asset, error) { return a, nil }

type staticLiabilities []ledger.Balance

func (l staticLiabilities) Liabilities(context.Context) ([]ledger.Balance, error) { return l, nil }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReconcileReportsShortfalls(t *testing.T) {
	assets := staticAssets{
		{CoinSymbol: "usdt", Available: dec("100")},
		{CoinSymbol: "BTC", Available: dec("0.5")},
	}
	owed := staticLiabilities{
		{Currency: "BTC", Amount: dec("0.75")},
		{Currency: "DGT", Amount: dec("9000")},
		{Currency: "ETH", Amount: dec("1")},
		{Currency: "USDT", Amount: dec("20")},
	}
	s := NewCronService("@every 5m", lock.NewLocalLock(), assets, owed, "DGT")

	shortfalls, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, shortfalls, 2)
	assert.Equal(t, "BTC", shortfalls[0].Coin)
	assert.Equal(t, "ETH", shortfalls[1].Coin)
	assert.Equal(t, "0", shortfalls[1].Available)

	assert.Equal(t, 100.0, testutil.ToFloat64(monitor.Business.ProviderAssetBalance.WithLabelValues("USDT")))
	assert.Equal(t, 9000.0, testutil.ToFloat64(monitor.Business.LedgerLiability.WithLabelValues("DGT")))
}

func TestReconcileSkipsWhenLocked(t *testing.T) {
	locker := lock.NewLocalLock()
	ok, err := locker.Acquire(context.Background(), reconcileLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	s := NewCronService("@every 5m", locker, staticAssets{}, staticLiabilities{{Currency: "BTC", Amount: dec("1")}}, "DGT")
	shortfalls, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, shortfalls)
}

func TestCronRejectsBadSpec(t *testing.T) {
	s := NewCronService("every now and then", lock.NewLocalLock(), staticAssets{}, staticLiabilities{}, "DGT")
	assert.Error(t, s.Start())
}
