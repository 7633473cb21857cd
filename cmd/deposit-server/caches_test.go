package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/internal/service/balance"
	"deposit-core/internal/service/webhook"
	"deposit-core/pkg/cache"
	"deposit-core/pkg/config"
)

func TestAppliedIndexIsOutsideBalanceCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	for _, driver := range []string{"memory", "redis", "multilevel"} {
		t.Run(driver, func(t *testing.T) {
			mr.FlushAll()
			cfg := config.CacheConfig{Driver: driver, BalanceTTL: time.Minute, AppliedTTL: time.Hour}
			balances := newBalanceCache(cfg, rdb)
			idx := webhook.NewCacheIndex(newAppliedCache(cfg, rdb), cfg.AppliedTTL)

			for _, id := range []string{"r-1", "r-2", "r-3"} {
				idx.Mark(ctx, id)
			}
			require.NoError(t, balances.Set(ctx, balance.BalanceKey(1), []string{"x"}, time.Minute))

			// a match-everything invalidation only sees balance keys
			n, err := balances.Invalidate(ctx, func(string) bool { return true })
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.True(t, idx.Seen(ctx, "r-2"))
		})
	}
}

func TestRedisNamespacesAreSeparated(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	cfg := config.CacheConfig{Driver: "redis", BalanceTTL: time.Minute, AppliedTTL: time.Hour}
	require.NoError(t, newBalanceCache(cfg, rdb).Set(ctx, balance.BalanceKey(1), 1, time.Minute))
	webhook.NewCacheIndex(newAppliedCache(cfg, rdb), time.Hour).Mark(ctx, "r-1")
	require.NoError(t, rdb.Set(ctx, "depositors", "unrelated", 0).Err())

	assert.True(t, mr.Exists(balanceNamespace+"balance:user:1"))
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, appliedNamespace) {
			assert.False(t, strings.HasPrefix(k, balanceNamespace), k)
		}
	}

	n, err := newBalanceCache(cfg, rdb).Invalidate(ctx, cache.Prefix(""))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("depositors"))
}
