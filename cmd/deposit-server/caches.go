package main

import (
	"time"

	"deposit-core/pkg/cache"
	"deposit-core/pkg/config"

	"github.com/redis/go-redis/v9"
)

// Redis namespaces. Neither is a prefix of the other, so a balance
// invalidation SCAN never walks applied event ids.
const (
	balanceNamespace = "deposit:cache:"
	appliedNamespace = "deposit:applied:"
)

// newBalanceCache 根据配置选择余额缓存实现
func newBalanceCache(cfg config.CacheConfig, rdb *redis.Client) cache.Cache {
	switch cfg.Driver {
	case "redis":
		return cache.NewRedisCache(rdb, balanceNamespace)
	case "multilevel":
		return cache.NewMultiLevelCache(cache.NewMemoryCache(cfg.BalanceTTL, time.Minute), cache.NewRedisCache(rdb, balanceNamespace))
	default:
		return cache.NewMemoryCache(cfg.BalanceTTL, time.Minute)
	}
}

// newAppliedCache 已入账事件索引, 与余额缓存分开存放
func newAppliedCache(cfg config.CacheConfig, rdb *redis.Client) cache.Cache {
	if cfg.Driver == "redis" || cfg.Driver == "multilevel" {
		return cache.NewRedisCache(rdb, appliedNamespace)
	}
	return cache.NewMemoryCache(cfg.AppliedTTL, 10*time.Minute)
}
