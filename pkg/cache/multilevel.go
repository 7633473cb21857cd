package cache

import (
	"context"
	"time"
)

const l1RefillTTL = 5 * time.Second

// MultiLevelCache layers an in-process cache (L1) over a shared one (L2).
type MultiLevelCache struct {
	local  Cache
	remote Cache
}

func NewMultiLevelCache(local, remote Cache) *MultiLevelCache {
	return &MultiLevelCache{
		local:  local,
		remote: remote,
	}
}

func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	// L1 lives half as long so a peer's invalidation of L2 is observed sooner
	_ = m.local.Set(ctx, key, value, ttl/2)
	return m.remote.Set(ctx, key, value, ttl)
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}

	if err := m.remote.Get(ctx, key, target); err != nil {
		return err
	}
	// L1 is not invalidated by peers, keep refills short-lived
	_ = m.local.Set(ctx, key, target, l1RefillTTL)
	return nil
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	return m.remote.Delete(ctx, key)
}

// Invalidate clears L2 before L1 so an L1 miss cannot refill from a stale L2 entry.
func (m *MultiLevelCache) Invalidate(ctx context.Context, match Matcher) (int, error) {
	n, err := m.remote.Invalidate(ctx, match)
	if err != nil {
		return n, err
	}
	local, err := m.local.Invalidate(ctx, match)
	if local > n {
		n = local
	}
	return n, err
}
