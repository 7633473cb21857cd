package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process cache. Values are stored as JSON so callers
// never share mutable state with the cache, matching RedisCache behaviour.
type MemoryCache struct {
	mu sync.Mutex // orders writes against invalidation
	c  *gocache.Cache
}

// NewMemoryCache builds a cache whose expired items are reaped every cleanupInterval.
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		c: gocache.New(defaultExpiration, cleanupInterval),
	}
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}

	m.mu.Lock()
	m.c.Set(key, b, expiration(ttl))
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, key string, target interface{}) error {
	// go-cache reports expired items as not found
	val, found := m.c.Get(key)
	if !found {
		return ErrCacheMiss
	}
	b, ok := val.([]byte)
	if !ok {
		return fmt.Errorf("cache entry %s has unexpected type %T", key, val)
	}
	return json.Unmarshal(b, target)
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.c.Delete(key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Invalidate(ctx context.Context, match Matcher) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key := range m.c.Items() {
		if match(key) {
			m.c.Delete(key)
			n++
		}
	}
	return n, nil
}

// Len reports the number of unexpired entries.
func (m *MemoryCache) Len() int {
	return len(m.c.Items())
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.DefaultExpiration
	}
	return ttl
}
