package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps entries under a namespace so invalidation can SCAN only its own keys.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.namespace+key, val, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, target interface{}) error {
	val, err := c.client.Get(ctx, c.namespace+key).Result()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), target)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.namespace+key).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, match Matcher) (int, error) {
	var (
		cursor uint64
		doomed []string
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.namespace+"*", 200).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range keys {
			if match(strings.TrimPrefix(k, c.namespace)) {
				doomed = append(doomed, k)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(doomed) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, doomed...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}
