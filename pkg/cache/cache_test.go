package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type balanceRow struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "deposit:test:"), mr
}

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	want := []balanceRow{{Currency: "DGT", Amount: "210"}}
	require.NoError(t, c.Set(ctx, "balance:user:1", want, time.Minute))

	var got []balanceRow
	require.NoError(t, c.Get(ctx, "balance:user:1", &got))
	assert.Equal(t, want, got)

	// stored as a copy
	want[0].Amount = "0"
	require.NoError(t, c.Get(ctx, "balance:user:1", &got))
	assert.Equal(t, "210", got[0].Amount)

	assert.ErrorIs(t, c.Get(ctx, "balance:user:2", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "k", 1, 20*time.Millisecond))
	var v int
	require.NoError(t, c.Get(ctx, "k", &v))

	time.Sleep(40 * time.Millisecond)
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	keys := []string{
		"balance:user:1",
		"txlist:user:1:page:1:size:20:sort:desc",
		"txlist:user:1:page:2:size:20:sort:asc",
		"balance:user:10",
		"balance:user:2",
	}
	for _, k := range keys {
		require.NoError(t, c.Set(ctx, k, k, time.Minute))
	}

	n, err := c.Invalidate(ctx, Any(Contains(":user:1:"), func(k string) bool { return k == "balance:user:1" }))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var s string
	assert.ErrorIs(t, c.Get(ctx, "balance:user:1", &s), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "txlist:user:1:page:2:size:20:sort:asc", &s), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "balance:user:10", &s))
	assert.NoError(t, c.Get(ctx, "balance:user:2", &s))

	n, err = c.Invalidate(ctx, Prefix("balance:"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, c.Len())
}

func TestMatchers(t *testing.T) {
	m := Any(Equals("balance:user:4"), Prefix("txlist:user:4:"))

	assert.True(t, m("balance:user:4"))
	assert.True(t, m("txlist:user:4:page:1:size:20:sort:desc"))
	assert.False(t, m("balance:user:42"))
	assert.False(t, m("txlist:user:42:page:1:size:20:sort:desc"))
	assert.True(t, Contains(":user:4")("balance:user:4"))
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.Set(ctx, "balance:user:1", []balanceRow{{"USDT", "20.00"}}, time.Minute))
	require.NoError(t, c.Set(ctx, "txlist:user:1:page:1:size:20:sort:desc", []string{"a"}, time.Minute))
	require.NoError(t, c.Set(ctx, "balance:user:2", []balanceRow{{"DGT", "10"}}, time.Minute))
	mr.Set("unrelated", "x")

	var rows []balanceRow
	require.NoError(t, c.Get(ctx, "balance:user:1", &rows))
	assert.Equal(t, "20.00", rows[0].Amount)

	n, err := c.Invalidate(ctx, Any(Prefix("balance:user:1"), Contains(":user:1:")))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, c.Get(ctx, "balance:user:1", &rows), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "balance:user:2", &rows))
	assert.True(t, mr.Exists("unrelated"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "balance:user:2", &rows), ErrCacheMiss)
}

func TestMultiLevelCache(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(time.Minute, time.Minute)
	remote, _ := newRedisCache(t)
	c := NewMultiLevelCache(local, remote)

	require.NoError(t, c.Set(ctx, "balance:user:1", "210", time.Minute))

	// L1 miss refills from L2
	require.NoError(t, local.Delete(ctx, "balance:user:1"))
	var s string
	require.NoError(t, c.Get(ctx, "balance:user:1", &s))
	assert.Equal(t, "210", s)
	require.NoError(t, local.Get(ctx, "balance:user:1", &s))

	_, err := c.Invalidate(ctx, Prefix("balance:"))
	require.NoError(t, err)
	assert.ErrorIs(t, c.Get(ctx, "balance:user:1", &s), ErrCacheMiss)
	assert.ErrorIs(t, local.Get(ctx, "balance:user:1", &s), ErrCacheMiss)
}
