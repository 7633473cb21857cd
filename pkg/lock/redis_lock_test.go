package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a := NewRedisLock(client)
	b := NewRedisLock(client)

	ok, err := a.Acquire(ctx, "cron:reconcile", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "cron:reconcile", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// b never held it, so its release must not free a's lock
	require.NoError(t, b.Release(ctx, "cron:reconcile"))
	assert.True(t, mr.Exists("lock:cron:reconcile"))

	require.NoError(t, a.Release(ctx, "cron:reconcile"))
	ok, err = b.Acquire(ctx, "cron:reconcile", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = a.Acquire(ctx, "cron:reconcile", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLock()

	ok, _ := l.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok)
	ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "k"))
	ok, _ = l.Acquire(ctx, "k", time.Minute)
	assert.True(t, ok)
}
