package mq

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStreamRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const topic = "wallet.deposit.applied"
	require.NoError(t, client.XGroupCreateMkStream(ctx, topic, "cli", "0").Err())

	p := NewRedisProducer(client)
	require.NoError(t, p.Publish(ctx, topic, "42", []byte(`{"event_id":"dep-1"}`)))

	c := NewRedisConsumer(client, "cli", "tester")
	c.block = 50 * time.Millisecond

	got := make(chan *Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, topic, func(msg *Message) error {
			got <- msg
			cancel()
			return nil
		})
	}()

	select {
	case msg := <-got:
		assert.Equal(t, "42", msg.Key)
		assert.JSONEq(t, `{"event_id":"dep-1"}`, string(msg.Payload))
	case <-time.After(3 * time.Second):
		t.Fatal("message not consumed")
	}
	assert.NoError(t, <-done)
}
