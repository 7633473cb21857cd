package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"deposit-core/pkg/logger"
)

// KafkaConsumer 实现 Consumer 接口
type KafkaConsumer struct {
	brokers      []string
	groupID      string
	reader       *kafka.Reader
	retryBackoff time.Duration
}

// NewKafkaConsumer 创建 Kafka 消费者
func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers:      brokers,
		groupID:      groupID,
		retryBackoff: time.Second,
	}
}

// Subscribe 订阅 Kafka 主题, 阻塞直到 ctx 结束
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	// GroupID: 同组内同一分区只有一个消费者
	// StartOffset: 新组从最新消息开始
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     c.groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	defer c.reader.Close()

	logger.Info("kafka consumer started", zap.String("topic", topic), zap.String("group", c.groupID))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("kafka fetch failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		msg := &Message{
			ID:      fmt.Sprintf("%d/%d", m.Partition, m.Offset),
			Topic:   m.Topic,
			Key:     string(m.Key),
			Payload: m.Value,
		}

		// 提交是按分区偏移量的, 跳过失败消息再提交后续消息会越过它
		// 所以原地重试直到成功或 ctx 结束
		if !retryUntilDone(ctx, msg, handler, c.retryBackoff) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			logger.Warn("kafka commit failed", zap.String("id", msg.ID), zap.Error(err))
		}
	}
}

// retryUntilDone runs handler until it succeeds. It returns false if ctx
// ended first; the message is then neither handled nor committed.
func retryUntilDone(ctx context.Context, msg *Message, handler func(msg *Message) error, backoff time.Duration) bool {
	for {
		err := handler(msg)
		if err == nil {
			return true
		}
		logger.Warn("kafka handler failed, retrying", zap.String("id", msg.ID), zap.Error(err))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
