package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"deposit-core/internal/model"
	"deposit-core/internal/service/mq"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
)

const relayBatchSize = 50

// RelayService 负责将本地消息表的消息搬运到 MQ
// 只有发送成功才标记 SENT => At-least-once, 消费方需按 event_id 幂等
type RelayService struct {
	db       *gorm.DB
	producer mq.Producer
	interval time.Duration
}

func NewRelayService(db *gorm.DB, producer mq.Producer, interval time.Duration) *RelayService {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &RelayService{
		db:       db,
		producer: producer,
		interval: interval,
	}
}

// Start 轮询直到 ctx 结束
func (s *RelayService) Start(ctx context.Context) {
	logger.Info("outbox relay started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			s.RelayOnce(ctx)
		}
	}
}

// RelayOnce 发送一批 PENDING 消息, 返回成功条数
func (s *RelayService) RelayOnce(ctx context.Context) int {
	var messages []model.OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id").
		Limit(relayBatchSize).
		Find(&messages).Error
	if err != nil {
		logger.Error("load outbox messages", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			monitor.Business.OutboxRelayedTotal.WithLabelValues("error").Inc()
			logger.Warn("publish outbox message", zap.Uint64("id", msg.ID), zap.Error(err))
			s.db.WithContext(ctx).Model(&model.OutboxMessage{}).
				Where("id = ?", msg.ID).
				Update("attempts", gorm.Expr("attempts + 1"))
			// 保持顺序: 同一批后面的消息下一轮再发
			break
		}

		// 如果这里更新失败, 下次还会发, 消费方需做好幂等
		if err := s.db.WithContext(ctx).Model(&model.OutboxMessage{}).
			Where("id = ?", msg.ID).
			Update("status", model.OutboxSent).Error; err != nil {
			logger.Error("mark outbox message sent", zap.Uint64("id", msg.ID), zap.Error(err))
			break
		}
		monitor.Business.OutboxRelayedTotal.WithLabelValues("sent").Inc()
		sent++
	}
	return sent
}
