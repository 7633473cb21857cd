package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"deposit-core/internal/service/webhook"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/signature"
)

const (
	maxWebhookBody  = 1 << 20
	webhookDeadline = time.Minute
)

type WebhookProcessor interface {
	Process(ctx context.Context, d webhook.Delivery) (webhook.Result, error)
}

type WebhookHandler struct {
	proc WebhookProcessor
}

func NewWebhookHandler(proc WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{proc: proc}
}

type webhookAck struct {
	Outcome string `json:"outcome"`
	EventID string `json:"event_id,omitempty"`
}

// Receive 接收支付服务商回调
// @Summary Payment provider webhook
// @Description Verifies the Appid/Sign/Timestamp headers over the raw body and applies the event once.
// @Description 200 for applied, replayed and ignored events; 401 bad signature; 400 invalid payload; 500 retry later.
// @Tags webhook
// @Accept json
// @Produce json
// @Param Appid header string true "application id"
// @Param Sign header string true "hex HMAC-SHA256"
// @Param Timestamp header string true "unix seconds"
// @Success 200 {object} webhookAck
// @Router /api/v1/webhooks/provider [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	// 必须使用原始字节验签, 不能先反序列化
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.Warn("read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, webhookAck{Outcome: string(webhook.OutcomeInvalidPayload)})
		return
	}

	// 服务商断开连接不应中断入账事务
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), webhookDeadline)
	defer cancel()

	res, _ := h.proc.Process(ctx, webhook.Delivery{
		Body:      body,
		AppID:     c.GetHeader(signature.HeaderAppID),
		Signature: c.GetHeader(signature.HeaderSign),
		Timestamp: c.GetHeader(signature.HeaderTimestamp),
	})

	ack := webhookAck{Outcome: string(res.Outcome)}
	if res.HTTPStatus() == http.StatusOK {
		ack.EventID = res.EventID
	}
	c.JSON(res.HTTPStatus(), ack)
}
