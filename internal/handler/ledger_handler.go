package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler/request"
	"deposit-core/internal/handler/response"
	"deposit-core/internal/model"
	"deposit-core/internal/service/ledger"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/validator"
)

type LedgerWriter interface {
	Credit(ctx context.Context, e ledger.Entry) (*model.LedgerEntry, bool, error)
	Debit(ctx context.Context, e ledger.Entry) (*model.LedgerEntry, bool, error)
	GrantWelcomeBonus(ctx context.Context, userID uint64) (*model.LedgerEntry, bool, error)
}

type LedgerHandler struct {
	ledger LedgerWriter
}

func NewLedgerHandler(l LedgerWriter) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// CreateEntry 手工记账 (credit / debit)
// @Summary Append a ledger entry
// @Description A repeated idempotency_key returns the first entry with created=false.
// @Tags internal
// @Accept json
// @Produce json
// @Param request body request.CreateLedgerEntryRequest true "entry"
// @Success 200 {object} response.Response
// @Router /internal/v1/ledger/entries [post]
func (h *LedgerHandler) CreateEntry(c *gin.Context) {
	var req request.CreateLedgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	e := ledger.Entry{
		UserID:         req.UserID,
		Currency:       req.Currency,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	}

	write := h.ledger.Credit
	if req.Direction == "debit" {
		write = h.ledger.Debit
	}
	entry, created, err := write(c.Request.Context(), e)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"entry": entry, "created": created})
}

// GrantWelcomeBonus
// @Summary Grant the one-time welcome bonus
// @Tags internal
// @Produce json
// @Param id path int true "user id"
// @Success 200 {object} response.Response
// @Router /internal/v1/users/{id}/welcome-bonus [post]
func (h *LedgerHandler) GrantWelcomeBonus(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, created, err := h.ledger.GrantWelcomeBonus(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	// entry is nil when the bonus is disabled
	response.Success(c, gin.H{"entry": entry, "created": created})
}
