package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"deposit-core/internal/handler/request"
	"deposit-core/internal/handler/response"
	"deposit-core/internal/service/ledger"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/validator"
)

type BalanceReader interface {
	GetBalance(ctx context.Context, userID uint64) ([]ledger.Balance, error)
	ListTransactions(ctx context.Context, userID uint64, p ledger.Page) (ledger.EntryPage, error)
}

type BalanceHandler struct {
	balances BalanceReader
}

func NewBalanceHandler(balances BalanceReader) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

// GetBalances 查询用户余额
// @Summary User balances
// @Tags balance
// @Produce json
// @Param id path int true "user id"
// @Success 200 {object} response.Response
// @Router /api/v1/users/{id}/balances [get]
func (h *BalanceHandler) GetBalances(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	balances, err := h.balances.GetBalance(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": uid, "balances": balances})
}

// ListTransactions 分页查询账本流水
// @Summary User ledger history
// @Tags balance
// @Produce json
// @Param id path int true "user id"
// @Param page query int false "page, from 1"
// @Param size query int false "page size, max 100"
// @Param sort query string false "asc or desc"
// @Success 200 {object} response.Response
// @Router /api/v1/users/{id}/transactions [get]
func (h *BalanceHandler) ListTransactions(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req request.ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	page, err := h.balances.ListTransactions(c.Request.Context(), uid, ledger.Page{Page: req.Page, Size: req.Size, Sort: req.Sort})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}
