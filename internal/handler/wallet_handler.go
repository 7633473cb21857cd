package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"deposit-core/internal/handler/request"
	"deposit-core/internal/handler/response"
	"deposit-core/internal/provider"
	"deposit-core/internal/service/ledger"
	"deposit-core/pkg/address"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/validator"
)

// WalletProvider is the part of the payment provider the wallet routes use.
type WalletProvider interface {
	GetOrCreateDepositAddress(ctx context.Context, referenceID, chain string) (*provider.DepositAddress, error)
	RequestWithdrawal(ctx context.Context, req provider.WithdrawalRequest) (*provider.Withdrawal, error)
}

type BalanceLookup interface {
	Balances(ctx context.Context, userID uint64) ([]ledger.Balance, error)
}

type WalletHandler struct {
	provider  WalletProvider
	balances  BalanceLookup
	addresses *address.Validator
}

func NewWalletHandler(p WalletProvider, balances BalanceLookup, addresses *address.Validator) *WalletHandler {
	if addresses == nil {
		addresses = address.NewValidator(nil)
	}
	return &WalletHandler{provider: p, balances: balances, addresses: addresses}
}

// GetDepositAddress 获取(或创建)用户充值地址
// @Summary Deposit address for a user
// @Tags internal
// @Accept json
// @Produce json
// @Param id path int true "user id"
// @Param request body request.DepositAddressRequest true "chain"
// @Success 200 {object} response.Response
// @Router /internal/v1/users/{id}/deposit-address [post]
func (h *WalletHandler) GetDepositAddress(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req request.DepositAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	// referenceId 即用户 ID, 回调时据此入账
	addr, err := h.provider.GetOrCreateDepositAddress(c.Request.Context(), strconv.FormatUint(uid, 10), strings.ToUpper(req.Chain))
	if err != nil {
		logger.Error("deposit address", zap.Uint64("user_id", uid), zap.String("chain", req.Chain), zap.Error(err))
		response.Error(c, providerErr(err))
		return
	}
	response.Success(c, gin.H{"user_id": uid, "chain": strings.ToUpper(req.Chain), "address": addr.Address, "memo": addr.Memo})
}

// CreateWithdrawal 申请提币
// @Summary Request an on-chain withdrawal
// @Description The ledger is debited when the provider reports the withdrawal completed.
// @Tags internal
// @Accept json
// @Produce json
// @Param request body request.CreateWithdrawalRequest true "withdrawal"
// @Success 200 {object} response.Response
// @Router /internal/v1/withdrawals [post]
func (h *WalletHandler) CreateWithdrawal(c *gin.Context) {
	var req request.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	if err := h.addresses.Validate(req.Chain, req.ToAddress); err != nil {
		if errors.Is(err, address.ErrUnsupportedChain) {
			response.Error(c, errno.ErrUnsupportedChain)
			return
		}
		response.Error(c, errno.ErrInvalidAddress)
		return
	}

	ctx := c.Request.Context()
	held, err := h.held(ctx, req.UserID, req.CoinSymbol)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	if held.LessThan(req.Amount) {
		response.Error(c, errno.ErrInsufficientBalance)
		return
	}

	orderID := fmt.Sprintf("%d-%s", req.UserID, uuid.NewString())
	w, err := h.provider.RequestWithdrawal(ctx, provider.WithdrawalRequest{
		CoinID:  req.CoinID,
		Chain:   strings.ToUpper(req.Chain),
		Address: req.ToAddress,
		Memo:    req.Memo,
		OrderID: orderID,
		Amount:  req.Amount,
	})
	if err != nil {
		logger.Error("request withdrawal", zap.String("order_id", orderID), zap.Error(err))
		response.Error(c, providerErr(err))
		return
	}

	logger.Info("withdrawal requested", zap.String("order_id", orderID), zap.String("record_id", w.RecordID))
	response.Success(c, gin.H{"order_id": orderID, "record_id": w.RecordID})
}

func (h *WalletHandler) held(ctx context.Context, userID uint64, coin string) (decimal.Decimal, error) {
	balances, err := h.balances.Balances(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range balances {
		if strings.EqualFold(b.Currency, coin) {
			return b.Amount, nil
		}
	}
	return decimal.Zero, nil
}

// providerErr keeps the provider's own message out of the response.
func providerErr(err error) error {
	if errors.Is(err, errno.ErrProviderUnavailable) {
		return errno.ErrProviderUnavailable
	}
	return errno.ErrPaymentProvider
}
