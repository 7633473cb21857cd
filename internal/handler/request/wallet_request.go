package request

import "github.com/shopspring/decimal"

type DepositAddressRequest struct {
	Chain string `json:"chain" binding:"required,max=32"`
}

type CreateWithdrawalRequest struct {
	UserID     uint64          `json:"user_id" binding:"required"`
	CoinID     int64           `json:"coin_id" binding:"required"`
	CoinSymbol string          `json:"coin_symbol" binding:"required,max=16"`
	Chain      string          `json:"chain" binding:"required,max=32"`
	ToAddress  string          `json:"to_address" binding:"required"`
	Memo       string          `json:"memo" binding:"omitempty,max=64"`
	Amount     decimal.Decimal `json:"amount" binding:"positive_decimal"`
}
