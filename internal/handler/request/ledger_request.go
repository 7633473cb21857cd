package request

import "github.com/shopspring/decimal"

type CreateLedgerEntryRequest struct {
	UserID         uint64          `json:"user_id" binding:"required"`
	Currency       string          `json:"currency" binding:"required,max=16"`
	Amount         decimal.Decimal `json:"amount" binding:"positive_decimal"`
	Direction      string          `json:"direction" binding:"required,oneof=credit debit"`
	Reason         string          `json:"reason" binding:"omitempty,oneof=adjustment withdrawal"`
	IdempotencyKey string          `json:"idempotency_key" binding:"omitempty,max=128"`
}

type ListTransactionsRequest struct {
	Page int    `form:"page" binding:"omitempty,min=1,max=100000"`
	Size int    `form:"size" binding:"omitempty,min=1,max=100"`
	Sort string `form:"sort" binding:"omitempty,oneof=asc desc"`
}
