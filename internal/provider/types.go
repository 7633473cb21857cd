package provider

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Asset is the merchant balance of one coin held by the provider.
type Asset struct {
	CoinID     int64           `json:"coinId"`
	CoinSymbol string          `json:"coinSymbol"`
	Available  decimal.Decimal `json:"available"`
}

type DepositAddress struct {
	Address string `json:"address"`
	Memo    string `json:"memo,omitempty"`
}

type WithdrawalRequest struct {
	CoinID                int64           `json:"coinId"`
	Chain                 string          `json:"chain"`
	Address               string          `json:"address"`
	Memo                  string          `json:"memo,omitempty"`
	OrderID               string          `json:"orderId"`
	Amount                decimal.Decimal `json:"amount"`
	MerchantPayNetworkFee bool            `json:"merchantPayNetworkFee"`
}

type Withdrawal struct {
	RecordID string `json:"recordId"`
}

// DepositRecord is the provider's own view of a deposit, used to confirm a
// webhook before crediting.
type DepositRecord struct {
	RecordID    string          `json:"recordId"`
	ReferenceID string          `json:"referenceId"`
	CoinSymbol  string          `json:"coinSymbol"`
	Chain       string          `json:"chain"`
	Amount      decimal.Decimal `json:"amount"`
	TxID        string          `json:"txId"`
	Status      string          `json:"status"`
}

// Completed accepts both the webhook and the record API spelling.
func (r *DepositRecord) Completed() bool {
	return strings.EqualFold(r.Status, "completed") || strings.EqualFold(r.Status, "success")
}
