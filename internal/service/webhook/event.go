package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"deposit-core/pkg/validator"
)

const (
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"

	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event is the provider's webhook body.
type Event struct {
	Type        string          `json:"type" binding:"required,oneof=deposit withdrawal"`
	RecordID    string          `json:"recordId" binding:"required,max=128"`
	ReferenceID string          `json:"referenceId" binding:"required,numeric"`
	CoinSymbol  string          `json:"coinSymbol" binding:"required,max=16"`
	Chain       string          `json:"chain" binding:"max=32"`
	Amount      decimal.Decimal `json:"amount" binding:"positive_decimal"`
	TxID        string          `json:"txId" binding:"max=128"`
	Status      string          `json:"status" binding:"required,oneof=pending completed failed"`
	Timestamp   int64           `json:"timestamp"`

	userID uint64
}

// UserID is the platform user the provider echoes back as referenceId.
func (e *Event) UserID() uint64 {
	return e.userID
}

// ParseEvent decodes and validates a webhook body. It must only be called
// on a body whose signature has already been checked.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	ev.Type = strings.ToLower(ev.Type)
	ev.Status = strings.ToLower(ev.Status)
	ev.CoinSymbol = strings.ToUpper(ev.CoinSymbol)

	if err := validator.Struct(&ev); err != nil {
		return nil, fmt.Errorf("%s", validator.GetErrorMsg(err))
	}

	uid, err := strconv.ParseUint(ev.ReferenceID, 10, 64)
	if err != nil || uid == 0 {
		return nil, fmt.Errorf("referenceId %q is not a user id", ev.ReferenceID)
	}
	ev.userID = uid
	return &ev, nil
}
