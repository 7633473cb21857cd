package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger reason codes.
const (
	ReasonWelcomeBonus         = "welcome_bonus"
	ReasonDepositConversion    = "deposit_conversion"
	ReasonDepositCrypto        = "deposit_crypto"
	ReasonWithdrawal           = "withdrawal"
	ReasonWebhookReplayIgnored = "webhook_replay_ignored"
	ReasonAdjustment           = "adjustment"
)

// LedgerEntry 账本流水，只追加不修改。余额 = 同一 user+currency 的 Delta 之和
type LedgerEntry struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint64          `gorm:"not null;index:idx_ledger_user_currency" json:"user_id"`
	Currency       string          `gorm:"type:varchar(16);not null;index:idx_ledger_user_currency" json:"currency"`
	Delta          decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"delta"`
	Reason         string          `gorm:"type:varchar(32);not null" json:"reason"`
	SourceEventID  *string         `gorm:"type:varchar(128);index" json:"source_event_id,omitempty"`
	IdempotencyKey *string         `gorm:"type:varchar(160);uniqueIndex" json:"-"` // 非空时全局唯一, 例如 welcome_bonus:<uid>
	CreatedAt      time.Time       `json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// WebhookEvent 已应用的 provider 事件。provider_event_id 唯一索引是去重的最终依据
type WebhookEvent struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderEventID string          `gorm:"type:varchar(128);not null;uniqueIndex" json:"provider_event_id"`
	Kind            string          `gorm:"type:varchar(16);not null" json:"kind"` // deposit, withdrawal
	UserID          uint64          `gorm:"not null;index" json:"user_id"`
	CoinSymbol      string          `gorm:"type:varchar(16);not null" json:"coin_symbol"`
	Chain           string          `gorm:"type:varchar(32)" json:"chain"`
	Amount          decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	TxHash          string          `gorm:"type:varchar(128)" json:"tx_hash"`
	Status          string          `gorm:"type:varchar(16);not null" json:"status"`
	Payload         []byte          `gorm:"type:text" json:"-"`
	AppliedAt       time.Time       `json:"applied_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// UserSetting 用户的自动兑换配置
type UserSetting struct {
	UserID      uint64    `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	AutoConvert bool      `gorm:"not null" json:"auto_convert"`
	RateSource  string    `gorm:"type:varchar(32);not null;default:''" json:"rate_source"` // 空值使用默认汇率源
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (UserSetting) TableName() string {
	return "user_settings"
}

// ExchangeRate 每单位币种可兑换的平台币数量
type ExchangeRate struct {
	Coin      string          `gorm:"type:varchar(16);primaryKey" json:"coin"`
	Rate      decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (ExchangeRate) TableName() string {
	return "exchange_rates"
}

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string    `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string    `gorm:"type:varchar(255)" json:"key"`
	Payload   []byte    `gorm:"type:text;not null" json:"payload"`
	Status    string    `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
