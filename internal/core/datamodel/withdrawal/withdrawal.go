package withdrawal

import (
	"time"
)

const (
	StatusRequested  = "REQUESTED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Withdrawal is a payout request. TotalDebitedCents always equals
// AmountCents + FeeCents. IdempotencyKey is unique per user so a retried
// client request can never create a duplicate payout. COMPLETED and FAILED
// are final.
type Withdrawal struct {
	ID                int64      `gorm:"primaryKey"`
	UserID            int64      `gorm:"column:user_id;not null;index"`
	AmountCents       int64      `gorm:"column:amount_cents;not null"`
	FeeCents          int64      `gorm:"column:fee_cents;not null"`
	TotalDebitedCents int64      `gorm:"column:total_debited_cents;not null"`
	Status            string     `gorm:"column:status;not null;default:REQUESTED"`
	TransferaTxID     *string    `gorm:"column:transfera_tx_id;index"`
	FailureReason     *string    `gorm:"column:failure_reason"`
	IdempotencyKey    string     `gorm:"column:idempotency_key;not null"`
	Version           int64      `gorm:"column:version;not null;default:0"`
	ProcessedAt       *time.Time `gorm:"column:processed_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

func (w *Withdrawal) IsTerminal() bool {
	return w.Status == StatusCompleted || w.Status == StatusFailed
}
