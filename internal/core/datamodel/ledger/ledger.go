package ledger

import (
	"time"
)

const (
	StatusPending  = "PENDING"
	StatusPosted   = "POSTED"
	StatusCanceled = "CANCELED"
)

const (
	TypeChargeNet       = "CHARGE_NET"
	TypeWithdrawalDebit = "WITHDRAWAL_DEBIT"
	TypeWithdrawalFee   = "WITHDRAWAL_FEE"
)

const (
	ReferenceTypeCharge     = "charge"
	ReferenceTypeWithdrawal = "withdrawal"
)

// Entry is an atomic money-movement record. Amount and direction are
// immutable once created; only Status transitions, and only
// PENDING -> POSTED or PENDING -> CANCELED.
type Entry struct {
	ID            int64     `gorm:"primaryKey"`
	UserID        int64     `gorm:"column:user_id;not null;index"`
	Type          string    `gorm:"column:type;not null"`
	Status        string    `gorm:"column:status;not null;default:PENDING"`
	AmountCents   int64     `gorm:"column:amount_cents;not null"`
	IsCredit      bool      `gorm:"column:is_credit;not null"`
	ReferenceType string    `gorm:"column:reference_type;not null"`
	ReferenceID   int64     `gorm:"column:reference_id;not null;index"`
	OccurredAt    time.Time `gorm:"column:occurred_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Entry) TableName() string {
	return "ledger_entries"
}

// IsWithdrawalHold reports whether a pending entry represents funds committed
// to an in-flight payout, which must reduce the available balance.
func (e *Entry) IsWithdrawalHold() bool {
	return e.Status == StatusPending &&
		(e.Type == TypeWithdrawalDebit || e.Type == TypeWithdrawalFee)
}
