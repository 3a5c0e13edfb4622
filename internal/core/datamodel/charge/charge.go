package charge

import (
	"time"
)

const (
	StatusPending  = "PENDING"
	StatusPaid     = "PAID"
	StatusExpired  = "EXPIRED"
	StatusCanceled = "CANCELED"
)

const (
	MethodPix    = "PIX"
	MethodBoleto = "BOLETO"
)

// Charge is a request for an incoming payment. Status PAID implies PaidAt is
// set; the reconciliation path is the only writer of that transition.
type Charge struct {
	ID          int64      `gorm:"primaryKey"`
	MerchantID  int64      `gorm:"column:merchant_id;not null;index"`
	AmountCents int64      `gorm:"column:amount_cents;not null"`
	Currency    string     `gorm:"column:currency;not null;default:BRL"`
	Method      string     `gorm:"column:method;not null"`
	Status      string     `gorm:"column:status;not null;default:PENDING"`
	ExternalRef *string    `gorm:"column:external_ref;index"`
	PixTxid     *string    `gorm:"column:pix_txid;uniqueIndex"`
	PaidAt      *time.Time `gorm:"column:paid_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Charge) TableName() string {
	return "charges"
}

func (c *Charge) IsPaid() bool {
	return c.Status == StatusPaid
}
