package webhook

import (
	"time"
)

const (
	AttemptStatusReceived  = "received"
	AttemptStatusProcessed = "processed"
	AttemptStatusRejected  = "rejected"
	AttemptStatusFailed    = "failed"
)

// Attempt records one inbound webhook delivery. Rows are append-only: a
// redelivery of the same (provider, event_id) inserts a new row so the full
// redelivery history stays queryable.
type Attempt struct {
	ID             int64      `gorm:"primaryKey"`
	Provider       string     `gorm:"column:provider;not null;index:idx_webhook_attempts_event,priority:1"`
	Type           string     `gorm:"column:type;not null"`
	EventID        string     `gorm:"column:event_id;not null;index:idx_webhook_attempts_event,priority:2"`
	Attempt        int        `gorm:"column:attempt;not null;default:1"`
	Status         string     `gorm:"column:status;not null;default:received"`
	SignatureValid bool       `gorm:"column:signature_valid;not null"`
	ErrorMessage   *string    `gorm:"column:error_message"`
	ProcessedAt    *time.Time `gorm:"column:processed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Attempt) TableName() string {
	return "webhook_attempts"
}

// Config holds the per-merchant shared secret used to authenticate a
// provider's webhook deliveries.
type Config struct {
	ID         int64  `gorm:"primaryKey"`
	Provider   string `gorm:"column:provider;not null;index"`
	MerchantID int64  `gorm:"column:merchant_id;not null"`
	Secret     string `gorm:"column:secret;not null"`
	// No default tag: gorm drops zero-valued fields that carry one, which
	// would store a deactivated config as active. The migration supplies the
	// SQL-level default.
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Config) TableName() string {
	return "webhook_configs"
}
