package pixkey

import (
	"time"
)

const (
	TypeCPF    = "cpf"
	TypeCNPJ   = "cnpj"
	TypeEmail  = "email"
	TypePhone  = "telefone"
	TypeRandom = "chave_aleatoria"
)

// PixKey is a user's registered payout destination. Only verified keys may
// receive transfers.
type PixKey struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	KeyType   string    `gorm:"column:key_type;not null"`
	KeyValue  string    `gorm:"column:key_value;not null"`
	Verified  bool      `gorm:"column:verified;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PixKey) TableName() string {
	return "pix_keys"
}
