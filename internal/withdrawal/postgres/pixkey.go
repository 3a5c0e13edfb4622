package postgres

import (
	"gorm.io/gorm"

	pixkeymodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/pixkey"
	withdrawalpkg "github.com/frahmantamala/pix-gateway/internal/withdrawal"
)

type PixKeyRepository struct {
	db *gorm.DB
}

func NewPixKeyRepository(db *gorm.DB) withdrawalpkg.PixKeyRepository {
	return &PixKeyRepository{
		db: db,
	}
}

// GetByUserID returns the user's most recent key, preferring verified ones.
// The service decides whether an unverified key is acceptable (it is not).
func (r *PixKeyRepository) GetByUserID(userID int64) (*pixkeymodel.PixKey, error) {
	var key pixkeymodel.PixKey
	err := r.db.Where("user_id = ?", userID).
		Order("verified DESC, created_at DESC").
		First(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}
