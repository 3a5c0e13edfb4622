package postgres

import (
	"gorm.io/gorm"

	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
	ledgerpkg "github.com/frahmantamala/pix-gateway/internal/ledger"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) ledgerpkg.Repository {
	return &LedgerRepository{
		db: db,
	}
}

func (r *LedgerRepository) CreateAll(entries []*ledgermodel.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.Create(entries).Error
}

// UpdateStatusByReference is a conditional bulk update: only rows still in
// fromStatus move, so concurrent redeliveries settle on a single winner.
func (r *LedgerRepository) UpdateStatusByReference(referenceType string, referenceID int64, fromStatus, toStatus string) (int64, error) {
	result := r.db.Model(&ledgermodel.Entry{}).
		Where("reference_type = ? AND reference_id = ? AND status = ?", referenceType, referenceID, fromStatus).
		Update("status", toStatus)
	return result.RowsAffected, result.Error
}

func (r *LedgerRepository) GetByUserID(userID int64) ([]ledgermodel.Entry, error) {
	var entries []ledgermodel.Entry
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

func (r *LedgerRepository) GetByReference(referenceType string, referenceID int64) ([]ledgermodel.Entry, error) {
	var entries []ledgermodel.Entry
	err := r.db.Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("created_at ASC").Find(&entries).Error
	return entries, err
}
