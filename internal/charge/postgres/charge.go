package postgres

import (
	"time"

	"gorm.io/gorm"

	chargepkg "github.com/frahmantamala/pix-gateway/internal/charge"
	chargemodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/charge"
	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
)

type ChargeRepository struct {
	db *gorm.DB
}

func NewChargeRepository(db *gorm.DB) chargepkg.Repository {
	return &ChargeRepository{
		db: db,
	}
}

func (r *ChargeRepository) GetByID(id int64) (*chargemodel.Charge, error) {
	var c chargemodel.Charge
	err := r.db.First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChargeRepository) GetByPixTxid(txid string) (*chargemodel.Charge, error) {
	var c chargemodel.Charge
	err := r.db.Where("pix_txid = ?", txid).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChargeRepository) GetByExternalRef(externalRef string) (*chargemodel.Charge, error) {
	var c chargemodel.Charge
	err := r.db.Where("external_ref = ?", externalRef).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkPaidWithCredit transitions the charge to PAID and appends the ledger
// credit in one transaction. The UPDATE is conditional on status=PENDING; a
// zero-row update means another delivery already won the race, and neither
// the charge nor the ledger is touched.
func (r *ChargeRepository) MarkPaidWithCredit(chargeID int64, paidAt time.Time, entry *ledgermodel.Entry) (bool, error) {
	var updated bool

	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&chargemodel.Charge{}).
			Where("id = ? AND status = ?", chargeID, chargemodel.StatusPending).
			Updates(map[string]interface{}{
				"status":     chargemodel.StatusPaid,
				"paid_at":    paidAt,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			updated = false
			return nil
		}

		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		updated = true
		return nil
	})

	return updated, err
}
