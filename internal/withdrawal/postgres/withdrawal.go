package postgres

import (
	"time"

	"gorm.io/gorm"

	ledgermodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/ledger"
	withdrawalmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/withdrawal"
	withdrawalpkg "github.com/frahmantamala/pix-gateway/internal/withdrawal"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) withdrawalpkg.Repository {
	return &WithdrawalRepository{
		db: db,
	}
}

// Create inserts the withdrawal and its ledger pair in one transaction so a
// withdrawal is never observable without its debit trail.
func (r *WithdrawalRepository) Create(w *withdrawalmodel.Withdrawal, entries []*ledgermodel.Entry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(w).Error; err != nil {
			return err
		}

		for _, entry := range entries {
			entry.ReferenceID = w.ID
		}

		if len(entries) > 0 {
			if err := tx.Create(entries).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *WithdrawalRepository) GetByID(id int64) (*withdrawalmodel.Withdrawal, error) {
	var w withdrawalmodel.Withdrawal
	err := r.db.First(&w, id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetByIdempotencyKey(userID int64, idempotencyKey string) (*withdrawalmodel.Withdrawal, error) {
	var w withdrawalmodel.Withdrawal
	err := r.db.Where("user_id = ? AND idempotency_key = ?", userID, idempotencyKey).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetByTransferID(transferID string) (*withdrawalmodel.Withdrawal, error) {
	var w withdrawalmodel.Withdrawal
	err := r.db.Where("transfera_tx_id = ?", transferID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) ListStuck(statuses []string, olderThan time.Time, limit int) ([]withdrawalmodel.Withdrawal, error) {
	var withdrawals []withdrawalmodel.Withdrawal
	err := r.db.Where("status IN ? AND created_at < ?", statuses, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&withdrawals).Error
	return withdrawals, err
}

// MarkProcessing advances REQUESTED -> PROCESSING and records the provider
// transfer id. Conditional on the current status so a concurrent webhook
// cannot be overwritten.
func (r *WithdrawalRepository) MarkProcessing(id int64, transferID string) (bool, error) {
	result := r.db.Model(&withdrawalmodel.Withdrawal{}).
		Where("id = ? AND status = ?", id, withdrawalmodel.StatusRequested).
		Updates(map[string]interface{}{
			"status":          withdrawalmodel.StatusProcessing,
			"transfera_tx_id": transferID,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FinalizeWithEntries is the single writer of terminal withdrawal states.
// The withdrawal update is conditional on a non-terminal status; when it
// wins, the withdrawal's PENDING ledger entries settle to entryStatus inside
// the same transaction.
func (r *WithdrawalRepository) FinalizeWithEntries(id int64, fromStatuses []string, toStatus, entryStatus string, failureReason *string, processedAt time.Time) (bool, error) {
	var finalized bool

	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":       toStatus,
			"processed_at": processedAt,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		}
		if failureReason != nil {
			updates["failure_reason"] = *failureReason
		}

		result := tx.Model(&withdrawalmodel.Withdrawal{}).
			Where("id = ? AND status IN ?", id, fromStatuses).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			finalized = false
			return nil
		}

		if err := tx.Model(&ledgermodel.Entry{}).
			Where("reference_type = ? AND reference_id = ? AND status = ?",
				ledgermodel.ReferenceTypeWithdrawal, id, ledgermodel.StatusPending).
			Update("status", entryStatus).Error; err != nil {
			return err
		}

		finalized = true
		return nil
	})

	return finalized, err
}
