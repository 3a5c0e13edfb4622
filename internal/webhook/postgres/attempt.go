package postgres

import (
	"time"

	"gorm.io/gorm"

	webhookmodel "github.com/frahmantamala/pix-gateway/internal/core/datamodel/webhook"
	webhookpkg "github.com/frahmantamala/pix-gateway/internal/webhook"
)

type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) webhookpkg.AttemptRepository {
	return &AttemptRepository{
		db: db,
	}
}

// Create always inserts. Upserting by event id would destroy the redelivery
// history that incident diagnosis depends on.
func (r *AttemptRepository) Create(attempt *webhookmodel.Attempt) error {
	return r.db.Create(attempt).Error
}

func (r *AttemptRepository) CountByEvent(provider, eventID string) (int64, error) {
	var count int64
	err := r.db.Model(&webhookmodel.Attempt{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Count(&count).Error
	return count, err
}

// MarkProcessed finalizes status and error once; rows already finalized stay
// as they were.
func (r *AttemptRepository) MarkProcessed(attemptID int64, status string, errorMessage *string) error {
	updates := map[string]interface{}{
		"status":       status,
		"processed_at": time.Now().UTC(),
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	return r.db.Model(&webhookmodel.Attempt{}).
		Where("id = ? AND status = ?", attemptID, webhookmodel.AttemptStatusReceived).
		Updates(updates).Error
}

func (r *AttemptRepository) ListRecent(provider string, limit int) ([]webhookmodel.Attempt, error) {
	var attempts []webhookmodel.Attempt
	query := r.db.Order("created_at DESC").Limit(limit)
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	err := query.Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByEventID(provider, eventID string) ([]webhookmodel.Attempt, error) {
	var attempts []webhookmodel.Attempt
	query := r.db.Where("event_id = ?", eventID).Order("created_at ASC")
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	err := query.Find(&attempts).Error
	return attempts, err
}

type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) webhookpkg.ConfigRepository {
	return &ConfigRepository{
		db: db,
	}
}

func (r *ConfigRepository) GetActive(provider string) (*webhookmodel.Config, error) {
	var config webhookmodel.Config
	err := r.db.Where("provider = ? AND active = ?", provider, true).First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}
