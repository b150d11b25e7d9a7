package repository

import (
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// GetByID retrieves a webhook event by its ID
func (r *webhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	err := r.db.First(&ev, id).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListFailed retrieves events that were stored but never processed
func (r *webhookEventRepository) ListFailed(offset, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.
		Where("processed = ? AND processing_error <> ''", false).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, err
}

// ListRecent retrieves the most recent events for inspection
func (r *webhookEventRepository) ListRecent(offset, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, err
}
