package webhook

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// Repository persists the webhook event log and resolves charges to their
// owning payment rows. The dedupe check and the processed flag share a
// transaction through WithTx, which is what makes replays safe under
// concurrent deliveries.
type Repository interface {
	WithTx(fn func(Repository) error) error

	CreateEventIfNotExists(ev *models.WebhookEvent) (created bool, err error)
	GetEventForUpdate(dedupeKey string) (*models.WebhookEvent, error)
	MarkProcessed(ev *models.WebhookEvent) error
	RecordError(dedupeKey, message string) error
	ListUnprocessedEvents(limit int) ([]models.WebhookEvent, error)

	GetPaymentByChargeID(chargeID string) (*models.Payment, error)
	GetPaymentForUpdate(id uint) (*models.Payment, error)
	SavePayment(p *models.Payment) error
	ListStalePendingPayments(olderThan time.Time, limit int) ([]models.Payment, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a webhook repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// CreateEventIfNotExists inserts the raw event, relying on the unique index
// on dedupe_key. A lost insert race reports created=false, same as an
// already-stored event.
func (r *gormRepository) CreateEventIfNotExists(ev *models.WebhookEvent) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) GetEventForUpdate(dedupeKey string) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("dedupe_key = ?", dedupeKey).
		First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) MarkProcessed(ev *models.WebhookEvent) error {
	now := time.Now()
	ev.Processed = true
	ev.ProcessedAt = &now
	ev.ProcessingError = ""
	return r.db.Save(ev).Error
}

func (r *gormRepository) RecordError(dedupeKey, message string) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("dedupe_key = ?", dedupeKey).
		Update("processing_error", message).Error
}

func (r *gormRepository) ListUnprocessedEvents(limit int) ([]models.WebhookEvent, error) {
	var out []models.WebhookEvent
	err := r.db.
		Where("processed = ? AND token_valid = ?", false, true).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *gormRepository) GetPaymentByChargeID(chargeID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("gateway_charge_id = ?", chargeID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPaymentForUpdate(id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) SavePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) ListStalePendingPayments(olderThan time.Time, limit int) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.
		Where("status = ? AND gateway_charge_id <> '' AND updated_at < ?", models.ChargeStatusPending, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
