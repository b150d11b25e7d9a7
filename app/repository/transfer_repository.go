package repository

import (
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// transferRepository implements the TransferRepository interface
type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new transfer repository instance
func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{db: db}
}

// GetByID retrieves a transfer request by its ID
func (r *transferRepository) GetByID(id uint) (*models.TransferRequest, error) {
	var req models.TransferRequest
	err := r.db.First(&req, id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByRegistration retrieves all transfer requests of a registration
func (r *transferRepository) GetByRegistration(registrationID uint) ([]models.TransferRequest, error) {
	var reqs []models.TransferRequest
	err := r.db.Where("registration_id = ?", registrationID).Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

// GetByRequester retrieves all transfer requests opened by a user
func (r *transferRepository) GetByRequester(userID uint) ([]models.TransferRequest, error) {
	var reqs []models.TransferRequest
	err := r.db.Where("requester_id = ?", userID).Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

// ListPending retrieves open transfer requests for admin review
func (r *transferRepository) ListPending(offset, limit int) ([]models.TransferRequest, error) {
	var reqs []models.TransferRequest
	err := r.db.
		Where("status = ?", models.TransferStatusPending).
		Order("created_at ASC").
		Offset(offset).Limit(limit).
		Find(&reqs).Error
	return reqs, err
}
