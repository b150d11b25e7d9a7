package repository

import (
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// registrationRepository implements the RegistrationRepository interface
type registrationRepository struct {
	db *gorm.DB
}

// NewRegistrationRepository creates a new registration repository instance
func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

// GetByID retrieves a registration by its ID
func (r *registrationRepository) GetByID(id uint) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.First(&reg, id).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetByConfirmationCode retrieves a registration by its confirmation code
func (r *registrationRepository) GetByConfirmationCode(code string) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.Where("confirmation_code = ?", code).First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetByEvent retrieves registrations of an event with pagination
func (r *registrationRepository) GetByEvent(eventID uint, offset, limit int) ([]models.Registration, error) {
	var regs []models.Registration
	err := r.db.
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&regs).Error
	return regs, err
}

// GetByRunner retrieves registrations currently held by a user
func (r *registrationRepository) GetByRunner(userID uint) ([]models.Registration, error) {
	var regs []models.Registration
	err := r.db.
		Where("holder_id = ? OR registered_by_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&regs).Error
	return regs, err
}

// GetByOrganizer retrieves registrations across all events of an organizer
func (r *registrationRepository) GetByOrganizer(organizerID uint, offset, limit int) ([]models.Registration, error) {
	var regs []models.Registration
	err := r.db.
		Joins("JOIN events ON events.id = registrations.event_id").
		Where("events.organizer_id = ?", organizerID).
		Order("registrations.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&regs).Error
	return regs, err
}

// CountByEvent returns the number of registrations of an event
func (r *registrationRepository) CountByEvent(eventID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Registration{}).Where("event_id = ?", eventID).Count(&count).Error
	return count, err
}

// CountActiveByCategory counts registrations that occupy a category slot
func (r *registrationRepository) CountActiveByCategory(categoryID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Registration{}).
		Where("category_id = ? AND status NOT IN ?", categoryID,
			[]string{models.RegistrationStatusCancelled, models.RegistrationStatusRefunded}).
		Count(&count).Error
	return count, err
}
