package registration

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// Repository provides DB operations used by the registration service. WithTx
// runs fn inside one transaction; ForUpdate reads take a row lock so
// concurrent writers of the same registration serialize.
type Repository interface {
	WithTx(fn func(Repository) error) error

	GetRegistration(id uint) (*models.Registration, error)
	GetRegistrationForUpdate(id uint) (*models.Registration, error)
	GetRegistrationByCode(code string) (*models.Registration, error)
	CreateRegistration(reg *models.Registration) error
	SaveRegistration(reg *models.Registration) error
	ConfirmationCodeExists(code string) (bool, error)
	CountActiveByCategory(categoryID uint) (int64, error)

	GetEvent(id uint) (*models.Event, error)
	GetCategoryForUpdate(id uint) (*models.EventCategory, error)
	GetKit(id uint) (*models.EventKit, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a registration repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetRegistration(id uint) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.First(&reg, id).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *gormRepository) GetRegistrationForUpdate(id uint) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reg, id).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *gormRepository) GetRegistrationByCode(code string) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.Where("confirmation_code = ?", code).First(&reg).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *gormRepository) CreateRegistration(reg *models.Registration) error {
	return r.db.Create(reg).Error
}

func (r *gormRepository) SaveRegistration(reg *models.Registration) error {
	return r.db.Save(reg).Error
}

func (r *gormRepository) ConfirmationCodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Registration{}).Where("confirmation_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CountActiveByCategory(categoryID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Registration{}).
		Where("category_id = ? AND status NOT IN ?", categoryID,
			[]string{models.RegistrationStatusCancelled, models.RegistrationStatusRefunded}).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) GetEvent(id uint) (*models.Event, error) {
	var event models.Event
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormRepository) GetCategoryForUpdate(id uint) (*models.EventCategory, error) {
	var cat models.EventCategory
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cat, id).Error
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *gormRepository) GetKit(id uint) (*models.EventKit, error) {
	var kit models.EventKit
	if err := r.db.First(&kit, id).Error; err != nil {
		return nil, err
	}
	return &kit, nil
}
