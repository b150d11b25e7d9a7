package payments

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// Repository persists charge intents and results. The supersede rule (one
// active payment per registration) is enforced under the registration's
// payment rows lock inside WithTx.
type Repository interface {
	WithTx(fn func(Repository) error) error

	GetPayment(id uint) (*models.Payment, error)
	GetPaymentForUpdate(id uint) (*models.Payment, error)
	CreatePayment(p *models.Payment) error
	SavePayment(p *models.Payment) error
	ListPaymentsByRegistrationForUpdate(registrationID uint) ([]models.Payment, error)
	ListPaymentsByRegistration(registrationID uint) ([]models.Payment, error)
	ListPaymentsByTransferForUpdate(transferID uint) ([]models.Payment, error)

	GetRegistration(id uint) (*models.Registration, error)
	GetTransfer(id uint) (*models.TransferRequest, error)
	GetUser(id uint) (*models.User, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetPayment(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.First(&p, id).Error; err != nil {
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

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) SavePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) ListPaymentsByRegistrationForUpdate(registrationID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("registration_id = ?", registrationID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *gormRepository) ListPaymentsByRegistration(registrationID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.
		Where("registration_id = ?", registrationID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *gormRepository) ListPaymentsByTransferForUpdate(transferID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transfer_request_id = ?", transferID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *gormRepository) GetRegistration(id uint) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.First(&reg, id).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *gormRepository) GetTransfer(id uint) (*models.TransferRequest, error) {
	var t models.TransferRequest
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
