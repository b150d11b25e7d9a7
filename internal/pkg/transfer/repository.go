package transfer

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// Repository provides DB operations used by the transfer workflow. The
// completion path mutates the transfer request and the source registration
// inside one WithTx call, which is what makes completion atomic.
type Repository interface {
	WithTx(fn func(Repository) error) error

	GetTransfer(id uint) (*models.TransferRequest, error)
	GetTransferForUpdate(id uint) (*models.TransferRequest, error)
	GetActiveTransferByRegistration(registrationID uint) (*models.TransferRequest, error)
	ListTransfersByRegistration(registrationID uint) ([]models.TransferRequest, error)
	CreateTransfer(t *models.TransferRequest) error
	SaveTransfer(t *models.TransferRequest) error

	GetRegistrationForUpdate(id uint) (*models.Registration, error)
	SaveRegistration(reg *models.Registration) error

	FindUserByCPF(cpf string) (*models.User, error)
	FindUserByEmail(email string) (*models.User, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a transfer repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetTransfer(id uint) (*models.TransferRequest, error) {
	var t models.TransferRequest
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) GetTransferForUpdate(id uint) (*models.TransferRequest, error) {
	var t models.TransferRequest
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) GetActiveTransferByRegistration(registrationID uint) (*models.TransferRequest, error) {
	var t models.TransferRequest
	err := r.db.
		Where("registration_id = ? AND status IN ?", registrationID,
			[]string{models.TransferStatusPending, models.TransferStatusApproved}).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) ListTransfersByRegistration(registrationID uint) ([]models.TransferRequest, error) {
	var out []models.TransferRequest
	err := r.db.Where("registration_id = ?", registrationID).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *gormRepository) CreateTransfer(t *models.TransferRequest) error {
	return r.db.Create(t).Error
}

func (r *gormRepository) SaveTransfer(t *models.TransferRequest) error {
	return r.db.Save(t).Error
}

func (r *gormRepository) GetRegistrationForUpdate(id uint) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reg, id).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *gormRepository) SaveRegistration(reg *models.Registration) error {
	return r.db.Save(reg).Error
}

func (r *gormRepository) FindUserByCPF(cpf string) (*models.User, error) {
	var user models.User
	err := r.db.Where("cpf = ? AND cpf <> ''", cpf).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
