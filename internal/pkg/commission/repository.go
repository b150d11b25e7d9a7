package commission

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// ListFilter narrows commission queries for the leader earnings surface.
type ListFilter struct {
	LeaderID uint
	Status   string
	EventID  uint
	From     *time.Time
	To       *time.Time
}

// Repository provides DB operations used by the commission ledger.
type Repository interface {
	WithTx(fn func(Repository) error) error

	GetUser(id uint) (*models.User, error)
	GetLeader(id uint) (*models.GroupLeader, error)
	GetLeaderForUpdate(id uint) (*models.GroupLeader, error)
	GetLeaderByUserID(userID uint) (*models.GroupLeader, error)
	GetLeaderByReferralCode(code string) (*models.GroupLeader, error)
	SaveLeader(leader *models.GroupLeader) error

	// CreateCommissionIfNotExists inserts unless the (leader, registration)
	// pair already exists; reports whether a row was created.
	CreateCommissionIfNotExists(c *models.LeaderCommission) (bool, error)
	GetCommissionByRegistrationForUpdate(registrationID uint) (*models.LeaderCommission, error)
	GetCommissionForUpdate(id uint) (*models.LeaderCommission, error)
	SaveCommission(c *models.LeaderCommission) error
	ListCommissions(filter ListFilter) ([]models.LeaderCommission, error)

	// AddToLeaderEarnings applies a relative earnings change atomically.
	AddToLeaderEarnings(leaderID uint, deltaCents int64) error
	// SumCountedEarnings recomputes earnings from first principles (pending +
	// paid commissions) for the audit routine.
	SumCountedEarnings(leaderID uint) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a commission repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetLeader(id uint) (*models.GroupLeader, error) {
	var leader models.GroupLeader
	if err := r.db.First(&leader, id).Error; err != nil {
		return nil, err
	}
	return &leader, nil
}

func (r *gormRepository) GetLeaderForUpdate(id uint) (*models.GroupLeader, error) {
	var leader models.GroupLeader
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&leader, id).Error
	if err != nil {
		return nil, err
	}
	return &leader, nil
}

func (r *gormRepository) GetLeaderByUserID(userID uint) (*models.GroupLeader, error) {
	var leader models.GroupLeader
	err := r.db.Where("user_id = ?", userID).First(&leader).Error
	if err != nil {
		return nil, err
	}
	return &leader, nil
}

func (r *gormRepository) GetLeaderByReferralCode(code string) (*models.GroupLeader, error) {
	var leader models.GroupLeader
	err := r.db.Where("referral_code = ?", code).First(&leader).Error
	if err != nil {
		return nil, err
	}
	return &leader, nil
}

func (r *gormRepository) SaveLeader(leader *models.GroupLeader) error {
	return r.db.Save(leader).Error
}

func (r *gormRepository) CreateCommissionIfNotExists(c *models.LeaderCommission) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "leader_id"},
			{Name: "registration_id"},
		},
		DoNothing: true,
	}).Create(c)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetCommissionByRegistrationForUpdate(registrationID uint) (*models.LeaderCommission, error) {
	var c models.LeaderCommission
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("registration_id = ?", registrationID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) GetCommissionForUpdate(id uint) (*models.LeaderCommission, error) {
	var c models.LeaderCommission
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) SaveCommission(c *models.LeaderCommission) error {
	return r.db.Save(c).Error
}

func (r *gormRepository) ListCommissions(filter ListFilter) ([]models.LeaderCommission, error) {
	q := r.db.Model(&models.LeaderCommission{}).Where("leader_id = ?", filter.LeaderID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.EventID != 0 {
		q = q.Where("event_id = ?", filter.EventID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var out []models.LeaderCommission
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *gormRepository) AddToLeaderEarnings(leaderID uint, deltaCents int64) error {
	return r.db.Model(&models.GroupLeader{}).
		Where("id = ?", leaderID).
		Update("total_earnings_cents", gorm.Expr("total_earnings_cents + ?", deltaCents)).Error
}

func (r *gormRepository) SumCountedEarnings(leaderID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.LeaderCommission{}).
		Where("leader_id = ? AND status IN ?", leaderID,
			[]string{models.CommissionStatusPending, models.CommissionStatusPaid}).
		Select("COALESCE(SUM(commission_amount_cents), 0)").
		Row().Scan(&total)
	return total, err
}
