package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
)

// leaderRepository implements the LeaderRepository interface
type leaderRepository struct {
	db *gorm.DB
}

// NewLeaderRepository creates a new leader repository instance
func NewLeaderRepository(db *gorm.DB) LeaderRepository {
	return &leaderRepository{db: db}
}

// Create creates a new group leader
func (r *leaderRepository) Create(leader *models.GroupLeader) error {
	return r.db.Create(leader).Error
}

// GetByID retrieves a leader by ID
func (r *leaderRepository) GetByID(id uint) (*models.GroupLeader, error) {
	var leader models.GroupLeader
	err := r.db.First(&leader, id).Error
	if err != nil {
		return nil, err
	}
	return &leader, nil
}

// GetByUserID retrieves the leader record of a user
func (r *leaderRepository) GetByUserID(userID uint) (*models.GroupLeader, error) {
	var leader models.GroupLeader
	err := r.db.Where("user_id = ?", userID).First(&leader).Error
	if err != nil {
		return nil, err
	}
	return &leader, nil
}

// GetByReferralCode retrieves a leader by referral code
func (r *leaderRepository) GetByReferralCode(code string) (*models.GroupLeader, error) {
	var leader models.GroupLeader
	err := r.db.Where("referral_code = ?", code).First(&leader).Error
	if err != nil {
		return nil, err
	}
	return &leader, nil
}

// Update updates an existing leader
func (r *leaderRepository) Update(leader *models.GroupLeader) error {
	return r.db.Save(leader).Error
}

// List retrieves leaders with pagination
func (r *leaderRepository) List(offset, limit int) ([]models.GroupLeader, error) {
	var leaders []models.GroupLeader
	err := r.db.Offset(offset).Limit(limit).Order("total_earnings_cents DESC").Find(&leaders).Error
	return leaders, err
}

// GetCommissions retrieves a leader's commissions with optional filters
func (r *leaderRepository) GetCommissions(leaderID uint, status string, from, to *time.Time) ([]models.LeaderCommission, error) {
	q := r.db.Where("leader_id = ?", leaderID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at < ?", *to)
	}
	var commissions []models.LeaderCommission
	err := q.Order("created_at DESC").Find(&commissions).Error
	return commissions, err
}
