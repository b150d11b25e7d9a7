package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

const (
	LeaderStatusActive   = "active"
	LeaderStatusInactive = "inactive"
)

// GroupLeader is a referral partner. Users who sign up with the leader's
// referral code generate commissions on confirmed registration payments.
// TotalEarningsCents is maintained incrementally and must always equal the
// sum of the leader's non-cancelled commissions (see commission.AuditEarnings).
type GroupLeader struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	ReferralCode         string    `gorm:"type:varchar(20);not null;uniqueIndex" json:"referral_code"`
	CommissionPercentage *float64  `gorm:"type:decimal(5,2)" json:"commission_percentage,omitempty"`
	TotalEarningsCents   int64     `gorm:"not null;default:0" json:"total_earnings_cents"`
	Status               string    `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the leader can earn new commissions.
func (l *GroupLeader) IsActive() bool {
	return l.Status == LeaderStatusActive
}

// NewReferralCode generates a short shareable referral code.
func NewReferralCode() (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "L" + hex.EncodeToString(b), nil
}
