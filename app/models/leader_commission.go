package models

import "time"

const (
	CommissionStatusPending   = "pending"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

// LeaderCommission is the referral payout owed for one confirmed registration.
// The percentage is snapshotted at creation so later changes to the leader's
// rate never alter historical rows. The (leader, registration) pair is unique.
type LeaderCommission struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	LeaderID              uint      `gorm:"not null;index:ux_leader_commissions_leader_reg,unique,priority:1;index" json:"leader_id"`
	RegistrationID        uint      `gorm:"not null;index:ux_leader_commissions_leader_reg,unique,priority:2;index" json:"registration_id"`
	ReferredUserID        uint      `gorm:"not null;index" json:"referred_user_id"`
	EventID               uint      `gorm:"not null;index" json:"event_id"`
	CommissionAmountCents int64     `gorm:"not null" json:"commission_amount_cents"`
	CommissionPercentage  float64   `gorm:"type:decimal(5,2);not null" json:"commission_percentage"`
	Status                string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt             time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CountsTowardEarnings reports whether this commission is part of the leader's
// running total.
func (c *LeaderCommission) CountsTowardEarnings() bool {
	return c.Status == CommissionStatusPending || c.Status == CommissionStatusPaid
}
