package models

import (
	"crypto/rand"
	"time"
)

const (
	RegistrationStatusPending         = "pending"
	RegistrationStatusConfirmed       = "confirmed"
	RegistrationStatusTransferred     = "transferred"
	RegistrationStatusCancelled       = "cancelled"
	RegistrationStatusRefundRequested = "refund_requested"
	RegistrationStatusRefunded        = "refunded"
)

const (
	RegistrationPaymentPending  = "pending"
	RegistrationPaymentPaid     = "paid"
	RegistrationPaymentFailed   = "failed"
	RegistrationPaymentRefunded = "refunded"
)

// Registration is one athlete enrollment in an event category. HolderID is the
// current runner and can change through a completed transfer; RegisteredByID
// stays the original registrant.
type Registration struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	EventID          uint      `gorm:"not null;index" json:"event_id"`
	CategoryID       uint      `gorm:"not null;index" json:"category_id"`
	KitID            *uint     `gorm:"index" json:"kit_id,omitempty"`
	HolderID         uint      `gorm:"not null;index" json:"holder_id"`
	RegisteredByID   uint      `gorm:"not null;index" json:"registered_by_id"`
	Status           string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus    string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	PaymentMethod    string    `gorm:"type:varchar(20)" json:"payment_method"`
	TotalAmountCents int64     `gorm:"not null;default:0" json:"total_amount_cents"`
	ConfirmationCode string    `gorm:"type:varchar(16);not null;uniqueIndex" json:"confirmation_code"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether no further status writes are permitted.
func (r *Registration) IsTerminal() bool {
	return r.Status == RegistrationStatusCancelled || r.Status == RegistrationStatusRefunded
}

// IsPaid reports whether the registration payment has been confirmed.
func (r *Registration) IsPaid() bool {
	return r.PaymentStatus == RegistrationPaymentPaid
}

// Charset without ambiguous characters (no 0/O, 1/I/L).
const confirmationCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const confirmationCodeLength = 8

// NewConfirmationCode generates a human-readable confirmation code like
// "CP-7XK2M9QA". Uniqueness is enforced by the caller against the database.
func NewConfirmationCode() (string, error) {
	b := make([]byte, confirmationCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, confirmationCodeLength)
	for i, v := range b {
		out[i] = confirmationCodeCharset[int(v)%len(confirmationCodeCharset)]
	}
	return "CP-" + string(out), nil
}
