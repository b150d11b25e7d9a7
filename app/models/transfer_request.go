package models

import "time"

const (
	TransferStatusPending   = "pending"
	TransferStatusApproved  = "approved"
	TransferStatusRejected  = "rejected"
	TransferStatusCompleted = "completed"
	TransferStatusCancelled = "cancelled"
)

const (
	TransferPaymentPending = "pending"
	TransferPaymentPaid    = "paid"
)

// TransferRequest moves a confirmed registration to a new holder. The target
// is identified by CPF or email and may resolve later, after the target
// creates an account.
type TransferRequest struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RegistrationID   uint      `gorm:"not null;index" json:"registration_id"`
	RequesterID      uint      `gorm:"not null;index" json:"requester_id"`
	NewHolderCPF     string    `gorm:"type:varchar(14)" json:"new_holder_cpf"`
	NewHolderEmail   string    `gorm:"type:varchar(200)" json:"new_holder_email"`
	NewHolderID      *uint     `gorm:"index" json:"new_holder_id,omitempty"`
	Reason           string    `gorm:"type:text" json:"reason"`
	Status           string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TransferFeeCents int64     `gorm:"not null;default:0" json:"transfer_fee_cents"`
	PaymentStatus    string    `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	FeePaymentID     *uint     `gorm:"index" json:"fee_payment_id,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the request can no longer change state.
func (t *TransferRequest) IsTerminal() bool {
	switch t.Status {
	case TransferStatusRejected, TransferStatusCompleted, TransferStatusCancelled:
		return true
	default:
		return false
	}
}

// IsResolved reports whether the new holder has been matched to an account.
func (t *TransferRequest) IsResolved() bool {
	return t.NewHolderID != nil && *t.NewHolderID != 0
}
