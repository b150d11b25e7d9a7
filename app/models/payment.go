package models

import "time"

const (
	BillingTypePix        = "PIX"
	BillingTypeBoleto     = "BOLETO"
	BillingTypeCreditCard = "CREDIT_CARD"
)

// Charge statuses mirror the gateway vocabulary; "expired" is set locally when
// a newer charge supersedes this one.
const (
	ChargeStatusPending    = "pending"
	ChargeStatusConfirmed  = "confirmed"
	ChargeStatusReceived   = "received"
	ChargeStatusOverdue    = "overdue"
	ChargeStatusRefunded   = "refunded"
	ChargeStatusChargeback = "chargeback"
	ChargeStatusFailed     = "failed"
	ChargeStatusExpired    = "expired"
)

// Payment is one gateway charge created for a registration or for a transfer
// fee, never both. Superseded attempts are kept with status "expired" so the
// payment history survives.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	RegistrationID    *uint      `gorm:"index" json:"registration_id,omitempty"`
	TransferRequestID *uint      `gorm:"index" json:"transfer_request_id,omitempty"`
	GatewayChargeID   string     `gorm:"type:varchar(64);index" json:"gateway_charge_id"`
	BillingType       string     `gorm:"type:varchar(20);not null" json:"billing_type"`
	ValueCents        int64      `gorm:"not null" json:"value_cents"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	DueDate           time.Time  `gorm:"not null" json:"due_date"`
	PaymentDate       *time.Time `gorm:"type:timestamp;default:null" json:"payment_date,omitempty"`
	PixQRCode         string     `gorm:"type:text" json:"pix_qr_code,omitempty"`
	InvoiceURL        string     `gorm:"type:varchar(500)" json:"invoice_url,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether this charge can still settle. At most one active
// payment exists per registration; see the payments service supersede logic.
func (p *Payment) IsActive() bool {
	switch p.Status {
	case ChargeStatusFailed, ChargeStatusExpired, ChargeStatusRefunded, ChargeStatusChargeback:
		return false
	default:
		return true
	}
}

// IsSettled reports whether the gateway confirmed money movement.
func (p *Payment) IsSettled() bool {
	return p.Status == ChargeStatusConfirmed || p.Status == ChargeStatusReceived
}
