package asaas

import (
	"crypto/subtle"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
)

// Gateway webhook event types the reconciler understands.
const (
	EventPaymentConfirmed  = "PAYMENT_CONFIRMED"
	EventPaymentReceived   = "PAYMENT_RECEIVED"
	EventPaymentOverdue    = "PAYMENT_OVERDUE"
	EventPaymentRefunded   = "PAYMENT_REFUNDED"
	EventPaymentChargeback = "PAYMENT_CHARGEBACK_REQUESTED"
)

// WebhookCharge is the charge section of an inbound notification.
type WebhookCharge struct {
	ID                string  `json:"id" validate:"required"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
	ExternalReference string  `json:"externalReference"`
	PaymentDate       string  `json:"paymentDate"`
}

// WebhookPayload is the normalized shape of an inbound gateway notification.
// Payloads are hostile input: ParseWebhook validates shape before anything
// downstream runs.
type WebhookPayload struct {
	Event   string        `json:"event" validate:"required"`
	Payment WebhookCharge `json:"payment" validate:"required"`
}

// ValueCents returns the charge value in centavos.
func (w *WebhookCharge) ValueCents() int64 {
	return valueToCents(w.Value)
}

// ParsedPaymentDate returns the payment date, or nil when absent/unparseable.
func (w *WebhookCharge) ParsedPaymentDate() *time.Time {
	if w.PaymentDate == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", w.PaymentDate)
	if err != nil {
		return nil
	}
	return &t
}

var webhookValidate = validator.New()

// ParseWebhook decodes and shape-validates a raw webhook body.
func ParseWebhook(raw []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.Validation("malformed webhook payload: %v", err)
	}
	if err := webhookValidate.Struct(&payload); err != nil {
		return nil, apperr.Validation("invalid webhook payload: %v", err)
	}
	payload.Event = strings.ToUpper(strings.TrimSpace(payload.Event))
	return &payload, nil
}

// IsSettlementEvent reports whether the event confirms money movement.
func IsSettlementEvent(event string) bool {
	return event == EventPaymentConfirmed || event == EventPaymentReceived
}

// VerifyAccessToken compares the shared-secret webhook header in constant
// time. An unset secret rejects everything.
func VerifyAccessToken(got, want string) bool {
	got = strings.TrimSpace(got)
	want = strings.TrimSpace(want)
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
