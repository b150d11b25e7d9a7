package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/asaas"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
)

// Registrations is the slice of the registration service the reconciler
// drives. Payment confirmation enters the lifecycle only through here.
type Registrations interface {
	ApplyPaymentConfirmed(ctx context.Context, registrationID uint) (bool, error)
	ApplyRefunded(ctx context.Context, registrationID uint) error
	Get(ctx context.Context, registrationID uint) (*models.Registration, error)
}

// Commissions evaluates referral commissions after a confirmed payment.
// Evaluation is best-effort: its errors are logged, never propagated.
type Commissions interface {
	EvaluateOnPaymentConfirmed(ctx context.Context, reg *models.Registration) error
}

// Transfers advances a transfer request when its fee charge settles.
type Transfers interface {
	CompleteOnFeePaid(ctx context.Context, transferID uint) (bool, error)
}

// Notifier delivers best-effort user notifications. Nil disables them.
type Notifier interface {
	RegistrationConfirmed(reg *models.Registration)
}

// Service is the webhook reconciler. It turns at-least-once gateway
// deliveries into at-most-once domain effects with the persist-raw-first,
// dedupe-by-key, mark-processed-last pattern.
type Service struct {
	repo          Repository
	registrations Registrations
	commissions   Commissions
	transfers     Transfers
	notifier      Notifier
	log           *zap.Logger
}

// SetNotifier attaches the notification sink. Optional.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func NewService(repo Repository, regs Registrations, comms Commissions, transfers Transfers) *Service {
	return &Service{
		repo:          repo,
		registrations: regs,
		commissions:   comms,
		transfers:     transfers,
		log:           logging.L(),
	}
}

// NewServiceFromDB creates a reconciler from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, regs Registrations, comms Commissions, transfers Transfers) *Service {
	return NewService(NewRepository(db), regs, comms, transfers)
}

// DedupeKey identifies one logical delivery. The gateway's delivery id wins
// when present; otherwise a payload checksum stands in so replayed bodies
// still collapse onto one event record.
func DedupeKey(eventType, chargeID, deliveryID string, raw []byte) string {
	if deliveryID != "" {
		return fmt.Sprintf("%s:%s:%s", eventType, chargeID, deliveryID)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%s:%s", eventType, chargeID, hex.EncodeToString(sum[:8]))
}

// StoreUnverified persists a delivery that failed token verification. Nothing
// is processed; the row exists for forensics only.
func (s *Service) StoreUnverified(ctx context.Context, raw []byte, deliveryID string) error {
	_ = ctx
	eventType, chargeID := peekEventAndCharge(raw)
	ev := &models.WebhookEvent{
		DedupeKey:       DedupeKey(eventType, chargeID, deliveryID, raw),
		EventType:       eventType,
		GatewayChargeID: chargeID,
		DeliveryID:      deliveryID,
		PayloadJSON:     string(raw),
		TokenValid:      false,
		ProcessingError: "webhook token verification failed",
	}
	_, err := s.repo.CreateEventIfNotExists(ev)
	return err
}

// Process ingests one verified delivery. The raw body is persisted before any
// parsing or dispatch so a crash mid-way always leaves an auditable record.
// The dedupe read and the processed flag share one transaction, so two
// concurrent deliveries of the same event serialize on the event row and the
// loser sees processed=true.
func (s *Service) Process(ctx context.Context, raw []byte, deliveryID string) error {
	payload, parseErr := asaas.ParseWebhook(raw)

	eventType, chargeID := peekEventAndCharge(raw)
	if payload != nil {
		eventType = payload.Event
		chargeID = payload.Payment.ID
	}
	key := DedupeKey(eventType, chargeID, deliveryID, raw)

	ev := &models.WebhookEvent{
		DedupeKey:       key,
		EventType:       eventType,
		GatewayChargeID: chargeID,
		DeliveryID:      deliveryID,
		PayloadJSON:     string(raw),
		TokenValid:      true,
	}
	if _, err := s.repo.CreateEventIfNotExists(ev); err != nil {
		return err
	}

	if parseErr != nil {
		if err := s.repo.RecordError(key, parseErr.Error()); err != nil {
			s.log.Error("failed to record webhook parse error", zap.Error(err))
		}
		return parseErr
	}

	err := s.repo.WithTx(func(r Repository) error {
		locked, err := r.GetEventForUpdate(key)
		if err != nil {
			return err
		}
		if locked.Processed {
			return nil
		}
		if err := s.dispatch(ctx, r, payload); err != nil {
			return err
		}
		return r.MarkProcessed(locked)
	})
	if err != nil {
		if recErr := s.repo.RecordError(key, err.Error()); recErr != nil {
			s.log.Error("failed to record webhook processing error", zap.Error(recErr))
		}
		s.log.Error("webhook processing failed",
			zap.String("dedupe_key", key),
			zap.String("event", eventType),
			zap.Error(err))
		return err
	}
	return nil
}

// dispatch applies the domain effect for one event. Unknown charges and
// unknown event types are acknowledged, not retried: the gateway would
// redeliver forever for charges that will never resolve here.
func (s *Service) dispatch(ctx context.Context, r Repository, payload *asaas.WebhookPayload) error {
	p, err := r.GetPaymentByChargeID(payload.Payment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("webhook references unknown charge",
				zap.String("charge_id", payload.Payment.ID),
				zap.String("event", payload.Event))
			return nil
		}
		return err
	}

	status := chargeStatusFromEvent(payload.Event)
	if status == "" {
		s.log.Info("ignoring unhandled webhook event",
			zap.String("event", payload.Event),
			zap.String("charge_id", payload.Payment.ID))
		return nil
	}

	p.Status = status
	if d := payload.Payment.ParsedPaymentDate(); d != nil {
		p.PaymentDate = d
	}
	if err := r.SavePayment(p); err != nil {
		return err
	}

	switch {
	case asaas.IsSettlementEvent(payload.Event):
		return s.onSettlement(ctx, p)
	case payload.Event == asaas.EventPaymentRefunded:
		return s.onRefund(ctx, p)
	default:
		// Overdue and chargeback only mark the payment row. Cancelling the
		// registration stays an operator decision.
		return nil
	}
}

func (s *Service) onSettlement(ctx context.Context, p *models.Payment) error {
	if p.TransferRequestID != nil {
		_, err := s.transfers.CompleteOnFeePaid(ctx, *p.TransferRequestID)
		if apperr.IsConflict(err) {
			s.log.Warn("fee settled for a closed transfer",
				zap.Uint("transfer_id", *p.TransferRequestID),
				zap.Error(err))
			return nil
		}
		return err
	}
	if p.RegistrationID == nil {
		s.log.Warn("settled charge owns neither registration nor transfer",
			zap.String("charge_id", p.GatewayChargeID))
		return nil
	}

	changed, err := s.registrations.ApplyPaymentConfirmed(ctx, *p.RegistrationID)
	if err != nil {
		return err
	}
	if changed {
		s.log.Info("registration confirmed by gateway settlement",
			zap.Uint("registration_id", *p.RegistrationID),
			zap.String("charge_id", p.GatewayChargeID))
	}

	// Commission evaluation never fails the confirmation: a skipped or broken
	// commission is repairable, an unconfirmed paid registration is not.
	reg, err := s.registrations.Get(ctx, *p.RegistrationID)
	if err != nil {
		s.log.Error("commission evaluation skipped, registration load failed",
			zap.Uint("registration_id", *p.RegistrationID), zap.Error(err))
		return nil
	}
	if err := s.commissions.EvaluateOnPaymentConfirmed(ctx, reg); err != nil {
		s.log.Warn("commission evaluation skipped",
			zap.Uint("registration_id", reg.ID), zap.Error(err))
	}
	if changed && s.notifier != nil {
		s.notifier.RegistrationConfirmed(reg)
	}
	return nil
}

func (s *Service) onRefund(ctx context.Context, p *models.Payment) error {
	if p.RegistrationID == nil {
		return nil
	}
	err := s.registrations.ApplyRefunded(ctx, *p.RegistrationID)
	if apperr.IsConflict(err) {
		// Refund landed on a registration that never requested one or is
		// already terminal. Log only, nothing to retry.
		s.log.Warn("gateway refund on registration without an open refund request",
			zap.Uint("registration_id", *p.RegistrationID),
			zap.Error(err))
		return nil
	}
	return err
}

// ReplayPending re-attempts events that were persisted but never processed,
// typically after a crash or a transient downstream failure. Safe at any time
// because Process dedupes.
func (s *Service) ReplayPending(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.ListUnprocessedEvents(limit)
	if err != nil {
		return 0, err
	}
	replayed := 0
	for _, ev := range events {
		if err := s.Process(ctx, []byte(ev.PayloadJSON), ev.DeliveryID); err != nil {
			s.log.Warn("webhook replay failed",
				zap.String("dedupe_key", ev.DedupeKey), zap.Error(err))
			continue
		}
		replayed++
	}
	return replayed, nil
}

// chargeStatusFromEvent maps a gateway event type onto the local payment
// status vocabulary. Unmapped events return "".
func chargeStatusFromEvent(event string) string {
	switch event {
	case asaas.EventPaymentConfirmed:
		return models.ChargeStatusConfirmed
	case asaas.EventPaymentReceived:
		return models.ChargeStatusReceived
	case asaas.EventPaymentOverdue:
		return models.ChargeStatusOverdue
	case asaas.EventPaymentRefunded:
		return models.ChargeStatusRefunded
	case asaas.EventPaymentChargeback:
		return models.ChargeStatusChargeback
	}
	return ""
}

// peekEventAndCharge extracts identifiers from a body that may not pass full
// validation, so malformed payloads still get a stable dedupe key.
func peekEventAndCharge(raw []byte) (string, string) {
	var partial struct {
		Event   string `json:"event"`
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
	}
	// Best effort only. An undecodable body keys purely on its checksum.
	_ = json.Unmarshal(raw, &partial)
	if partial.Event == "" {
		partial.Event = "UNKNOWN"
	}
	return partial.Event, partial.Payment.ID
}
