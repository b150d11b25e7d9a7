package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/asaas"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
)

const defaultDueDays = 3

// ChargeCreator is the slice of the gateway client this service needs.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, in asaas.CreateChargeInput) (*asaas.Charge, error)
}

// TransferLinker attaches the fee charge to its transfer request.
type TransferLinker interface {
	AttachFeePayment(ctx context.Context, transferID, paymentID uint) error
}

// Service orchestrates charge creation. Gateway calls never run inside a
// database transaction: the flow is write intent, call gateway, write result.
// A timeout leaves the intent row pending for the reconciliation sweep.
type Service struct {
	repo      Repository
	gateway   ChargeCreator
	transfers TransferLinker
	log       *zap.Logger

	DueDays int
}

func NewService(repo Repository, gateway ChargeCreator, transfers TransferLinker) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		transfers: transfers,
		log:       logging.L(),
		DueDays:   defaultDueDays,
	}
}

// NewServiceFromDB creates a payments service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway ChargeCreator, transfers TransferLinker) *Service {
	return NewService(NewRepository(db), gateway, transfers)
}

// GenerateForRegistration creates a gateway charge for a pending
// registration. Any previous active charge is expired first, keeping exactly
// one active payment per registration while preserving the attempt history.
func (s *Service) GenerateForRegistration(ctx context.Context, registrationID uint, billingType string) (*models.Payment, error) {
	if err := validBillingType(billingType); err != nil {
		return nil, err
	}

	reg, err := s.repo.GetRegistration(registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("registration %d does not exist", registrationID)
		}
		return nil, err
	}
	if reg.IsTerminal() {
		return nil, apperr.Conflict("registration %d is %s", reg.ID, reg.Status)
	}
	if reg.IsPaid() {
		return nil, apperr.Conflict("registration %d is already paid", reg.ID)
	}

	payer, err := s.repo.GetUser(reg.RegisteredByID)
	if err != nil {
		return nil, err
	}

	// Intent first. Superseding and inserting commit before the gateway is
	// contacted, so a crash leaves a pending intent row, never a lost charge.
	rid := reg.ID
	p := &models.Payment{
		RegistrationID: &rid,
		BillingType:    billingType,
		ValueCents:     reg.TotalAmountCents,
		Status:         models.ChargeStatusPending,
		DueDate:        s.dueDate(),
	}
	err = s.repo.WithTx(func(r Repository) error {
		existing, err := r.ListPaymentsByRegistrationForUpdate(reg.ID)
		if err != nil {
			return err
		}
		for i := range existing {
			old := &existing[i]
			if !old.IsActive() {
				continue
			}
			if old.IsSettled() {
				return apperr.Conflict("registration %d already has a settled charge %s", reg.ID, old.GatewayChargeID)
			}
			old.Status = models.ChargeStatusExpired
			if err := r.SavePayment(old); err != nil {
				return err
			}
		}
		return r.CreatePayment(p)
	})
	if err != nil {
		return nil, err
	}

	return s.callGateway(ctx, p, asaas.CreateChargeInput{
		CustomerRef:       payer.CustomerRef(),
		BillingType:       billingType,
		ValueCents:        reg.TotalAmountCents,
		DueDate:           p.DueDate,
		ExternalReference: fmt.Sprintf("reg-%d", reg.ID),
		Description:       fmt.Sprintf("Inscricao %s", reg.ConfirmationCode),
	})
}

// GenerateForTransferFee creates the fee charge for an open transfer request
// and links it back to the request.
func (s *Service) GenerateForTransferFee(ctx context.Context, transferID uint, billingType string) (*models.Payment, error) {
	if err := validBillingType(billingType); err != nil {
		return nil, err
	}

	req, err := s.repo.GetTransfer(transferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("transfer %d does not exist", transferID)
		}
		return nil, err
	}
	if req.IsTerminal() {
		return nil, apperr.Conflict("transfer %d is %s", req.ID, req.Status)
	}
	if req.PaymentStatus == models.TransferPaymentPaid {
		return nil, apperr.Conflict("transfer %d fee is already paid", req.ID)
	}
	if req.TransferFeeCents <= 0 {
		return nil, apperr.BusinessRule("transfer %d carries no fee", req.ID)
	}

	requester, err := s.repo.GetUser(req.RequesterID)
	if err != nil {
		return nil, err
	}

	tid := req.ID
	p := &models.Payment{
		TransferRequestID: &tid,
		BillingType:       billingType,
		ValueCents:        req.TransferFeeCents,
		Status:            models.ChargeStatusPending,
		DueDate:           s.dueDate(),
	}
	err = s.repo.WithTx(func(r Repository) error {
		existing, err := r.ListPaymentsByTransferForUpdate(req.ID)
		if err != nil {
			return err
		}
		for i := range existing {
			old := &existing[i]
			if !old.IsActive() {
				continue
			}
			if old.IsSettled() {
				return apperr.Conflict("transfer %d fee already has a settled charge", req.ID)
			}
			old.Status = models.ChargeStatusExpired
			if err := r.SavePayment(old); err != nil {
				return err
			}
		}
		return r.CreatePayment(p)
	})
	if err != nil {
		return nil, err
	}

	p, err = s.callGateway(ctx, p, asaas.CreateChargeInput{
		CustomerRef:       requester.CustomerRef(),
		BillingType:       billingType,
		ValueCents:        req.TransferFeeCents,
		DueDate:           p.DueDate,
		ExternalReference: fmt.Sprintf("transfer-%d", req.ID),
		Description:       fmt.Sprintf("Taxa de transferencia da inscricao %d", req.RegistrationID),
	})
	if err != nil {
		return nil, err
	}
	if err := s.transfers.AttachFeePayment(ctx, req.ID, p.ID); err != nil {
		s.log.Error("failed to link fee charge to transfer",
			zap.Uint("transfer_id", req.ID),
			zap.Uint("payment_id", p.ID),
			zap.Error(err))
	}
	return p, nil
}

// callGateway runs the gateway call outside any transaction and writes the
// result in a fresh one. On gateway failure the intent stays pending; the
// sweep or a retry picks it up.
func (s *Service) callGateway(ctx context.Context, p *models.Payment, in asaas.CreateChargeInput) (*models.Payment, error) {
	charge, err := s.gateway.CreateCharge(ctx, in)
	if err != nil {
		s.log.Warn("gateway charge creation failed, intent stays pending",
			zap.Uint("payment_id", p.ID),
			zap.Error(err))
		return nil, err
	}

	var saved *models.Payment
	err = s.repo.WithTx(func(r Repository) error {
		locked, err := r.GetPaymentForUpdate(p.ID)
		if err != nil {
			return err
		}
		locked.GatewayChargeID = charge.ID
		locked.PixQRCode = charge.PixQRCode
		locked.InvoiceURL = charge.InvoiceURL
		if st := chargeStatusFromGateway(charge.Status); st != "" {
			locked.Status = st
		}
		saved = locked
		return r.SavePayment(locked)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("gateway charge created",
		zap.Uint("payment_id", saved.ID),
		zap.String("charge_id", saved.GatewayChargeID),
		zap.String("billing_type", saved.BillingType),
		zap.Int64("value_cents", saved.ValueCents))
	return saved, nil
}

// History returns every charge attempt for a registration, oldest first.
func (s *Service) History(ctx context.Context, registrationID uint) ([]models.Payment, error) {
	_ = ctx
	return s.repo.ListPaymentsByRegistration(registrationID)
}

// Get returns one payment by id.
func (s *Service) Get(ctx context.Context, paymentID uint) (*models.Payment, error) {
	_ = ctx
	return s.repo.GetPayment(paymentID)
}

func (s *Service) dueDate() time.Time {
	return time.Now().AddDate(0, 0, s.DueDays).Truncate(24 * time.Hour)
}

func validBillingType(billingType string) error {
	switch billingType {
	case models.BillingTypePix, models.BillingTypeBoleto, models.BillingTypeCreditCard:
		return nil
	}
	return apperr.Validation("unsupported billing type %q", billingType)
}

// chargeStatusFromGateway maps the gateway's vocabulary for a freshly created
// charge. Card charges can come back confirmed immediately.
func chargeStatusFromGateway(status string) string {
	switch status {
	case "CONFIRMED":
		return models.ChargeStatusConfirmed
	case "RECEIVED":
		return models.ChargeStatusReceived
	case "PENDING":
		return models.ChargeStatusPending
	}
	return ""
}
