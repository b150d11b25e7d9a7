package transfer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/registration"
)

// Service owns the transfer workflow. A request starts pending, gets the fee
// paid through the gateway, and on approval with a paid fee hands the source
// registration to the new holder. Completion mutates the transfer request and
// the registration in one transaction.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *zap.Logger
}

// Notifier delivers best-effort user notifications. Nil disables them.
type Notifier interface {
	TransferCompleted(req *models.TransferRequest)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: logging.L()}
}

// SetNotifier attaches the notification sink. Optional.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// NewServiceFromDB creates a transfer service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RequestInput describes a new transfer attempt. The target may be given by
// CPF, email or both; resolution to an account can happen later.
type RequestInput struct {
	RegistrationID uint
	RequesterID    uint
	NewHolderCPF   string
	NewHolderEmail string
	Reason         string
	FeeCents       int64
}

// Request opens a transfer for a confirmed registration. A registration can
// carry at most one non-terminal transfer request at a time.
func (s *Service) Request(ctx context.Context, in RequestInput) (*models.TransferRequest, error) {
	_ = ctx
	if in.RegistrationID == 0 || in.RequesterID == 0 {
		return nil, apperr.Validation("registration and requester are required")
	}
	in.NewHolderCPF = strings.TrimSpace(in.NewHolderCPF)
	in.NewHolderEmail = strings.TrimSpace(strings.ToLower(in.NewHolderEmail))
	if in.NewHolderCPF == "" && in.NewHolderEmail == "" {
		return nil, apperr.Validation("new holder CPF or email is required")
	}
	if in.FeeCents < 0 {
		return nil, apperr.Validation("transfer fee cannot be negative")
	}

	var req *models.TransferRequest
	err := s.repo.WithTx(func(r Repository) error {
		reg, err := r.GetRegistrationForUpdate(in.RegistrationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("registration %d does not exist", in.RegistrationID)
			}
			return err
		}
		if reg.Status != models.RegistrationStatusConfirmed {
			return apperr.Conflict("registration %d is %s, only confirmed registrations can be transferred", reg.ID, reg.Status)
		}

		if _, err := r.GetActiveTransferByRegistration(in.RegistrationID); err == nil {
			return apperr.Conflict("registration %d already has an open transfer request", in.RegistrationID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		req = &models.TransferRequest{
			RegistrationID:   in.RegistrationID,
			RequesterID:      in.RequesterID,
			NewHolderCPF:     in.NewHolderCPF,
			NewHolderEmail:   in.NewHolderEmail,
			Reason:           in.Reason,
			Status:           models.TransferStatusPending,
			TransferFeeCents: in.FeeCents,
			PaymentStatus:    models.TransferPaymentPending,
		}
		resolveNewHolder(r, req)
		return r.CreateTransfer(req)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transfer requested",
		zap.Uint("transfer_id", req.ID),
		zap.Uint("registration_id", req.RegistrationID),
		zap.Bool("resolved", req.IsResolved()))
	return req, nil
}

// resolveNewHolder matches the target to an account, CPF first then email.
// An unresolved target is not an error, the request waits for the holder to
// sign up.
func resolveNewHolder(r Repository, req *models.TransferRequest) {
	if req.NewHolderCPF != "" {
		if user, err := r.FindUserByCPF(req.NewHolderCPF); err == nil {
			req.NewHolderID = &user.ID
			return
		}
	}
	if req.NewHolderEmail != "" {
		if user, err := r.FindUserByEmail(req.NewHolderEmail); err == nil {
			req.NewHolderID = &user.ID
		}
	}
}

// ResolveNewHolder retries the account lookup for a pending request, used
// after the target creates an account. Returns whether the holder is now
// resolved.
func (s *Service) ResolveNewHolder(ctx context.Context, transferID uint) (bool, error) {
	_ = ctx
	var resolved bool
	err := s.repo.WithTx(func(r Repository) error {
		req, err := r.GetTransferForUpdate(transferID)
		if err != nil {
			return err
		}
		if req.IsTerminal() {
			return apperr.Conflict("transfer %d is %s", req.ID, req.Status)
		}
		if req.IsResolved() {
			resolved = true
			return nil
		}
		resolveNewHolder(r, req)
		if !req.IsResolved() {
			return nil
		}
		resolved = true
		return r.SaveTransfer(req)
	})
	return resolved, err
}

// Approve moves pending→approved. When the fee is already paid and the new
// holder is resolved the request completes immediately, otherwise completion
// waits for the fee webhook.
func (s *Service) Approve(ctx context.Context, transferID uint) (*models.TransferRequest, error) {
	_ = ctx
	var req *models.TransferRequest
	err := s.repo.WithTx(func(r Repository) error {
		var err error
		req, err = r.GetTransferForUpdate(transferID)
		if err != nil {
			return err
		}
		if req.Status != models.TransferStatusPending {
			return apperr.Conflict("transfer %d is %s, only pending requests can be approved", req.ID, req.Status)
		}
		req.Status = models.TransferStatusApproved
		if req.PaymentStatus == models.TransferPaymentPaid && req.IsResolved() {
			return completeLocked(r, req)
		}
		return r.SaveTransfer(req)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transfer approved",
		zap.Uint("transfer_id", req.ID),
		zap.String("status", req.Status))
	if req.Status == models.TransferStatusCompleted && s.notifier != nil {
		s.notifier.TransferCompleted(req)
	}
	return req, nil
}

// Reject closes the request without moving the registration. Terminal.
func (s *Service) Reject(ctx context.Context, transferID uint, reason string) (*models.TransferRequest, error) {
	return s.close(ctx, transferID, models.TransferStatusRejected, reason)
}

// Cancel withdraws the request, requester or admin action. Terminal. An
// unpaid fee needs no compensation, it simply never completes.
func (s *Service) Cancel(ctx context.Context, transferID uint) (*models.TransferRequest, error) {
	return s.close(ctx, transferID, models.TransferStatusCancelled, "")
}

func (s *Service) close(ctx context.Context, transferID uint, status, reason string) (*models.TransferRequest, error) {
	_ = ctx
	var req *models.TransferRequest
	err := s.repo.WithTx(func(r Repository) error {
		var err error
		req, err = r.GetTransferForUpdate(transferID)
		if err != nil {
			return err
		}
		if req.IsTerminal() {
			return apperr.Conflict("transfer %d is %s", req.ID, req.Status)
		}
		req.Status = status
		if reason != "" {
			req.Reason = reason
		}
		return r.SaveTransfer(req)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transfer closed",
		zap.Uint("transfer_id", req.ID),
		zap.String("status", req.Status))
	return req, nil
}

// CompleteOnFeePaid records the fee as paid and, if the request is already
// approved and resolved, completes the hand-over. Called by the webhook
// reconciler, so it must tolerate redelivery: a completed request with a paid
// fee is a no-op.
func (s *Service) CompleteOnFeePaid(ctx context.Context, transferID uint) (bool, error) {
	_ = ctx
	var changed bool
	var status string
	var req *models.TransferRequest
	err := s.repo.WithTx(func(r Repository) error {
		var err error
		req, err = r.GetTransferForUpdate(transferID)
		if err != nil {
			return err
		}
		if req.Status == models.TransferStatusCompleted {
			status = req.Status
			return nil
		}
		if req.Status == models.TransferStatusRejected || req.Status == models.TransferStatusCancelled {
			return apperr.Conflict("transfer %d is %s, fee payment arrived too late", req.ID, req.Status)
		}

		changed = req.PaymentStatus != models.TransferPaymentPaid
		req.PaymentStatus = models.TransferPaymentPaid

		if req.Status == models.TransferStatusApproved && req.IsResolved() {
			changed = true
			status = models.TransferStatusCompleted
			return completeLocked(r, req)
		}
		status = req.Status
		return r.SaveTransfer(req)
	})
	if err != nil {
		return false, err
	}

	s.log.Info("transfer fee paid",
		zap.Uint("transfer_id", transferID),
		zap.String("status", status),
		zap.Bool("changed", changed))
	if changed && status == models.TransferStatusCompleted && s.notifier != nil {
		s.notifier.TransferCompleted(req)
	}
	return changed, nil
}

// completeLocked finishes an approved, paid, resolved request. The caller
// holds the transfer row lock; the registration row is locked here so both
// mutations commit together.
func completeLocked(r Repository, req *models.TransferRequest) error {
	if !req.IsResolved() {
		return apperr.BusinessRule("transfer %d has no resolved new holder", req.ID)
	}
	reg, err := r.GetRegistrationForUpdate(req.RegistrationID)
	if err != nil {
		return err
	}
	if _, err := registration.ApplyTransfer(reg, *req.NewHolderID); err != nil {
		return err
	}
	if err := r.SaveRegistration(reg); err != nil {
		return err
	}
	req.Status = models.TransferStatusCompleted
	req.PaymentStatus = models.TransferPaymentPaid
	return r.SaveTransfer(req)
}

// Get returns a transfer request by id.
func (s *Service) Get(ctx context.Context, transferID uint) (*models.TransferRequest, error) {
	_ = ctx
	return s.repo.GetTransfer(transferID)
}

// ListByRegistration returns the transfer history of a registration, newest
// first.
func (s *Service) ListByRegistration(ctx context.Context, registrationID uint) ([]models.TransferRequest, error) {
	_ = ctx
	return s.repo.ListTransfersByRegistration(registrationID)
}

// AttachFeePayment links the gateway charge created for the fee to the
// request. Only allowed while the request can still complete.
func (s *Service) AttachFeePayment(ctx context.Context, transferID, paymentID uint) error {
	_ = ctx
	return s.repo.WithTx(func(r Repository) error {
		req, err := r.GetTransferForUpdate(transferID)
		if err != nil {
			return err
		}
		if req.IsTerminal() {
			return apperr.Conflict("transfer %d is %s", req.ID, req.Status)
		}
		req.FeePaymentID = &paymentID
		return r.SaveTransfer(req)
	})
}
