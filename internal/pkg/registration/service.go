package registration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
)

const codeGenerationAttempts = 5

// Ledger is the commission side-effect consumed on cancellation. The
// commission service implements it; reversal is idempotent so it may run in
// its own transaction and be retried.
type Ledger interface {
	ReverseOnCancellation(ctx context.Context, registrationID uint) error
}

// Service owns the registration lifecycle. Payment confirmation enters only
// through the webhook reconciler; user actions enter through the controllers.
type Service struct {
	repo   Repository
	ledger Ledger
	log    *zap.Logger
}

func NewService(repo Repository, ledger Ledger) *Service {
	return &Service{repo: repo, ledger: ledger, log: logging.L()}
}

// NewServiceFromDB creates a registration service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, ledger Ledger) *Service {
	return NewService(NewRepository(db), ledger)
}

// CreateInput describes a new enrollment. The total amount is derived from
// the category plus optional kit price.
type CreateInput struct {
	EventID       uint
	CategoryID    uint
	KitID         *uint
	HolderID      uint
	RegisteredBy  uint
	PaymentMethod string
}

// Create validates capacity and kit/event consistency, generates a unique
// confirmation code and inserts the registration in pending/pending.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Registration, error) {
	_ = ctx
	if in.EventID == 0 || in.CategoryID == 0 || in.HolderID == 0 || in.RegisteredBy == 0 {
		return nil, apperr.Validation("event, category, holder and registrant are required")
	}

	var reg *models.Registration
	err := s.repo.WithTx(func(r Repository) error {
		event, err := r.GetEvent(in.EventID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("event %d does not exist", in.EventID)
			}
			return err
		}
		if !event.IsOpenForRegistration() {
			return apperr.Validation("event %q is not open for registration", event.Name)
		}

		// Category row lock serializes concurrent capacity checks.
		category, err := r.GetCategoryForUpdate(in.CategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("category %d does not exist", in.CategoryID)
			}
			return err
		}
		if category.EventID != in.EventID {
			return apperr.Validation("category %d belongs to a different event", in.CategoryID)
		}

		current, err := r.CountActiveByCategory(category.ID)
		if err != nil {
			return err
		}
		if !category.HasCapacityFor(current) {
			return apperr.Validation("category %q has no remaining capacity", category.Name)
		}

		total := category.PriceCents
		if in.KitID != nil {
			kit, err := r.GetKit(*in.KitID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.Validation("kit %d does not exist", *in.KitID)
				}
				return err
			}
			if kit.EventID != in.EventID {
				return apperr.Validation("kit %d belongs to a different event", kit.ID)
			}
			total += kit.PriceCents
		}

		code, err := s.generateUniqueCode(r)
		if err != nil {
			return err
		}

		reg = &models.Registration{
			EventID:          in.EventID,
			CategoryID:       in.CategoryID,
			KitID:            in.KitID,
			HolderID:         in.HolderID,
			RegisteredByID:   in.RegisteredBy,
			Status:           models.RegistrationStatusPending,
			PaymentStatus:    models.RegistrationPaymentPending,
			PaymentMethod:    in.PaymentMethod,
			TotalAmountCents: total,
			ConfirmationCode: code,
		}
		return r.CreateRegistration(reg)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) generateUniqueCode(r Repository) (string, error) {
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		code, err := models.NewConfirmationCode()
		if err != nil {
			return "", err
		}
		exists, err := r.ConfirmationCodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		s.log.Warn("confirmation code collision, retrying", zap.String("code", code))
	}
	return "", fmt.Errorf("could not generate a unique confirmation code after %d attempts", codeGenerationAttempts)
}

// ApplyPaymentConfirmed moves pending→confirmed and payment_status→paid.
// Idempotent: redeliveries return (false, nil). Terminal registrations
// return a ConflictError.
func (s *Service) ApplyPaymentConfirmed(ctx context.Context, registrationID uint) (bool, error) {
	_ = ctx
	changed := false
	err := s.repo.WithTx(func(r Repository) error {
		reg, err := r.GetRegistrationForUpdate(registrationID)
		if err != nil {
			return err
		}
		c, err := applyPaymentConfirmed(reg)
		if err != nil {
			return err
		}
		if !c {
			return nil
		}
		changed = true
		return r.SaveRegistration(reg)
	})
	return changed, err
}

// Cancel moves a non-terminal registration to cancelled and reverses any
// pending commission. The reversal is idempotent and runs after the status
// transaction commits; on failure it is logged and left to the earnings
// audit to surface.
func (s *Service) Cancel(ctx context.Context, registrationID uint, actorID uint) error {
	err := s.repo.WithTx(func(r Repository) error {
		reg, err := r.GetRegistrationForUpdate(registrationID)
		if err != nil {
			return err
		}
		if err := applyCancel(reg); err != nil {
			return err
		}
		return r.SaveRegistration(reg)
	})
	if err != nil {
		return err
	}

	s.log.Info("registration cancelled",
		zap.Uint("registration_id", registrationID),
		zap.Uint("actor_id", actorID))

	if s.ledger != nil {
		if err := s.ledger.ReverseOnCancellation(ctx, registrationID); err != nil {
			s.log.Error("commission reversal failed",
				zap.Uint("registration_id", registrationID),
				zap.Error(err))
		}
	}
	return nil
}

// TransferHolder hands the registration to a new holder. Only the transfer
// workflow calls this, on completion of an approved request.
func (s *Service) TransferHolder(ctx context.Context, registrationID, newHolderID uint) error {
	_ = ctx
	return s.repo.WithTx(func(r Repository) error {
		reg, err := r.GetRegistrationForUpdate(registrationID)
		if err != nil {
			return err
		}
		changed, err := ApplyTransfer(reg, newHolderID)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return r.SaveRegistration(reg)
	})
}

// RequestRefund moves confirmed→refund_requested.
func (s *Service) RequestRefund(ctx context.Context, registrationID uint, actorID uint) error {
	_ = ctx
	return s.repo.WithTx(func(r Repository) error {
		reg, err := r.GetRegistrationForUpdate(registrationID)
		if err != nil {
			return err
		}
		if err := applyRefundRequested(reg); err != nil {
			return err
		}
		return r.SaveRegistration(reg)
	})
}

// ApplyRefunded finishes the refund flow once the gateway reports the refund.
func (s *Service) ApplyRefunded(ctx context.Context, registrationID uint) error {
	err := s.repo.WithTx(func(r Repository) error {
		reg, err := r.GetRegistrationForUpdate(registrationID)
		if err != nil {
			return err
		}
		if err := applyRefunded(reg); err != nil {
			return err
		}
		return r.SaveRegistration(reg)
	})
	if err != nil {
		return err
	}
	if s.ledger != nil {
		if err := s.ledger.ReverseOnCancellation(ctx, registrationID); err != nil {
			s.log.Error("commission reversal failed",
				zap.Uint("registration_id", registrationID),
				zap.Error(err))
		}
	}
	return nil
}

// Get returns a registration by id.
func (s *Service) Get(ctx context.Context, registrationID uint) (*models.Registration, error) {
	_ = ctx
	return s.repo.GetRegistration(registrationID)
}

// GetByCode returns a registration by its confirmation code.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Registration, error) {
	_ = ctx
	return s.repo.GetRegistrationByCode(code)
}
