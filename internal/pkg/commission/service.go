package commission

import (
	"context"
	"errors"
	"math"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/env"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
)

// Config carries the platform commission policy. ReversePaid controls the
// deliberately explicit choice of whether a paid-out commission can still be
// reversed when the underlying registration is cancelled; the default keeps
// paid commissions immutable.
type Config struct {
	DefaultPercentage float64
	ReversePaid       bool
}

// ConfigFromEnv reads the commission policy from the environment.
func ConfigFromEnv() Config {
	pct, err := strconv.ParseFloat(env.GetEnv("COMMISSION_DEFAULT_PERCENT", "10"), 64)
	if err != nil {
		pct = 10
	}
	return Config{
		DefaultPercentage: pct,
		ReversePaid:       env.GetEnv("COMMISSION_REVERSE_PAID", "false") == "true",
	}
}

// Service maintains the referral commission ledger and the leaders' running
// earnings totals.
type Service struct {
	repo Repository
	cfg  Config
	log  *zap.Logger
}

func NewService(repo Repository, cfg Config) *Service {
	return &Service{repo: repo, cfg: cfg, log: logging.L()}
}

// NewServiceFromDB creates a commission service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cfg Config) *Service {
	return NewService(NewRepository(db), cfg)
}

// Amount computes the commission in centavos, rounded half away from zero.
func Amount(totalCents int64, percentage float64) int64 {
	return int64(math.Round(float64(totalCents) * percentage / 100))
}

// EvaluateOnPaymentConfirmed creates the commission for a freshly confirmed
// registration payment. Nil return with no row is the normal case for
// non-referred registrants. BusinessRuleError (inactive leader, non-positive
// amount) means "no commission" and must never fail the payment confirmation
// that triggered it. The earnings increment and the commission insert commit
// in one transaction, and the (leader, registration) unique key makes
// concurrent evaluation of duplicate webhooks create at most one row.
func (s *Service) EvaluateOnPaymentConfirmed(ctx context.Context, reg *models.Registration) error {
	_ = ctx
	registrant, err := s.repo.GetUser(reg.RegisteredByID)
	if err != nil {
		return err
	}
	if registrant.ReferredByLeaderID == nil {
		return nil
	}

	leader, err := s.repo.GetLeader(*registrant.ReferredByLeaderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.BusinessRule("referral leader %d no longer exists", *registrant.ReferredByLeaderID)
		}
		return err
	}
	if !leader.IsActive() {
		return apperr.BusinessRule("leader %d is inactive", leader.ID)
	}

	pct := s.cfg.DefaultPercentage
	if leader.CommissionPercentage != nil {
		pct = *leader.CommissionPercentage
	}
	amount := Amount(reg.TotalAmountCents, pct)
	if amount <= 0 {
		return apperr.BusinessRule("computed commission for registration %d is not positive", reg.ID)
	}

	return s.repo.WithTx(func(r Repository) error {
		created, err := r.CreateCommissionIfNotExists(&models.LeaderCommission{
			LeaderID:              leader.ID,
			RegistrationID:        reg.ID,
			ReferredUserID:        registrant.ID,
			EventID:               reg.EventID,
			CommissionAmountCents: amount,
			CommissionPercentage:  pct,
			Status:                models.CommissionStatusPending,
		})
		if err != nil {
			return err
		}
		if !created {
			// Duplicate delivery already recorded this commission.
			return nil
		}
		return r.AddToLeaderEarnings(leader.ID, amount)
	})
}

// ReverseOnCancellation cancels the registration's pending commission and
// decrements the leader's earnings by the same amount. Idempotent: a missing
// or already-cancelled commission is a no-op. Paid commissions stay untouched
// unless the ReversePaid policy is enabled.
func (s *Service) ReverseOnCancellation(ctx context.Context, registrationID uint) error {
	_ = ctx
	return s.repo.WithTx(func(r Repository) error {
		c, err := r.GetCommissionByRegistrationForUpdate(registrationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		switch c.Status {
		case models.CommissionStatusCancelled:
			return nil
		case models.CommissionStatusPaid:
			if !s.cfg.ReversePaid {
				s.log.Info("paid commission left in place on cancellation",
					zap.Uint("commission_id", c.ID),
					zap.Uint("registration_id", registrationID))
				return nil
			}
		}

		c.Status = models.CommissionStatusCancelled
		if err := r.SaveCommission(c); err != nil {
			return err
		}
		return r.AddToLeaderEarnings(c.LeaderID, -c.CommissionAmountCents)
	})
}

// MarkPaid records a payout for a pending commission.
func (s *Service) MarkPaid(ctx context.Context, commissionID uint) error {
	_ = ctx
	return s.repo.WithTx(func(r Repository) error {
		c, err := r.GetCommissionForUpdate(commissionID)
		if err != nil {
			return err
		}
		if c.Status == models.CommissionStatusPaid {
			return nil
		}
		if c.Status != models.CommissionStatusPending {
			return apperr.Conflict("commission %d is %s", c.ID, c.Status)
		}
		c.Status = models.CommissionStatusPaid
		return r.SaveCommission(c)
	})
}

// AuditReport compares the incrementally maintained earnings counter with a
// recomputation from the commission rows.
type AuditReport struct {
	LeaderID      uint  `json:"leader_id"`
	StoredCents   int64 `json:"stored_cents"`
	ComputedCents int64 `json:"computed_cents"`
	DriftCents    int64 `json:"drift_cents"`
}

// AuditEarnings recomputes a leader's earnings from first principles.
func (s *Service) AuditEarnings(ctx context.Context, leaderID uint) (*AuditReport, error) {
	_ = ctx
	leader, err := s.repo.GetLeader(leaderID)
	if err != nil {
		return nil, err
	}
	computed, err := s.repo.SumCountedEarnings(leaderID)
	if err != nil {
		return nil, err
	}
	return &AuditReport{
		LeaderID:      leaderID,
		StoredCents:   leader.TotalEarningsCents,
		ComputedCents: computed,
		DriftCents:    leader.TotalEarningsCents - computed,
	}, nil
}

// ReconcileEarnings repairs the stored counter from the ledger when an audit
// found drift.
func (s *Service) ReconcileEarnings(ctx context.Context, leaderID uint) (*AuditReport, error) {
	var report *AuditReport
	err := s.repo.WithTx(func(r Repository) error {
		leader, err := r.GetLeaderForUpdate(leaderID)
		if err != nil {
			return err
		}
		computed, err := r.SumCountedEarnings(leaderID)
		if err != nil {
			return err
		}
		report = &AuditReport{
			LeaderID:      leaderID,
			StoredCents:   leader.TotalEarningsCents,
			ComputedCents: computed,
			DriftCents:    leader.TotalEarningsCents - computed,
		}
		if report.DriftCents == 0 {
			return nil
		}
		s.log.Warn("leader earnings drift repaired",
			zap.Uint("leader_id", leaderID),
			zap.Int64("drift_cents", report.DriftCents))
		leader.TotalEarningsCents = computed
		return r.SaveLeader(leader)
	})
	if err != nil {
		return nil, err
	}
	_ = ctx
	return report, nil
}

// GetLeaderByUserID resolves the leader profile for a user account.
func (s *Service) GetLeaderByUserID(ctx context.Context, userID uint) (*models.GroupLeader, error) {
	_ = ctx
	return s.repo.GetLeaderByUserID(userID)
}

// GetLeaderByReferralCode resolves a referral code at signup.
func (s *Service) GetLeaderByReferralCode(ctx context.Context, code string) (*models.GroupLeader, error) {
	_ = ctx
	return s.repo.GetLeaderByReferralCode(code)
}

// ListCommissions returns a leader's commissions with optional filters.
func (s *Service) ListCommissions(ctx context.Context, filter ListFilter) ([]models.LeaderCommission, error) {
	_ = ctx
	return s.repo.ListCommissions(filter)
}
