package webhook

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/asaas"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
)

// ChargeGetter re-queries a charge's status at the gateway. The asaas client
// implements it.
type ChargeGetter interface {
	GetCharge(ctx context.Context, chargeID string) (*asaas.Charge, error)
}

// Sweeper periodically reconciles payments the webhook path missed: charges
// that settled at the gateway while a delivery was lost, plus persisted but
// unprocessed event records. Every effect it triggers is idempotent, so the
// sweep can overlap live webhook traffic.
type Sweeper struct {
	svc     *Service
	gateway ChargeGetter
	log     *zap.Logger

	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

func NewSweeper(svc *Service, gateway ChargeGetter) *Sweeper {
	return &Sweeper{
		svc:        svc,
		gateway:    gateway,
		log:        logging.L(),
		Interval:   5 * time.Minute,
		StaleAfter: 30 * time.Minute,
		BatchSize:  100,
	}
}

// Run loops until the context is cancelled. Call it in a goroutine.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.svc.ReplayPending(ctx, w.BatchSize); err != nil {
				w.log.Error("webhook replay sweep failed", zap.Error(err))
			} else if n > 0 {
				w.log.Info("replayed unprocessed webhook events", zap.Int("count", n))
			}
			if n, err := w.SweepOnce(ctx); err != nil {
				w.log.Error("payment reconciliation sweep failed", zap.Error(err))
			} else if n > 0 {
				w.log.Info("reconciled stale pending payments", zap.Int("count", n))
			}
		}
	}
}

// SweepOnce re-queries the gateway for pending charges that have not moved in
// StaleAfter and applies whatever status the gateway reports. Gateway calls
// happen outside any transaction; the status write takes the payment row lock
// and yields to a webhook that got there first.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	stale, err := w.svc.repo.ListStalePendingPayments(time.Now().Add(-w.StaleAfter), w.BatchSize)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for i := range stale {
		p := stale[i]
		charge, err := w.gateway.GetCharge(ctx, p.GatewayChargeID)
		if err != nil {
			w.log.Warn("gateway status query failed",
				zap.String("charge_id", p.GatewayChargeID), zap.Error(err))
			continue
		}
		status := chargeStatusFromGateway(charge.Status)
		if status == "" || status == models.ChargeStatusPending {
			continue
		}

		var updated *models.Payment
		err = w.svc.repo.WithTx(func(r Repository) error {
			locked, err := r.GetPaymentForUpdate(p.ID)
			if err != nil {
				return err
			}
			if locked.Status != models.ChargeStatusPending {
				return nil
			}
			locked.Status = status
			if charge.PaymentDate != nil {
				locked.PaymentDate = charge.PaymentDate
			}
			updated = locked
			return r.SavePayment(locked)
		})
		if err != nil {
			w.log.Error("payment reconciliation write failed",
				zap.Uint("payment_id", p.ID), zap.Error(err))
			continue
		}
		if updated == nil {
			continue
		}

		switch {
		case updated.IsSettled():
			if err := w.svc.onSettlement(ctx, updated); err != nil {
				w.log.Error("settlement effect failed during sweep",
					zap.Uint("payment_id", updated.ID), zap.Error(err))
				continue
			}
		case updated.Status == models.ChargeStatusRefunded:
			if err := w.svc.onRefund(ctx, updated); err != nil {
				w.log.Error("refund effect failed during sweep",
					zap.Uint("payment_id", updated.ID), zap.Error(err))
				continue
			}
		}
		reconciled++
	}
	return reconciled, nil
}

// chargeStatusFromGateway maps the gateway's charge status vocabulary onto
// the local one. Unknown statuses return "" and are left alone.
func chargeStatusFromGateway(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PENDING", "AWAITING_RISK_ANALYSIS":
		return models.ChargeStatusPending
	case "CONFIRMED":
		return models.ChargeStatusConfirmed
	case "RECEIVED", "RECEIVED_IN_CASH":
		return models.ChargeStatusReceived
	case "OVERDUE":
		return models.ChargeStatusOverdue
	case "REFUNDED":
		return models.ChargeStatusRefunded
	case "CHARGEBACK_REQUESTED", "CHARGEBACK_DISPUTE", "AWAITING_CHARGEBACK_REVERSAL":
		return models.ChargeStatusChargeback
	}
	return ""
}
