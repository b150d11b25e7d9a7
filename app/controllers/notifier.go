package controllers

import (
	"go.uber.org/zap"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/app/repository"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/mail"
)

// mailNotifier sends lifecycle emails to the current holder. Sends run in the
// background and failures are logged only; mail never blocks a state change.
type mailNotifier struct{}

func (mailNotifier) RegistrationConfirmed(reg *models.Registration) {
	go func() {
		holder, err := repository.GetGlobalRepositories().User.GetByID(reg.HolderID)
		if err != nil {
			logging.L().Warn("confirmation mail skipped",
				zap.Uint("registration_id", reg.ID), zap.Error(err))
			return
		}
		if err := mail.SendRegistrationConfirmed(holder.Email, reg); err != nil {
			logging.L().Warn("confirmation mail failed",
				zap.Uint("registration_id", reg.ID), zap.Error(err))
		}
	}()
}

func (mailNotifier) TransferCompleted(req *models.TransferRequest) {
	go func() {
		repos := repository.GetGlobalRepositories()
		reg, err := repos.Registration.GetByID(req.RegistrationID)
		if err != nil {
			logging.L().Warn("transfer mail skipped",
				zap.Uint("transfer_id", req.ID), zap.Error(err))
			return
		}
		holder, err := repos.User.GetByID(reg.HolderID)
		if err != nil {
			logging.L().Warn("transfer mail skipped",
				zap.Uint("transfer_id", req.ID), zap.Error(err))
			return
		}
		if err := mail.SendTransferCompleted(holder.Email, reg); err != nil {
			logging.L().Warn("transfer mail failed",
				zap.Uint("transfer_id", req.ID), zap.Error(err))
		}
	}()
}
