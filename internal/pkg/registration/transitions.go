package registration

import (
	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
)

// Pure state transitions over a registration row. Every mutating service
// method loads the row under a lock, applies one of these, and saves. The
// transition functions themselves never touch storage.

// applyPaymentConfirmed moves pending→confirmed and marks the payment paid.
// Returns false when the registration is already confirmed and paid, which
// makes webhook redelivery a no-op.
func applyPaymentConfirmed(reg *models.Registration) (bool, error) {
	if reg.IsTerminal() {
		return false, apperr.Conflict("registration %d is %s", reg.ID, reg.Status)
	}
	if reg.IsPaid() && reg.Status != models.RegistrationStatusPending {
		return false, nil
	}
	if reg.Status == models.RegistrationStatusPending {
		reg.Status = models.RegistrationStatusConfirmed
	}
	reg.PaymentStatus = models.RegistrationPaymentPaid
	return true, nil
}

// applyCancel moves any non-terminal registration to cancelled.
func applyCancel(reg *models.Registration) error {
	if reg.IsTerminal() {
		return apperr.Conflict("registration %d is %s", reg.ID, reg.Status)
	}
	reg.Status = models.RegistrationStatusCancelled
	return nil
}

// ApplyTransfer hands the registration to a new holder. Exported so the
// transfer workflow can run it inside its own completion transaction.
// Re-applying the same transfer is a no-op so a redelivered fee webhook
// cannot double-move the holder.
func ApplyTransfer(reg *models.Registration, newHolderID uint) (bool, error) {
	if newHolderID == 0 {
		return false, apperr.Validation("new holder is required")
	}
	if reg.Status == models.RegistrationStatusTransferred && reg.HolderID == newHolderID {
		return false, nil
	}
	if reg.Status != models.RegistrationStatusConfirmed && reg.Status != models.RegistrationStatusTransferred {
		return false, apperr.Conflict("registration %d cannot be transferred while %s", reg.ID, reg.Status)
	}
	reg.HolderID = newHolderID
	reg.Status = models.RegistrationStatusTransferred
	return true, nil
}

// applyRefundRequested moves confirmed→refund_requested.
func applyRefundRequested(reg *models.Registration) error {
	if reg.IsTerminal() {
		return apperr.Conflict("registration %d is %s", reg.ID, reg.Status)
	}
	if reg.Status != models.RegistrationStatusConfirmed {
		return apperr.Conflict("refund can only be requested for a confirmed registration, got %s", reg.Status)
	}
	reg.Status = models.RegistrationStatusRefundRequested
	return nil
}

// applyRefunded finishes the refund flow; refunded is terminal.
func applyRefunded(reg *models.Registration) error {
	if reg.Status == models.RegistrationStatusRefunded {
		return nil
	}
	if reg.Status != models.RegistrationStatusRefundRequested {
		return apperr.Conflict("registration %d has no refund request", reg.ID)
	}
	reg.Status = models.RegistrationStatusRefunded
	reg.PaymentStatus = models.RegistrationPaymentRefunded
	return nil
}

// ProjectStatus computes the viewer-dependent display status without touching
// the stored value: the original registrant of a transferred entry still sees
// "transferred" while the new holder sees "confirmed".
func ProjectStatus(reg *models.Registration, viewerID uint) string {
	if reg.Status != models.RegistrationStatusTransferred {
		return reg.Status
	}
	if viewerID == reg.HolderID && viewerID != reg.RegisteredByID {
		return models.RegistrationStatusConfirmed
	}
	return models.RegistrationStatusTransferred
}
