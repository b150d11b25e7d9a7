package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/app/repository"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/transfer"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/usercontext"
)

type requestTransferRequest struct {
	RegistrationID uint   `json:"registration_id"`
	NewHolderCPF   string `json:"new_holder_cpf"`
	NewHolderEmail string `json:"new_holder_email"`
	Reason         string `json:"reason"`
	FeeCents       int64  `json:"fee_cents"`
}

// HandleRequestTransfer opens a transfer for a confirmed registration the
// caller holds or created.
func HandleRequestTransfer(c *fiber.Ctx) error {
	var req requestTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	userID := usercontext.GetUserID(c)
	reg, err := GetServices().Registration.Get(c.Context(), req.RegistrationID)
	if err != nil {
		return respondError(c, err)
	}
	if reg.HolderID != userID && reg.RegisteredByID != userID && !usercontext.IsAdmin(c) {
		return respondError(c, apperr.BusinessRule("registration %d belongs to another runner", reg.ID))
	}

	out, err := GetServices().Transfer.Request(c.Context(), transfer.RequestInput{
		RegistrationID: req.RegistrationID,
		RequesterID:    userID,
		NewHolderCPF:   req.NewHolderCPF,
		NewHolderEmail: req.NewHolderEmail,
		Reason:         req.Reason,
		FeeCents:       req.FeeCents,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// HandleGetTransfer returns one transfer request.
func HandleGetTransfer(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	req, err := GetServices().Transfer.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

// HandleMyTransfers lists transfer requests opened by the caller.
func HandleMyTransfers(c *fiber.Ctx) error {
	reqs, err := repository.GetGlobalRepositories().Transfer.GetByRequester(usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

// HandleRegistrationTransfers lists the transfer history of a registration.
func HandleRegistrationTransfers(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	reqs, err := GetServices().Transfer.ListByRegistration(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

// HandleListPendingTransfers lists open requests for admin review.
func HandleListPendingTransfers(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	reqs, err := repository.GetGlobalRepositories().Transfer.ListPending(offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

// HandleApproveTransfer approves a pending request. Admin action. Completes
// immediately when the fee is paid and the new holder resolved.
func HandleApproveTransfer(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	req, err := GetServices().Transfer.Approve(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

type rejectTransferRequest struct {
	Reason string `json:"reason"`
}

// HandleRejectTransfer rejects a request. Admin action, terminal.
func HandleRejectTransfer(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var body rejectTransferRequest
	_ = c.BodyParser(&body)
	req, err := GetServices().Transfer.Reject(c.Context(), id, body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

// HandleCancelTransfer withdraws a request. Requester or admin.
func HandleCancelTransfer(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	req, err := GetServices().Transfer.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if req.RequesterID != usercontext.GetUserID(c) && !usercontext.IsAdmin(c) {
		return respondError(c, apperr.BusinessRule("transfer %d belongs to another requester", req.ID))
	}
	out, err := GetServices().Transfer.Cancel(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// HandleResolveTransferHolder retries the new-holder account lookup, used
// after the target signs up.
func HandleResolveTransferHolder(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	resolved, err := GetServices().Transfer.ResolveNewHolder(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"resolved": resolved})
}

type generateFeeRequest struct {
	BillingType string `json:"billing_type"`
}

// HandleGenerateTransferFee creates the gateway charge for the transfer fee.
func HandleGenerateTransferFee(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req generateFeeRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	if req.BillingType == "" {
		req.BillingType = models.BillingTypePix
	}
	p, err := GetServices().Payments.GenerateForTransferFee(c.Context(), id, req.BillingType)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}
