package controllers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/RafaelMassi/CorridaPass/app/models"
	"github.com/RafaelMassi/CorridaPass/app/repository"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/cache"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/registration"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/usercontext"
)

const registrationCodeCacheTTL = 5 * time.Minute

type createRegistrationRequest struct {
	EventID       uint   `json:"event_id"`
	CategoryID    uint   `json:"category_id"`
	KitID         *uint  `json:"kit_id,omitempty"`
	HolderID      uint   `json:"holder_id,omitempty"`
	PaymentMethod string `json:"payment_method"`
}

// registrationView is a registration with the viewer-dependent display
// status. The stored status is never rewritten.
type registrationView struct {
	models.Registration
	DisplayStatus string `json:"display_status"`
}

func viewFor(reg *models.Registration, viewerID uint) registrationView {
	return registrationView{
		Registration:  *reg,
		DisplayStatus: registration.ProjectStatus(reg, viewerID),
	}
}

// HandleCreateRegistration enrolls the caller (or another holder the caller
// registers) into an event category.
func HandleCreateRegistration(c *fiber.Ctx) error {
	var req createRegistrationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	userID := usercontext.GetUserID(c)
	holder := req.HolderID
	if holder == 0 {
		holder = userID
	}

	reg, err := GetServices().Registration.Create(c.Context(), registration.CreateInput{
		EventID:       req.EventID,
		CategoryID:    req.CategoryID,
		KitID:         req.KitID,
		HolderID:      holder,
		RegisteredBy:  userID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(viewFor(reg, userID))
}

// HandleGetRegistration returns one registration with the viewer-aware
// display status.
func HandleGetRegistration(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	reg, err := GetServices().Registration.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(viewFor(reg, usercontext.GetUserID(c)))
}

// HandleGetRegistrationByCode looks a registration up by confirmation code,
// the public correlation key printed on race documents. Cached briefly since
// kit pickup hammers this endpoint.
func HandleGetRegistrationByCode(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return respondError(c, apperr.Validation("confirmation code is required"))
	}

	cacheKey := "registration:code:" + code
	if raw, err := cache.Get(cacheKey); err == nil && raw != "" {
		var reg models.Registration
		if json.Unmarshal([]byte(raw), &reg) == nil {
			return c.JSON(viewFor(&reg, usercontext.GetUserID(c)))
		}
	}

	reg, err := GetServices().Registration.GetByCode(c.Context(), code)
	if err != nil {
		return respondError(c, err)
	}
	if raw, err := json.Marshal(reg); err == nil {
		_ = cache.Set(cacheKey, string(raw), registrationCodeCacheTTL)
	}
	return c.JSON(viewFor(reg, usercontext.GetUserID(c)))
}

// HandleMyRegistrations lists registrations the caller holds or created.
func HandleMyRegistrations(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	regs, err := repository.GetGlobalRepositories().Registration.GetByRunner(userID)
	if err != nil {
		return respondError(c, err)
	}
	views := make([]registrationView, 0, len(regs))
	for i := range regs {
		views = append(views, viewFor(&regs[i], userID))
	}
	return c.JSON(views)
}

// HandleEventRegistrations lists an event's registrations for its organizer.
func HandleEventRegistrations(c *fiber.Ctx) error {
	eventID, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := requireEventOwnership(c, eventID); err != nil {
		return respondError(c, err)
	}
	offset, limit := pagination(c)
	regs, err := repository.GetGlobalRepositories().Registration.GetByEvent(eventID, offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(regs)
}

// HandleCancelRegistration cancels a registration. Organizer or admin action;
// any referred commission is reversed.
func HandleCancelRegistration(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	userID := usercontext.GetUserID(c)
	if err := GetServices().Registration.Cancel(c.Context(), id, userID); err != nil {
		return respondError(c, err)
	}
	reg, err := GetServices().Registration.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	invalidateCodeCache(reg.ConfirmationCode)
	return c.JSON(viewFor(reg, userID))
}

// HandleRequestRefund moves a confirmed registration into refund_requested.
// The refund itself settles through the gateway webhook.
func HandleRequestRefund(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	userID := usercontext.GetUserID(c)
	if err := GetServices().Registration.RequestRefund(c.Context(), id, userID); err != nil {
		return respondError(c, err)
	}
	reg, err := GetServices().Registration.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	invalidateCodeCache(reg.ConfirmationCode)
	return c.JSON(viewFor(reg, userID))
}

type generatePaymentRequest struct {
	BillingType string `json:"billing_type"`
}

// HandleGeneratePayment creates a gateway charge for a pending registration.
func HandleGeneratePayment(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req generatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	p, err := GetServices().Payments.GenerateForRegistration(c.Context(), id, req.BillingType)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// HandlePaymentHistory lists every charge attempt for a registration.
func HandlePaymentHistory(c *fiber.Ctx) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	history, err := GetServices().Payments.History(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(history)
}

func invalidateCodeCache(code string) {
	if code != "" {
		_ = cache.Delete("registration:code:" + code)
	}
}
