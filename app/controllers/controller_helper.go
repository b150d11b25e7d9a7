package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/asaas"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/commission"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/payments"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/registration"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/transfer"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/webhook"
)

// Services holds the wired domain services the controllers dispatch into.
// Initialized once at startup by InitServices.
type Services struct {
	Registration *registration.Service
	Commission   *commission.Service
	Transfer     *transfer.Service
	Payments     *payments.Service
	Webhook      *webhook.Service
	Gateway      *asaas.Client
}

var svc *Services

// InitServices wires the domain services against one DB handle and gateway
// client. The commission service doubles as the registration service's
// cancellation ledger.
func InitServices(db *gorm.DB, gateway *asaas.Client) *Services {
	comm := commission.NewServiceFromDB(db, commission.ConfigFromEnv())
	regs := registration.NewServiceFromDB(db, comm)
	trans := transfer.NewServiceFromDB(db)
	pay := payments.NewServiceFromDB(db, gateway, trans)
	hook := webhook.NewServiceFromDB(db, regs, comm, trans)

	notifier := mailNotifier{}
	trans.SetNotifier(notifier)
	hook.SetNotifier(notifier)

	svc = &Services{
		Registration: regs,
		Commission:   comm,
		Transfer:     trans,
		Payments:     pay,
		Webhook:      hook,
		Gateway:      gateway,
	}
	return svc
}

// GetServices returns the wired services. Panics when InitServices was not
// called, which is a startup ordering bug.
func GetServices() *Services {
	if svc == nil {
		panic("controllers: services not initialized, call InitServices first")
	}
	return svc
}

// respondError maps classified errors onto stable HTTP responses. Unknown
// errors become opaque 500s so internals never leak to clients.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status := fiber.StatusInternalServerError
		switch appErr.Kind {
		case apperr.KindValidation:
			status = fiber.StatusBadRequest
		case apperr.KindConflict:
			status = fiber.StatusConflict
		case apperr.KindBusinessRule:
			status = fiber.StatusUnprocessableEntity
		case apperr.KindGateway:
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"error": appErr.Message,
			"kind":  string(appErr.Kind),
		})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not found",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

// paramUint parses a numeric path parameter.
func paramUint(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw)
	}
	return uint(v), nil
}

// pagination reads offset/limit query parameters with sane bounds.
func pagination(c *fiber.Ctx) (int, int) {
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return offset, limit
}
