package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/RafaelMassi/CorridaPass/app/controllers"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/constants"
)

type WebhookRouter struct {
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}

// InstallRouter registers the gateway-facing endpoint. No session, no rate
// limiter: the gateway authenticates with a shared token and its retry
// policy must not be throttled into false failures.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post(constants.WebhookRoute, controllers.HandleAsaasWebhook)
}
