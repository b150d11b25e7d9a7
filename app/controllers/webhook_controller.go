package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/RafaelMassi/CorridaPass/app/repository"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/asaas"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/env"
)

// HandleAsaasWebhook receives gateway notifications. Response semantics
// follow the gateway's retry policy: 2xx acknowledges, 4xx/5xx makes it
// redeliver. Processing errors return 500 so the redelivery retries them;
// replays are safe because processing is deduped.
func HandleAsaasWebhook(c *fiber.Ctx) error {
	raw := c.Body()
	deliveryID := c.Get("asaas-delivery-id")

	secret := env.GetEnv("ASAAS_WEBHOOK_TOKEN", "")
	if !asaas.VerifyAccessToken(c.Get("asaas-access-token"), secret) {
		// Keep the body for forensics, reject the delivery.
		_ = GetServices().Webhook.StoreUnverified(c.Context(), raw, deliveryID)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid webhook token",
		})
	}

	if err := GetServices().Webhook.Process(c.Context(), raw, deliveryID); err != nil {
		if apperr.IsValidation(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "malformed payload",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "processing failed",
		})
	}
	return c.JSON(fiber.Map{"received": true})
}

// HandleListFailedWebhooks lists stored events whose processing failed, for
// operator inspection. Admin only.
func HandleListFailedWebhooks(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	events, err := repository.GetGlobalRepositories().WebhookEvent.ListFailed(offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

// HandleListRecentWebhooks lists the most recent events. Admin only.
func HandleListRecentWebhooks(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	events, err := repository.GetGlobalRepositories().WebhookEvent.ListRecent(offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

// HandleReplayWebhooks re-attempts unprocessed events. Admin only, safe to
// call at any time.
func HandleReplayWebhooks(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	n, err := GetServices().Webhook.ReplayPending(c.Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"replayed": n})
}
