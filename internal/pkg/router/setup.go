package router

import (
	"github.com/gofiber/fiber/v2"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter installs the HTTP surface. The API router carries every
// route; the webhook router is separate because the gateway endpoint skips
// session middleware and rate limiting.
func InstallRouter(app *fiber.App) {
	setup(app, NewApiRouter(), NewWebhookRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
