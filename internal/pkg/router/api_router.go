package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/RafaelMassi/CorridaPass/app/controllers"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/constants"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/middleware"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/session"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "CorridaPass API",
		})
	})

	v1 := api.Group(constants.APIv1Route)

	// auth
	v1.Post("/auth/register", controllers.HandleRegister)
	v1.Post("/auth/login", controllers.HandleLogin)
	v1.Post("/auth/logout", middleware.RequireAuth, controllers.HandleLogout)
	v1.Get("/auth/me", middleware.RequireAuth, controllers.HandleMe)

	// events
	v1.Get("/events", controllers.HandleListOpenEvents)
	v1.Get("/events/:id", controllers.HandleGetEvent)
	v1.Post("/events", middleware.RequireOrganizer, controllers.HandleCreateEvent)
	v1.Get("/organizer/events", middleware.RequireOrganizer, controllers.HandleMyEvents)
	v1.Post("/events/:id/categories", middleware.RequireOrganizer, controllers.HandleAddCategory)
	v1.Post("/events/:id/kits", middleware.RequireOrganizer, controllers.HandleAddKit)
	v1.Get("/events/:id/registrations", middleware.RequireOrganizer, controllers.HandleEventRegistrations)

	// registrations
	v1.Post("/registrations", middleware.RequireAuth, controllers.HandleCreateRegistration)
	v1.Get("/registrations/mine", middleware.RequireAuth, controllers.HandleMyRegistrations)
	v1.Get("/registrations/code/:code", middleware.RequireAuth, controllers.HandleGetRegistrationByCode)
	v1.Get("/registrations/:id", middleware.RequireAuth, controllers.HandleGetRegistration)
	v1.Post("/registrations/:id/payment", middleware.RequireAuth, controllers.HandleGeneratePayment)
	v1.Get("/registrations/:id/payments", middleware.RequireAuth, controllers.HandlePaymentHistory)
	v1.Post("/registrations/:id/refund-request", middleware.RequireAuth, controllers.HandleRequestRefund)
	v1.Post("/registrations/:id/cancel", middleware.RequireOrganizer, controllers.HandleCancelRegistration)
	v1.Get("/registrations/:id/transfers", middleware.RequireAuth, controllers.HandleRegistrationTransfers)

	// transfers
	v1.Post("/transfers", middleware.RequireAuth, controllers.HandleRequestTransfer)
	v1.Get("/transfers/mine", middleware.RequireAuth, controllers.HandleMyTransfers)
	v1.Get("/transfers/:id", middleware.RequireAuth, controllers.HandleGetTransfer)
	v1.Post("/transfers/:id/cancel", middleware.RequireAuth, controllers.HandleCancelTransfer)
	v1.Post("/transfers/:id/resolve", middleware.RequireAuth, controllers.HandleResolveTransferHolder)
	v1.Post("/transfers/:id/fee", middleware.RequireAuth, controllers.HandleGenerateTransferFee)
	v1.Get("/admin/transfers", middleware.RequireAdmin, controllers.HandleListPendingTransfers)
	v1.Post("/transfers/:id/approve", middleware.RequireAdmin, controllers.HandleApproveTransfer)
	v1.Post("/transfers/:id/reject", middleware.RequireAdmin, controllers.HandleRejectTransfer)

	// leaders and commissions
	v1.Post("/leaders", middleware.RequireAuth, controllers.HandleBecomeLeader)
	v1.Get("/leaders/me", middleware.RequireAuth, controllers.HandleMyLeaderProfile)
	v1.Get("/leaders/me/commissions", middleware.RequireAuth, controllers.HandleMyCommissions)
	v1.Get("/admin/leaders/:id/commissions", middleware.RequireAdmin, controllers.HandleLeaderCommissions)
	v1.Get("/admin/leaders/:id/earnings/audit", middleware.RequireAdmin, controllers.HandleAuditLeaderEarnings)
	v1.Post("/admin/leaders/:id/earnings/reconcile", middleware.RequireAdmin, controllers.HandleReconcileLeaderEarnings)
	v1.Post("/admin/commissions/:id/mark-paid", middleware.RequireAdmin, controllers.HandleMarkCommissionPaid)

	// webhook event log inspection
	v1.Get("/admin/webhooks/failed", middleware.RequireAdmin, controllers.HandleListFailedWebhooks)
	v1.Get("/admin/webhooks/recent", middleware.RequireAdmin, controllers.HandleListRecentWebhooks)
	v1.Post("/admin/webhooks/replay", middleware.RequireAdmin, controllers.HandleReplayWebhooks)
}
