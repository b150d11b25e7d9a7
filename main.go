package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/RafaelMassi/CorridaPass/app/controllers"
	"github.com/RafaelMassi/CorridaPass/app/repository"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/asaas"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/cache"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/constants"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/database"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/env"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/logging"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/router"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/webhook"
)

func main() {
	app := NewApplication()
	defer logging.Sync()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)

	gateway := asaas.NewClientFromEnv()
	services := controllers.InitServices(db, gateway)

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "CorridaPass",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get(constants.MetricsRoute, basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	router.InstallRouter(app)

	// background reconciliation of missed webhooks and stale charges
	sweeper := webhook.NewSweeper(services.Webhook, gateway)
	go sweeper.Run(context.Background())

	return app
}
