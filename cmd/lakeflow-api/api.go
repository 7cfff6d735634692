// Package main provides the lakeflow API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/services"
	"github.com/dukex/lakeflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger     *slog.Logger
	runService *services.Run
	registry   *registry.Registry
}

func NewAPI(
	logger *slog.Logger,
	runService *services.Run,
	registry *registry.Registry,
) *API {
	return &API{
		logger:     logger,
		runService: runService,
		registry:   registry,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.runService, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, healthy := a.runService.HealthCheck(c.Context())

			return healthy
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("lakeflow API")
	})

	handlers.Routes(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
