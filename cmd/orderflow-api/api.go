// Package main provides the Orderflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/orderflow/pkg/cmd"
	"github.com/dukex/orderflow/pkg/config"
	"github.com/dukex/orderflow/pkg/services"
	"github.com/dukex/orderflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger    *slog.Logger
	runtime   *cmd.Runtime
	workflows *services.Workflow
	app       *fiber.App
}

func NewAPI(logger *slog.Logger, runtime *cmd.Runtime) *API {
	return &API{
		logger:    logger,
		runtime:   runtime,
		workflows: services.NewWorkflow(runtime.Persistence, runtime.Validator, runtime.Engine),
	}
}

// Seed creates the workflows of a YAML file that are not stored yet.
func (a *API) Seed(ctx context.Context, path string) error {
	definitions, err := config.LoadWorkflows(path)
	if err != nil {
		return err
	}

	created, err := a.workflows.Seed(ctx, definitions)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Seeded workflows", "file", path, "created", created, "total", len(definitions))

	return nil
}

func (a *API) App() *fiber.App {
	if a.app != nil {
		return a.app
	}

	executionService := services.NewExecution(a.runtime.Persistence, a.runtime.Engine)

	handlers := web.NewAPIHandlers(a.workflows, executionService, a.runtime.Validator, a.runtime.Catalog)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Orderflow API")
	})

	handlers.Register(app)

	a.app = app

	return app
}

// Start serves until ctx ends, then drains in-flight requests.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	errs := make(chan error, 1)

	go func() {
		errs <- app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	a.logger.InfoContext(ctx, "API listening", "port", port)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return app.ShutdownWithContext(context.WithoutCancel(ctx))
	}
}
