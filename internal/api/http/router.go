package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/paralympics-auth/internal/api/http/handlers"
	"github.com/spec-kit/paralympics-auth/internal/auth"
	"github.com/spec-kit/paralympics-auth/internal/config"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Accounts *handlers.AccountsHandler
	AuthGate *auth.AuthGate
}

// NewApp builds the fiber application with service-level settings.
func NewApp(cfg config.AppConfig) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               cfg.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.RequestTimeout(),
	})
}

// RegisterRoutes wires HTTP routes. Everything under /accounts sits behind the auth gate.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Accounts.Register)
	authGroup.Post("/login", cfg.Accounts.Login)

	protected := app.Group("/accounts", cfg.AuthGate.Handle)
	protected.Get("/me", cfg.Accounts.Me)
}
