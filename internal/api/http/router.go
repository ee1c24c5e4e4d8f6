package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-desk/internal/api/http/handlers"
	"github.com/spec-kit/guild-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Post("/tickets/:id/actions/:action", cfg.Tickets.PerformAction)
	api.Get("/tickets/:id/audit", cfg.Tickets.GetAudit)
	api.Get("/tickets/:id/export", cfg.Tickets.Export)

	api.Get("/guilds/:guildId/tickets", cfg.Tickets.ListTickets)
	api.Get("/guilds/:guildId/staff", cfg.Staff.List)
	api.Post("/guilds/:guildId/staff", cfg.Staff.Grant)
	api.Delete("/guilds/:guildId/staff/:userId", cfg.Staff.Revoke)
}
