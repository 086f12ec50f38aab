package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-escrow/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-escrow/internal/auth"
	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Accounts.Register)
	authGroup.Post("/login", cfg.Accounts.Login)
	authGroup.Post("/password/reset/request", cfg.Accounts.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Accounts.ConfirmPasswordReset)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Accounts.Me)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Post("", auth.RequireRole(domain.RoleTenant), cfg.Tickets.OpenTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/quote", auth.RequireRole(domain.RolePro), cfg.Tickets.SubmitQuote)
	tickets.Post("/:id/approve", auth.RequireRole(domain.RoleOwner), cfg.Tickets.Approve)
	tickets.Post("/:id/extra", auth.RequireRole(domain.RolePro), cfg.Tickets.RequestExtra)
	tickets.Post("/:id/extra/decide", auth.RequireRole(domain.RoleOwner), cfg.Tickets.DecideExtra)
	tickets.Post("/:id/schedule", auth.RequireRole(domain.RolePro), cfg.Tickets.ProposeSchedule)
	tickets.Post("/:id/schedule/confirm", auth.RequireRole(domain.RoleTenant), cfg.Tickets.ConfirmSchedule)
	tickets.Post("/:id/complete", auth.RequireRole(domain.RolePro), cfg.Tickets.Complete)
	tickets.Post("/:id/validate", auth.RequireRole(domain.RoleOwner, domain.RoleTenant), cfg.Tickets.Validate)
	tickets.Post("/:id/dispute", auth.RequireRole(domain.RoleTenant, domain.RoleOwner), cfg.Tickets.Dispute)

	escrows := app.Group("/escrows", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	escrows.Get("/:id", cfg.Tickets.GetEscrow)
}
