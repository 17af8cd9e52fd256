package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouterDependencies bundles everything the route table needs.
type RouterDependencies struct {
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Health         *handlers.HealthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires the HTTP surface.
func RegisterRoutes(app *fiber.App, deps RouterDependencies) {
	app.Get("/healthz", deps.Health.Live)
	app.Get("/readyz", deps.Health.Ready)

	api := app.Group("/api/v1")
	api.Post("/auth/login", deps.Auth.Login)

	tickets := api.Group("/tickets", deps.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Get("/stats", deps.Tickets.Stats)
	tickets.Post("/", deps.Tickets.Create)
	tickets.Get("/", deps.Tickets.List)
	tickets.Get("/:id", deps.Tickets.Get)
	tickets.Patch("/:id", deps.Tickets.Update)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleAdmin), deps.Tickets.Delete)

	tickets.Post("/:id/close", deps.Tickets.Close)
	tickets.Post("/:id/reopen", auth.RequireRole(domain.RoleAdmin), deps.Tickets.Reopen)
	tickets.Get("/:id/can-close", deps.Tickets.CanClose)

	tickets.Post("/:id/children", deps.Tickets.AssociateChild)
	tickets.Get("/:id/children", deps.Tickets.ListChildren)
	tickets.Delete("/:id/parent", deps.Tickets.DissociateChild)

	tickets.Post("/:id/comments", deps.Tickets.AddComment)
	tickets.Get("/:id/comments", deps.Tickets.ListComments)
	tickets.Get("/:id/history", deps.Tickets.ListHistory)
}
