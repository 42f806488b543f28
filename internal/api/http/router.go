package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/aviation-mailbot/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Intake  *handlers.IntakeHandler
	Tickets *handlers.TicketsHandler
	Jobs    *handlers.JobsHandler
	Config  *handlers.ConfigHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/mailboxes/:mailbox/messages", cfg.Intake.Enqueue)
	app.Post("/messages/process", cfg.Intake.Process)

	tickets := app.Group("/tickets")
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/escalation", cfg.Tickets.EscalationStatus)
	tickets.Post("/:id/escalation", cfg.Tickets.StartEscalation)
	tickets.Post("/:id/acknowledge", cfg.Tickets.Acknowledge)

	jobs := app.Group("/jobs")
	jobs.Post("/poll", cfg.Jobs.Poll)
	jobs.Post("/escalations", cfg.Jobs.Escalations)

	app.Post("/config/reload", cfg.Config.Reload)
}
