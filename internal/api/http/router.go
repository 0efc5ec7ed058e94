package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Assistance     *handlers.AssistanceHandler
	Chat           *handlers.ChatHandler
	FAQ            *handlers.FAQHandler
	Profiles       *handlers.ProfilesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	// The catalogue is public; single items need an identity so inactive
	// entries stay admin-only.
	faq := app.Group("/faq")
	faq.Get("/", cfg.FAQ.Sections)
	faq.Get("/categories", cfg.FAQ.Categories)
	faq.Get("/categories/:slug", cfg.FAQ.Category)
	faq.Get("/search", cfg.FAQ.Search)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireIdentity())

	api.Get("/me", cfg.Profiles.Me)
	api.Patch("/me", cfg.Profiles.UpdateMe)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/transition", cfg.Tickets.Transition)
	tickets.Post("/:id/review", cfg.Tickets.SubmitReview)
	tickets.Get("/:id/history", cfg.Tickets.History)

	assistance := api.Group("/assistance")
	assistance.Post("/", cfg.Assistance.Create)
	assistance.Get("/", cfg.Assistance.List)
	assistance.Get("/:id", cfg.Assistance.Get)
	assistance.Post("/:id/accept", auth.RequireTechnician(), cfg.Assistance.Accept)
	assistance.Post("/:id/reject", auth.RequireTechnician(), cfg.Assistance.Reject)
	assistance.Post("/:id/cancel", cfg.Assistance.Cancel)

	chat := api.Group("/chat")
	chat.Get("/unread", cfg.Chat.UnreadCount)
	chat.Post("/bot", cfg.Chat.OpenBotSession)
	chat.Post("/sessions", cfg.Chat.OpenTechnicianSession)
	chat.Get("/sessions", cfg.Chat.ListSessions)
	chat.Get("/sessions/:id", cfg.Chat.GetSession)
	chat.Delete("/sessions/:id", cfg.Chat.DeleteSession)
	chat.Get("/sessions/:id/messages", cfg.Chat.ListMessages)
	chat.Post("/sessions/:id/messages", cfg.Chat.AppendMessage)
	chat.Post("/sessions/:id/read", cfg.Chat.MarkRead)
	chat.Post("/sessions/:id/close", cfg.Chat.CloseSession)
	chat.Post("/sessions/:id/archive", cfg.Chat.ArchiveSession)
	chat.Get("/sessions/:id/audit", auth.RequireAdmin(), cfg.Chat.Audit)
	chat.Patch("/messages/:id", cfg.Chat.EditMessage)
	chat.Delete("/messages/:id", cfg.Chat.DeleteMessage)

	technicians := api.Group("/technicians")
	technicians.Get("/", cfg.Profiles.Directory)
	technicians.Put("/me", auth.RequireTechnician(), cfg.Profiles.UpdateTechnicianProfile)
	technicians.Post("/me/availability", auth.RequireTechnician(), cfg.Profiles.SetAvailability)
	technicians.Get("/:id", cfg.Profiles.Technician)

	api.Get("/faq/items/:id", cfg.FAQ.Item)

	admin := api.Group("/admin", auth.RequireAdmin())
	admin.Post("/profiles", cfg.Profiles.CreateProfile)
	admin.Post("/profiles/:id/technician", cfg.Profiles.SetTechnicianFlag)
	admin.Post("/faq/items", cfg.FAQ.CreateItem)
	admin.Put("/faq/items/:id", cfg.FAQ.UpdateItem)
}
