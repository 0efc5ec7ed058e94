package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), identity, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	filter := service.TicketListFilter{
		Statuses:   parseList[domain.TicketStatus](c.Query("status")),
		Categories: parseList[domain.TicketCategory](c.Query("category")),
		Priorities: parseList[domain.TicketPriority](c.Query("priority")),
		SearchTerm: optionalQuery(c, "q"),
	}
	filter.Limit, filter.Offset = page(c)

	tickets, err := h.service.ListTickets(c.UserContext(), identity, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Transition(c.UserContext(), identity, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// SubmitReview POST /tickets/:id/review.
func (h *TicketsHandler) SubmitReview(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	review, err := h.service.SubmitReview(c.UserContext(), identity, c.Params("id"), service.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReviewResponse(review)})
}

// History GET /tickets/:id/history?type=STATUS_CHANGE.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	history, err := h.service.History(c.UserContext(), identity, c.Params("id"), parseList[domain.TicketChangeType](c.Query("type"))...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(history)})
}
