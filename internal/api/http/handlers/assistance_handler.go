package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// AssistanceHandler manages assistance request endpoints.
type AssistanceHandler struct {
	service *service.AssistanceService
}

// NewAssistanceHandler constructs handler.
func NewAssistanceHandler(assistance *service.AssistanceService) *AssistanceHandler {
	return &AssistanceHandler{service: assistance}
}

// Create POST /assistance.
func (h *AssistanceHandler) Create(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateAssistanceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	created, ticket, err := h.service.Request(c.UserContext(), identity, service.AssistanceInput{
		TechnicianID: req.TechnicianID,
		TicketID:     req.TicketID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Priority:     req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"request": dto.NewAssistanceResponse(created),
		"ticket":  dto.NewTicketResponse(ticket),
	}})
}

// List GET /assistance?incoming=true.
func (h *AssistanceHandler) List(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	filter := service.AssistanceListFilter{
		Incoming: c.QueryBool("incoming"),
		TicketID: optionalQuery(c, "ticket_id"),
		Statuses: parseList[domain.AssistanceRequestStatus](c.Query("status")),
	}
	filter.Limit, filter.Offset = page(c)

	reqs, err := h.service.List(c.UserContext(), identity, filter)
	if err != nil {
		return err
	}
	items := make([]dto.AssistanceResponse, 0, len(reqs))
	for i := range reqs {
		items = append(items, dto.NewAssistanceResponse(&reqs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /assistance/:id.
func (h *AssistanceHandler) Get(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	req, err := h.service.Get(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssistanceResponse(req)})
}

// Accept POST /assistance/:id/accept.
func (h *AssistanceHandler) Accept(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	result, err := h.service.Accept(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.AcceptResponse{
		Request:          dto.NewAssistanceResponse(result.Request),
		Ticket:           dto.NewTicketResponse(result.Ticket),
		RejectedSiblings: result.RejectedSiblings,
	}
	if result.Session != nil {
		session := dto.NewSessionResponse(result.Session)
		resp.Session = &session
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Reject POST /assistance/:id/reject.
func (h *AssistanceHandler) Reject(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	req, err := h.service.Reject(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssistanceResponse(req)})
}

// Cancel POST /assistance/:id/cancel.
func (h *AssistanceHandler) Cancel(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	req, err := h.service.Cancel(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssistanceResponse(req)})
}
