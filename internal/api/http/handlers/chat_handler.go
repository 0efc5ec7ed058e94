package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// ChatHandler manages chat sessions and messages.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler constructs handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{service: chat}
}

// OpenTechnicianSession POST /chat/sessions.
func (h *ChatHandler) OpenTechnicianSession(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.OpenSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := h.service.OpenTechnicianSession(c.UserContext(), identity, req.TechnicianID, req.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// OpenBotSession POST /chat/bot.
func (h *ChatHandler) OpenBotSession(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	session, err := h.service.OpenBotSession(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// ListSessions GET /chat/sessions.
func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	filter := service.SessionListFilter{
		TicketID: optionalQuery(c, "ticket_id"),
		Statuses: parseList[domain.ChatSessionStatus](c.Query("status")),
	}
	if t := c.Query("type"); t != "" {
		sessionType := domain.ChatSessionType(t)
		filter.Type = &sessionType
	}
	filter.Limit, filter.Offset = page(c)

	sessions, err := h.service.ListSessions(c.UserContext(), identity, filter)
	if err != nil {
		return err
	}
	items := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, dto.NewSessionResponse(&sessions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetSession GET /chat/sessions/:id.
func (h *ChatHandler) GetSession(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	session, err := h.service.GetSession(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// ListMessages GET /chat/sessions/:id/messages.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponses(msgs)})
}

// AppendMessage POST /chat/sessions/:id/messages.
func (h *ChatHandler) AppendMessage(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.service.AppendMessage(c.UserContext(), identity, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	resp := dto.AppendResponse{Message: dto.NewMessageResponse(result.Message)}
	if result.BotReply != nil {
		reply := dto.NewMessageResponse(result.BotReply)
		resp.BotReply = &reply
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// MarkRead POST /chat/sessions/:id/read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	n, err := h.service.MarkRead(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": n}})
}

// UnreadCount GET /chat/unread.
func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	n, err := h.service.UnreadCount(c.UserContext(), identity, optionalQuery(c, "session_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": n}})
}

// CloseSession POST /chat/sessions/:id/close.
func (h *ChatHandler) CloseSession(c *fiber.Ctx) error {
	return h.changeStatus(c, h.service.CloseSession)
}

// ArchiveSession POST /chat/sessions/:id/archive.
func (h *ChatHandler) ArchiveSession(c *fiber.Ctx) error {
	return h.changeStatus(c, h.service.ArchiveSession)
}

// DeleteSession DELETE /chat/sessions/:id.
func (h *ChatHandler) DeleteSession(c *fiber.Ctx) error {
	return h.changeStatus(c, h.service.DeleteSession)
}

type sessionChange func(ctx context.Context, identity domain.Identity, sessionID string) (*domain.ChatSession, error)

func (h *ChatHandler) changeStatus(c *fiber.Ctx, change sessionChange) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	session, err := change(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// Audit GET /chat/sessions/:id/audit.
func (h *ChatHandler) Audit(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	audit, err := h.service.Audit(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuditResponse{
		Session:  dto.NewSessionResponse(audit.Session),
		Messages: dto.NewMessageResponses(audit.Messages),
		Edits:    dto.NewEditResponses(audit.Edits),
	}})
}

// EditMessage PATCH /chat/messages/:id.
func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.service.EditMessage(c.UserContext(), identity, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// DeleteMessage DELETE /chat/messages/:id.
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteMessage(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
