package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateAssistanceRequest asks a technician for help. When TicketID is empty a
// ticket is filed from the remaining fields.
type CreateAssistanceRequest struct {
	TechnicianID string                `json:"technician_id"`
	TicketID     *string               `json:"ticket_id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Category     domain.TicketCategory `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
}

// AssistanceResponse represents a request.
type AssistanceResponse struct {
	ID           string                         `json:"id"`
	UserID       string                         `json:"user_id"`
	TechnicianID string                         `json:"technician_id"`
	TicketID     string                         `json:"ticket_id"`
	Title        string                         `json:"title"`
	Description  string                         `json:"description"`
	Priority     domain.TicketPriority          `json:"priority"`
	Status       domain.AssistanceRequestStatus `json:"status"`
	CreatedAt    time.Time                      `json:"created_at"`
	UpdatedAt    time.Time                      `json:"updated_at"`
}

// AcceptResponse reports the outcome of an acceptance.
type AcceptResponse struct {
	Request          AssistanceResponse `json:"request"`
	Ticket           TicketResponse     `json:"ticket"`
	Session          *SessionResponse   `json:"session"`
	RejectedSiblings int64              `json:"rejected_siblings"`
}

// NewAssistanceResponse maps a request.
func NewAssistanceResponse(req *domain.AssistanceRequest) AssistanceResponse {
	return AssistanceResponse{
		ID:           req.ID,
		UserID:       req.UserID,
		TechnicianID: req.TechnicianID,
		TicketID:     req.TicketID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Status:       req.Status,
		CreatedAt:    req.CreatedAt,
		UpdatedAt:    req.UpdatedAt,
	}
}
