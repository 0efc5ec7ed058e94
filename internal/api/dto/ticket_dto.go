package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// TransitionRequest moves a ticket to a new status.
type TransitionRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// ReviewRequest rates a resolved ticket.
type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID           string                `json:"id"`
	OwnerID      string                `json:"owner_id"`
	TechnicianID *string               `json:"technician_id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Category     domain.TicketCategory `json:"category"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	ResolvedAt   *time.Time            `json:"resolved_at"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// ReviewResponse represents a review.
type ReviewResponse struct {
	ID           string    `json:"id"`
	TicketID     string    `json:"ticket_id"`
	TechnicianID string    `json:"technician_id"`
	UserID       string    `json:"user_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           ticket.ID,
		OwnerID:      ticket.OwnerID,
		TechnicianID: ticket.TechnicianID,
		Title:        ticket.Title,
		Description:  ticket.Description,
		Category:     ticket.Category,
		Priority:     ticket.Priority,
		Status:       ticket.Status,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
		ResolvedAt:   ticket.ResolvedAt,
	}
}

// NewHistoryResponses maps history entries.
func NewHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	resp := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}

// NewReviewResponse maps a review.
func NewReviewResponse(review *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:           review.ID,
		TicketID:     review.TicketID,
		TechnicianID: review.TechnicianID,
		UserID:       review.UserID,
		Rating:       review.Rating,
		Comment:      review.Comment,
		CreatedAt:    review.CreatedAt,
	}
}
