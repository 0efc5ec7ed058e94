package domain

import "time"

// AssistanceRequestStatus enumerates request states.
type AssistanceRequestStatus string

const (
	AssistancePending   AssistanceRequestStatus = "pending"
	AssistanceAccepted  AssistanceRequestStatus = "accepted"
	AssistanceRejected  AssistanceRequestStatus = "rejected"
	AssistanceCompleted AssistanceRequestStatus = "completed"
	AssistanceCancelled AssistanceRequestStatus = "cancelled"
)

// AssistanceRequest proposes binding a ticket to a technician.
type AssistanceRequest struct {
	ID           string
	UserID       string
	TechnicianID string
	TicketID     string
	Title        string
	Description  string
	Priority     TicketPriority
	Status       AssistanceRequestStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
