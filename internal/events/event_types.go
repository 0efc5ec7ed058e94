package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketReviewed      EventType = "ticket_reviewed"

	EventAssistanceRequested EventType = "assistance_requested"
	EventAssistanceAccepted  EventType = "assistance_accepted"
	EventAssistanceRejected  EventType = "assistance_rejected"
	EventAssistanceCancelled EventType = "assistance_cancelled"

	EventChatSessionOpened        EventType = "chat_session_opened"
	EventChatSessionStatusChanged EventType = "chat_session_status_changed"
	EventChatMessageAppended      EventType = "chat_message_appended"

	EventTechnicianEnabled EventType = "technician_enabled"
)

// AllEventTypes lists every type, for sinks that forward everything.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketReviewed,
	EventAssistanceRequested,
	EventAssistanceAccepted,
	EventAssistanceRejected,
	EventAssistanceCancelled,
	EventChatSessionOpened,
	EventChatSessionStatusChanged,
	EventChatMessageAppended,
	EventTechnicianEnabled,
}

// Actor identifies who caused an event. An empty ID means the bot or the system.
type Actor struct {
	ID   string      `json:"id,omitempty"`
	Role domain.Role `json:"role,omitempty"`
}

// ActorFrom converts an identity into event actor metadata.
func ActorFrom(identity domain.Identity) Actor {
	return Actor{ID: identity.ActorID, Role: identity.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	TicketID    string    `json:"ticket_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Actor       Actor     `json:"actor"`
	RecipientID *string   `json:"recipient_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// Key returns the partitioning key: the ticket when present, else the session.
func (e Event) Key() string {
	if e.TicketID != "" {
		return e.TicketID
	}
	return e.SessionID
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Title    string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketReviewedPayload payload.
type TicketReviewedPayload struct {
	ReviewID string `json:"review_id"`
	Rating   int    `json:"rating"`
}

// AssistancePayload accompanies every assistance request event.
type AssistancePayload struct {
	RequestID    string                         `json:"request_id"`
	TechnicianID string                         `json:"technician_id"`
	Status       domain.AssistanceRequestStatus `json:"status"`
	SessionID    string                         `json:"session_id,omitempty"`
	Rejected     int64                          `json:"rejected_siblings,omitempty"`
}

// SessionPayload accompanies chat session events.
type SessionPayload struct {
	Type      domain.ChatSessionType   `json:"type"`
	OldStatus domain.ChatSessionStatus `json:"old_status,omitempty"`
	NewStatus domain.ChatSessionStatus `json:"new_status"`
}

// MessageAppendedPayload payload.
type MessageAppendedPayload struct {
	MessageID   string             `json:"message_id"`
	MessageType domain.MessageType `json:"message_type"`
	Preview     string             `json:"preview"`
}

// TechnicianEnabledPayload payload.
type TechnicianEnabledPayload struct {
	UserID string `json:"user_id"`
}
