package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// OpenSessionRequest opens a conversation with a technician.
type OpenSessionRequest struct {
	TechnicianID string  `json:"technician_id"`
	TicketID     *string `json:"ticket_id"`
}

// SendMessageRequest appends or edits a message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SessionResponse represents a chat session.
type SessionResponse struct {
	ID            string                   `json:"id"`
	UserID        string                   `json:"user_id"`
	TechnicianID  *string                  `json:"technician_id"`
	TicketID      *string                  `json:"ticket_id"`
	Type          domain.ChatSessionType   `json:"type"`
	Status        domain.ChatSessionStatus `json:"status"`
	LastMessageAt *time.Time               `json:"last_message_at"`
	CreatedAt     time.Time                `json:"created_at"`
}

// MessageResponse represents a chat message.
type MessageResponse struct {
	ID         string             `json:"id"`
	SessionID  string             `json:"session_id"`
	SenderID   *string            `json:"sender_id"`
	ReceiverID *string            `json:"receiver_id"`
	Content    string             `json:"content"`
	Type       domain.MessageType `json:"type"`
	IsRead     bool               `json:"is_read"`
	IsDeleted  bool               `json:"is_deleted,omitempty"`
	Payload    *domain.BotPayload `json:"payload,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	EditedAt   *time.Time         `json:"edited_at,omitempty"`
}

// AppendResponse carries the stored message and the bot's reply, if any.
type AppendResponse struct {
	Message  MessageResponse  `json:"message"`
	BotReply *MessageResponse `json:"bot_reply,omitempty"`
}

// MessageEditResponse is one entry of a message's edit history.
type MessageEditResponse struct {
	MessageID   string    `json:"message_id"`
	PrevContent string    `json:"prev_content"`
	EditedAt    time.Time `json:"edited_at"`
}

// AuditResponse returns a session's complete record.
type AuditResponse struct {
	Session  SessionResponse       `json:"session"`
	Messages []MessageResponse     `json:"messages"`
	Edits    []MessageEditResponse `json:"edits"`
}

// NewSessionResponse maps a session.
func NewSessionResponse(session *domain.ChatSession) SessionResponse {
	return SessionResponse{
		ID:            session.ID,
		UserID:        session.UserID,
		TechnicianID:  session.TechnicianID,
		TicketID:      session.TicketID,
		Type:          session.Type,
		Status:        session.Status,
		LastMessageAt: session.LastMessageAt,
		CreatedAt:     session.CreatedAt,
	}
}

// NewMessageResponse maps a message.
func NewMessageResponse(msg *domain.Message) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		SessionID:  msg.SessionID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		Type:       msg.Type,
		IsRead:     msg.IsRead,
		IsDeleted:  msg.IsDeleted,
		Payload:    msg.Payload,
		CreatedAt:  msg.CreatedAt,
		EditedAt:   msg.EditedAt,
	}
}

// NewMessageResponses maps a message list.
func NewMessageResponses(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageResponse(&msgs[i]))
	}
	return out
}

// NewEditResponses maps edit history.
func NewEditResponses(edits []domain.MessageEdit) []MessageEditResponse {
	out := make([]MessageEditResponse, 0, len(edits))
	for _, e := range edits {
		out = append(out, MessageEditResponse{MessageID: e.MessageID, PrevContent: e.PrevContent, EditedAt: e.EditedAt})
	}
	return out
}
