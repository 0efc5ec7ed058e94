package domain

import "time"

// ChatSessionType tags who the user is talking to.
type ChatSessionType string

const (
	SessionUserTechnician ChatSessionType = "user_technician"
	SessionUserBot        ChatSessionType = "user_bot"
)

// ChatSessionStatus enumerates session states. Sessions are never hard-deleted.
type ChatSessionStatus string

const (
	SessionActive   ChatSessionStatus = "active"
	SessionClosed   ChatSessionStatus = "closed"
	SessionArchived ChatSessionStatus = "archived"
	SessionDeleted  ChatSessionStatus = "deleted"
)

// ChatSession is a conversation keyed by (user, technician, ticket, type).
type ChatSession struct {
	ID            string
	UserID        string
	TechnicianID  *string
	TicketID      *string
	Type          ChatSessionType
	Status        ChatSessionStatus
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasParticipant reports whether actorID takes part in the session.
func (s *ChatSession) HasParticipant(actorID string) bool {
	if s.UserID == actorID {
		return true
	}
	return s.TechnicianID != nil && *s.TechnicianID == actorID
}

// SessionKey identifies a conversation thread for get-or-create.
type SessionKey struct {
	UserID       string
	TechnicianID *string
	TicketID     *string
	Type         ChatSessionType
}

// MessageType tags direction within a session.
type MessageType string

const (
	MessageUserToTechnician MessageType = "user_to_technician"
	MessageTechnicianToUser MessageType = "technician_to_user"
	MessageUserToBot        MessageType = "user_to_bot"
	MessageBotToUser        MessageType = "bot_to_user"
)

// Message belongs to exactly one session. SenderID is nil for bot replies.
type Message struct {
	ID         string
	SessionID  string
	SenderID   *string
	ReceiverID *string
	Content    string
	Type       MessageType
	IsRead     bool
	IsDeleted  bool
	Payload    *BotPayload
	CreatedAt  time.Time
	EditedAt   *time.Time
	DeletedAt  *time.Time
}

// BotPayload carries structured quick replies attached to bot messages.
type BotPayload struct {
	Kind         string       `json:"kind"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
	RelatedFAQs  []string     `json:"related_faqs,omitempty"`
}

// QuickReply is a button rendered under a bot message.
type QuickReply struct {
	Label   string `json:"label"`
	Action  string `json:"action"`
	Payload string `json:"payload,omitempty"`
}

// MessageEdit preserves the previous content of an edited message.
type MessageEdit struct {
	ID          string
	MessageID   string
	PrevContent string
	EditedAt    time.Time
}
