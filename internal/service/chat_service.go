package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/faqbot"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	defaultGetOrCreateAttempts = 3
	defaultMaxMessageLength    = 4000
)

// CorpusSource supplies the active FAQ corpus to the bot.
type CorpusSource interface {
	ActiveCorpus(ctx context.Context) ([]domain.FAQItem, error)
}

// ChatService orchestrates chat sessions and their messages.
type ChatService struct {
	repos      repository.Repositories
	tx         repository.TxManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	engine     *faqbot.Engine
	corpus     CorpusSource
	policy     *bluemonday.Policy
	cfg        config.ChatConfig
	now        Clock
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	Repos      repository.Repositories
	Tx         repository.TxManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Engine     *faqbot.Engine
	Corpus     CorpusSource
	Config     config.ChatConfig
	Clock      Clock
}

// AppendResult is the caller's view of one append: the stored message and,
// in bot sessions, the bot reply appended right after it.
type AppendResult struct {
	Message  *domain.Message
	BotReply *domain.Message
	Reply    *faqbot.Reply
}

// SessionAudit returns everything recorded for a session, deleted messages included.
type SessionAudit struct {
	Session  *domain.ChatSession
	Messages []domain.Message
	Edits    []domain.MessageEdit
}

// SessionListFilter narrows the caller's sessions.
type SessionListFilter struct {
	Type     *domain.ChatSessionType
	TicketID *string
	Statuses []domain.ChatSessionStatus
	Limit    int
	Offset   int
}

var sessionTransitions = map[domain.ChatSessionStatus][]domain.ChatSessionStatus{
	domain.SessionClosed:   {domain.SessionActive},
	domain.SessionArchived: {domain.SessionActive, domain.SessionClosed},
	domain.SessionDeleted:  {domain.SessionActive, domain.SessionClosed, domain.SessionArchived},
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	cfg := deps.Config
	if cfg.GetOrCreateAttempts <= 0 {
		cfg.GetOrCreateAttempts = defaultGetOrCreateAttempts
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = defaultMaxMessageLength
	}
	engine := deps.Engine
	if engine == nil {
		engine = faqbot.NewEngine()
	}
	return &ChatService{
		repos:      deps.Repos,
		tx:         deps.Tx,
		dispatcher: deps.Dispatcher,
		logger:     loggerOrNop(deps.Logger),
		metrics:    deps.Metrics,
		engine:     engine,
		corpus:     deps.Corpus,
		policy:     bluemonday.StrictPolicy(),
		cfg:        cfg,
		now:        clockOrDefault(deps.Clock),
	}
}

// GetOrCreate returns the non-deleted session for key, creating it when
// missing. Concurrent callers with the same key get the same session: the
// storage uniqueness constraint rejects the losers, which then re-read.
// Closed and archived sessions are reactivated.
func (s *ChatService) GetOrCreate(ctx context.Context, key domain.SessionKey) (session *domain.ChatSession, err error) {
	ctx, span := startSpan(ctx, "ChatService.GetOrCreate")
	defer func() { endSpan(span, err) }()

	if err := validateSessionKey(key); err != nil {
		return nil, err
	}
	for attempt := 0; attempt < s.cfg.GetOrCreateAttempts; attempt++ {
		existing, err := s.repos.Sessions.FindByKey(ctx, key)
		switch {
		case err == nil:
			return s.reactivate(ctx, existing)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.MapError(err)
		}

		session = &domain.ChatSession{
			UserID:       key.UserID,
			TechnicianID: key.TechnicianID,
			TicketID:     key.TicketID,
			Type:         key.Type,
			Status:       domain.SessionActive,
		}
		err = s.repos.Sessions.Create(ctx, session)
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.RecordSessionConflict()
			s.logger.Debug("chat session create lost race", zap.String("user_id", key.UserID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, apperrors.MapError(err)
		}

		s.logger.Info("chat session opened", zap.String("session_id", session.ID), zap.String("type", string(session.Type)))
		publishEvent(ctx, s.dispatcher, s.now, events.Event{
			Type:        events.EventChatSessionOpened,
			SessionID:   session.ID,
			TicketID:    deref(session.TicketID),
			Actor:       events.Actor{ID: key.UserID, Role: domain.RoleUser},
			RecipientID: session.TechnicianID,
			Payload:     events.SessionPayload{Type: session.Type, NewStatus: session.Status},
		})
		return session, nil
	}
	return nil, apperrors.NewConflict("chat session is being created concurrently, retry", map[string]any{"user_id": key.UserID})
}

func validateSessionKey(key domain.SessionKey) error {
	switch {
	case key.UserID == "":
		return apperrors.NewValidationError("session user is required", nil)
	case key.Type == domain.SessionUserTechnician && key.TechnicianID == nil:
		return apperrors.NewValidationError("technician sessions need a technician", nil)
	case key.Type == domain.SessionUserBot && key.TechnicianID != nil:
		return apperrors.NewValidationError("bot sessions cannot have a technician", nil)
	case key.Type != domain.SessionUserTechnician && key.Type != domain.SessionUserBot:
		return apperrors.NewValidationError("unknown session type", map[string]any{"type": key.Type})
	}
	return nil
}

func (s *ChatService) reactivate(ctx context.Context, session *domain.ChatSession) (*domain.ChatSession, error) {
	if session.Status == domain.SessionActive {
		return session, nil
	}
	old := session.Status
	if _, err := s.repos.Sessions.UpdateStatus(ctx, session.ID, []domain.ChatSessionStatus{domain.SessionClosed, domain.SessionArchived}, domain.SessionActive); err != nil {
		return nil, apperrors.MapError(err)
	}
	latest, err := s.repos.Sessions.GetByID(ctx, session.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if latest.Status != old {
		publishEvent(ctx, s.dispatcher, s.now, events.Event{
			Type:      events.EventChatSessionStatusChanged,
			SessionID: latest.ID,
			TicketID:  deref(latest.TicketID),
			Actor:     events.Actor{ID: latest.UserID, Role: domain.RoleUser},
			Payload:   events.SessionPayload{Type: latest.Type, OldStatus: old, NewStatus: latest.Status},
		})
	}
	return latest, nil
}

// OpenTechnicianSession opens (or reuses) the caller's thread with a technician,
// optionally scoped to one of the caller's tickets.
func (s *ChatService) OpenTechnicianSession(ctx context.Context, identity domain.Identity, technicianID string, ticketID *string) (*domain.ChatSession, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if technicianID == identity.ActorID {
		return nil, apperrors.NewValidationError("cannot open a chat with yourself", nil)
	}
	if _, err := s.repos.Technicians.GetByUserID(ctx, technicianID); err != nil {
		return nil, lookupError(err, "technician", technicianID)
	}
	if ticketID != nil {
		ticket, err := s.repos.Tickets.GetByID(ctx, *ticketID)
		if err != nil {
			return nil, lookupError(err, "ticket", *ticketID)
		}
		if ticket.OwnerID != identity.ActorID {
			return nil, apperrors.NewUnauthorized("not the owner of this ticket")
		}
	}
	return s.GetOrCreate(ctx, domain.SessionKey{
		UserID:       identity.ActorID,
		TechnicianID: strPtr(technicianID),
		TicketID:     ticketID,
		Type:         domain.SessionUserTechnician,
	})
}

// OpenBotSession opens (or reuses) the caller's thread with the FAQ bot.
func (s *ChatService) OpenBotSession(ctx context.Context, identity domain.Identity) (*domain.ChatSession, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	return s.GetOrCreate(ctx, domain.SessionKey{UserID: identity.ActorID, Type: domain.SessionUserBot})
}

// AppendMessage stores a message from the caller. In bot sessions the bot's
// answer is appended before returning.
func (s *ChatService) AppendMessage(ctx context.Context, identity domain.Identity, sessionID, content string) (result *AppendResult, err error) {
	ctx, span := startSpan(ctx, "ChatService.AppendMessage")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	clean, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}
	session, err := s.activeSessionFor(ctx, identity, sessionID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		SessionID: session.ID,
		SenderID:  strPtr(identity.ActorID),
		Content:   clean,
		CreatedAt: s.nextTimestamp(session.LastMessageAt),
	}
	switch {
	case session.Type == domain.SessionUserBot:
		msg.Type = domain.MessageUserToBot
	case session.UserID == identity.ActorID:
		msg.Type = domain.MessageUserToTechnician
		msg.ReceiverID = session.TechnicianID
	default:
		msg.Type = domain.MessageTechnicianToUser
		msg.ReceiverID = strPtr(session.UserID)
	}

	if err := s.store(ctx, msg); err != nil {
		return nil, err
	}
	s.metrics.RecordChatMessage(string(msg.Type))
	s.publishAppended(ctx, events.ActorFrom(identity), session, msg)
	result = &AppendResult{Message: msg}

	if session.Type != domain.SessionUserBot {
		return result, nil
	}

	reply := s.engine.Answer(clean, s.loadCorpus(ctx))
	botMsg := &domain.Message{
		SessionID:  session.ID,
		ReceiverID: strPtr(identity.ActorID),
		Content:    reply.Text,
		Type:       domain.MessageBotToUser,
		Payload:    reply.Payload(),
		CreatedAt:  s.nextTimestamp(&msg.CreatedAt),
	}
	if err := s.store(ctx, botMsg); err != nil {
		return nil, err
	}
	s.metrics.RecordChatMessage(string(botMsg.Type))
	s.metrics.RecordBotReply(string(reply.Kind))
	s.publishAppended(ctx, events.Actor{}, session, botMsg)

	result.BotReply = botMsg
	result.Reply = &reply
	return result, nil
}

// cleanContent strips markup and stores plain text. Sanitize escapes entities,
// so they are decoded again before the length check on the stored string.
func (s *ChatService) cleanContent(content string) (string, error) {
	clean := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(content)))
	if clean == "" {
		return "", apperrors.NewValidationError("message content is required", nil)
	}
	if utf8.RuneCountInString(clean) > s.cfg.MaxMessageLength {
		return "", apperrors.NewValidationError("message is too long", map[string]any{"max_length": s.cfg.MaxMessageLength})
	}
	return clean, nil
}

// nextTimestamp never goes behind the latest message so ordering by creation
// time stays non-decreasing even when clocks disagree.
func (s *ChatService) nextTimestamp(last *time.Time) time.Time {
	now := s.now()
	if last != nil && last.After(now) {
		return *last
	}
	return now
}

func (s *ChatService) store(ctx context.Context, msg *domain.Message) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Messages.Create(ctx, msg); err != nil {
			return err
		}
		return repos.Sessions.Touch(ctx, msg.SessionID, msg.CreatedAt)
	})
	return apperrors.MapError(err)
}

// loadCorpus degrades to an empty corpus, which yields the fallback reply.
func (s *ChatService) loadCorpus(ctx context.Context) []domain.FAQItem {
	if s.corpus == nil {
		return nil
	}
	items, err := s.corpus.ActiveCorpus(ctx)
	if err != nil {
		s.logger.Warn("faq corpus unavailable, answering with fallback", zap.Error(err))
		return nil
	}
	return items
}

func (s *ChatService) publishAppended(ctx context.Context, actor events.Actor, session *domain.ChatSession, msg *domain.Message) {
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:        events.EventChatMessageAppended,
		SessionID:   session.ID,
		TicketID:    deref(session.TicketID),
		Actor:       actor,
		RecipientID: msg.ReceiverID,
		Payload: events.MessageAppendedPayload{
			MessageID:   msg.ID,
			MessageType: msg.Type,
			Preview:     stringPreview(msg.Content, previewLength),
		},
	})
}

// ListMessages returns the active messages of a session ordered by creation time.
func (s *ChatService) ListMessages(ctx context.Context, identity domain.Identity, sessionID string) ([]domain.Message, error) {
	if _, err := s.sessionFor(ctx, identity, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.repos.Messages.ListBySession(ctx, sessionID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// Audit returns every message of a session, deleted ones included, plus the
// edit history. Participants and admins may read it.
func (s *ChatService) Audit(ctx context.Context, identity domain.Identity, sessionID string) (*SessionAudit, error) {
	session, err := s.sessionFor(ctx, identity, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repos.Messages.ListBySession(ctx, sessionID, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	edits, err := s.repos.MessageEdits.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &SessionAudit{Session: session, Messages: msgs, Edits: edits}, nil
}

// EditMessage replaces the content of the caller's own message and keeps the
// previous content in the edit history.
func (s *ChatService) EditMessage(ctx context.Context, identity domain.Identity, messageID, content string) (*domain.Message, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	clean, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}
	msg, err := s.ownMessage(ctx, identity, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.activeSessionFor(ctx, identity, msg.SessionID); err != nil {
		return nil, err
	}
	if clean == msg.Content {
		return msg, nil
	}

	editedAt := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		updated, err := repos.Messages.UpdateContent(ctx, messageID, clean, editedAt)
		if err != nil {
			return err
		}
		if !updated {
			return apperrors.NewInvalidTransition("deleted messages cannot be edited", map[string]any{"message_id": messageID})
		}
		return repos.MessageEdits.Create(ctx, &domain.MessageEdit{
			MessageID:   messageID,
			PrevContent: msg.Content,
			EditedAt:    editedAt,
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	msg.Content = clean
	msg.EditedAt = &editedAt
	return msg, nil
}

// DeleteMessage soft-deletes the caller's own message. Deleting twice is a no-op.
func (s *ChatService) DeleteMessage(ctx context.Context, identity domain.Identity, messageID string) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	msg, err := s.ownMessage(ctx, identity, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return nil
	}
	if _, err := s.repos.Messages.SoftDelete(ctx, messageID, s.now()); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("chat message deleted", zap.String("message_id", messageID), zap.String("session_id", msg.SessionID))
	return nil
}

func (s *ChatService) ownMessage(ctx context.Context, identity domain.Identity, messageID string) (*domain.Message, error) {
	msg, err := s.repos.Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, lookupError(err, "message", messageID)
	}
	if msg.SenderID == nil || *msg.SenderID != identity.ActorID {
		return nil, apperrors.NewUnauthorized("only the sender may change this message")
	}
	return msg, nil
}

// MarkRead marks every message addressed to the caller in a session as read.
func (s *ChatService) MarkRead(ctx context.Context, identity domain.Identity, sessionID string) (int64, error) {
	if _, err := s.sessionFor(ctx, identity, sessionID); err != nil {
		return 0, err
	}
	n, err := s.repos.Messages.MarkRead(ctx, sessionID, identity.ActorID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return n, nil
}

// UnreadCount counts unread messages addressed to the caller, in one session
// or across all of them.
func (s *ChatService) UnreadCount(ctx context.Context, identity domain.Identity, sessionID *string) (int, error) {
	if err := requireIdentity(identity); err != nil {
		return 0, err
	}
	if sessionID != nil {
		if _, err := s.sessionFor(ctx, identity, *sessionID); err != nil {
			return 0, err
		}
	}
	n, err := s.repos.Messages.CountUnread(ctx, identity.ActorID, sessionID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return n, nil
}

// ListSessions returns the caller's sessions, most recently active first.
func (s *ChatService) ListSessions(ctx context.Context, identity domain.Identity, filter SessionListFilter) ([]domain.ChatSession, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []domain.ChatSessionStatus{domain.SessionActive, domain.SessionClosed, domain.SessionArchived}
	}
	sessions, err := s.repos.Sessions.List(ctx, repository.SessionFilter{
		ParticipantID: &identity.ActorID,
		Type:          filter.Type,
		TicketID:      filter.TicketID,
		Statuses:      statuses,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return sessions, nil
}

// GetSession returns one of the caller's sessions.
func (s *ChatService) GetSession(ctx context.Context, identity domain.Identity, sessionID string) (*domain.ChatSession, error) {
	return s.sessionFor(ctx, identity, sessionID)
}

// CloseSession moves an active session to closed.
func (s *ChatService) CloseSession(ctx context.Context, identity domain.Identity, sessionID string) (*domain.ChatSession, error) {
	return s.changeStatus(ctx, identity, sessionID, domain.SessionClosed)
}

// ArchiveSession moves an active or closed session to archived.
func (s *ChatService) ArchiveSession(ctx context.Context, identity domain.Identity, sessionID string) (*domain.ChatSession, error) {
	return s.changeStatus(ctx, identity, sessionID, domain.SessionArchived)
}

// DeleteSession soft-deletes a session and its messages.
func (s *ChatService) DeleteSession(ctx context.Context, identity domain.Identity, sessionID string) (*domain.ChatSession, error) {
	return s.changeStatus(ctx, identity, sessionID, domain.SessionDeleted)
}

func (s *ChatService) changeStatus(ctx context.Context, identity domain.Identity, sessionID string, target domain.ChatSessionStatus) (*domain.ChatSession, error) {
	session, err := s.sessionFor(ctx, identity, sessionID)
	if err != nil {
		return nil, err
	}
	from := sessionTransitions[target]
	old := session.Status

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ok, err := repos.Sessions.UpdateStatus(ctx, sessionID, from, target)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewInvalidTransition("session cannot move to the requested status", map[string]any{
				"from": old,
				"to":   target,
			})
		}
		if target == domain.SessionDeleted {
			if _, err := repos.Messages.SoftDeleteBySession(ctx, sessionID, s.now()); err != nil {
				return err
			}
		}
		session, err = repos.Sessions.GetByID(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("chat session status changed",
		zap.String("session_id", sessionID),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(target)))
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:        events.EventChatSessionStatusChanged,
		SessionID:   sessionID,
		TicketID:    deref(session.TicketID),
		Actor:       events.ActorFrom(identity),
		RecipientID: sessionCounterpart(session, identity.ActorID),
		Payload:     events.SessionPayload{Type: session.Type, OldStatus: old, NewStatus: target},
	})
	return session, nil
}

// ArchiveIdle archives active sessions without activity since idleFor ago.
func (s *ChatService) ArchiveIdle(ctx context.Context, idleFor time.Duration, batch int) (int, error) {
	if idleFor <= 0 {
		return 0, nil
	}
	idle, err := s.repos.Sessions.ListIdle(ctx, s.now().Add(-idleFor), batch)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, session := range idle {
		ok, err := s.repos.Sessions.UpdateStatus(ctx, session.ID, []domain.ChatSessionStatus{domain.SessionActive}, domain.SessionArchived)
		if err != nil {
			return archived, err
		}
		if !ok {
			continue
		}
		archived++
		publishEvent(ctx, s.dispatcher, s.now, events.Event{
			Type:      events.EventChatSessionStatusChanged,
			SessionID: session.ID,
			TicketID:  deref(session.TicketID),
			Payload:   events.SessionPayload{Type: session.Type, OldStatus: domain.SessionActive, NewStatus: domain.SessionArchived},
		})
	}
	return archived, nil
}

// sessionFor loads a session the caller takes part in. Admins may read any
// session. Deleted sessions are hidden from everyone but admins.
func (s *ChatService) sessionFor(ctx context.Context, identity domain.Identity, sessionID string) (*domain.ChatSession, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	session, err := s.repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, lookupError(err, "chat session", sessionID)
	}
	if identity.IsAdmin() {
		return session, nil
	}
	if !session.HasParticipant(identity.ActorID) {
		return nil, apperrors.NewUnauthorized("not a participant of this session")
	}
	if session.Status == domain.SessionDeleted {
		return nil, apperrors.NewNotFound("chat session", map[string]any{"id": sessionID})
	}
	return session, nil
}

func (s *ChatService) activeSessionFor(ctx context.Context, identity domain.Identity, sessionID string) (*domain.ChatSession, error) {
	session, err := s.sessionFor(ctx, identity, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(identity.ActorID) {
		return nil, apperrors.NewUnauthorized("not a participant of this session")
	}
	if session.Status != domain.SessionActive {
		return nil, apperrors.NewInvalidTransition("session is not active", map[string]any{"status": session.Status})
	}
	return session, nil
}

func sessionCounterpart(session *domain.ChatSession, actorID string) *string {
	if session.UserID == actorID {
		return session.TechnicianID
	}
	return strPtr(session.UserID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
