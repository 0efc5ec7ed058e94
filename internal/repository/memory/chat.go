package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type sessionRepo struct{ s *Store }

func sameKey(session domain.ChatSession, key domain.SessionKey) bool {
	return session.UserID == key.UserID &&
		ptrEqual(session.TechnicianID, key.TechnicianID) &&
		ptrEqual(session.TicketID, key.TicketID) &&
		session.Type == key.Type
}

func keyOf(session domain.ChatSession) domain.SessionKey {
	return domain.SessionKey{
		UserID:       session.UserID,
		TechnicianID: session.TechnicianID,
		TicketID:     session.TicketID,
		Type:         session.Type,
	}
}

func (r *sessionRepo) Create(_ context.Context, session *domain.ChatSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if session.Status != domain.SessionDeleted {
		key := keyOf(*session)
		for _, other := range r.s.sessions {
			if other.Status != domain.SessionDeleted && sameKey(other, key) {
				return fmt.Errorf("%w: uq_chat_sessions_key", repository.ErrConflict)
			}
		}
	}
	now := r.s.now()
	session.ID = newID()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *sessionRepo) GetByID(_ context.Context, id string) (*domain.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r *sessionRepo) FindByKey(_ context.Context, key domain.SessionKey) (*domain.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.Status != domain.SessionDeleted && sameKey(session, key) {
			return &session, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *sessionRepo) List(_ context.Context, filter repository.SessionFilter) ([]domain.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ChatSession
	for _, session := range r.s.sessions {
		if filter.ParticipantID != nil && !session.HasParticipant(*filter.ParticipantID) {
			continue
		}
		if filter.Type != nil && session.Type != *filter.Type {
			continue
		}
		if filter.TicketID != nil && (session.TicketID == nil || *session.TicketID != *filter.TicketID) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, session.Status) {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := activity(out[i]), activity(out[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *sessionRepo) UpdateStatus(_ context.Context, id string, from []domain.ChatSessionStatus, to domain.ChatSessionStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || !slices.Contains(from, session.Status) {
		return false, nil
	}
	session.Status = to
	session.UpdatedAt = r.s.now()
	r.s.sessions[id] = session
	return true, nil
}

func (r *sessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if session.LastMessageAt == nil || at.After(*session.LastMessageAt) {
		ts := at
		session.LastMessageAt = &ts
	}
	session.UpdatedAt = r.s.now()
	r.s.sessions[id] = session
	return nil
}

func (r *sessionRepo) ListIdle(_ context.Context, before time.Time, limit int) ([]domain.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ChatSession
	for _, session := range r.s.sessions {
		if session.Status == domain.SessionActive && activity(session).Before(before) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return activity(out[i]).Before(activity(out[j])) })
	return page(out, limit, 0), nil
}

func activity(session domain.ChatSession) time.Time {
	if session.LastMessageAt != nil {
		return *session.LastMessageAt
	}
	return session.CreatedAt
}

type messageRepo struct{ s *Store }

func (r *messageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg.ID = newID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.s.now()
	}
	r.s.messages = append(r.s.messages, *msg)
	return nil
}

func (r *messageRepo) find(id string) int {
	return slices.IndexFunc(r.s.messages, func(m domain.Message) bool { return m.ID == id })
}

func (r *messageRepo) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.find(id)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	msg := r.s.messages[i]
	return &msg, nil
}

func (r *messageRepo) ListBySession(_ context.Context, sessionID string, includeDeleted bool) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Message
	for _, msg := range r.s.messages {
		if msg.SessionID != sessionID || (msg.IsDeleted && !includeDeleted) {
			continue
		}
		out = append(out, msg)
	}
	// Insertion order stands in for the sequence column.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *messageRepo) UpdateContent(_ context.Context, id, content string, editedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.find(id)
	if i < 0 || r.s.messages[i].IsDeleted {
		return false, nil
	}
	ts := editedAt
	r.s.messages[i].Content = content
	r.s.messages[i].EditedAt = &ts
	return true, nil
}

func (r *messageRepo) SoftDelete(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.find(id)
	if i < 0 || r.s.messages[i].IsDeleted {
		return false, nil
	}
	ts := at
	r.s.messages[i].IsDeleted = true
	r.s.messages[i].DeletedAt = &ts
	return true, nil
}

func (r *messageRepo) SoftDeleteBySession(_ context.Context, sessionID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.messages {
		if r.s.messages[i].SessionID == sessionID && !r.s.messages[i].IsDeleted {
			ts := at
			r.s.messages[i].IsDeleted = true
			r.s.messages[i].DeletedAt = &ts
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) MarkRead(_ context.Context, sessionID, receiverID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i, msg := range r.s.messages {
		if msg.SessionID == sessionID && msg.ReceiverID != nil && *msg.ReceiverID == receiverID && !msg.IsRead && !msg.IsDeleted {
			r.s.messages[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) CountUnread(_ context.Context, receiverID string, sessionID *string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, msg := range r.s.messages {
		if msg.IsRead || msg.IsDeleted || msg.ReceiverID == nil || *msg.ReceiverID != receiverID {
			continue
		}
		if sessionID != nil && msg.SessionID != *sessionID {
			continue
		}
		if session, ok := r.s.sessions[msg.SessionID]; ok && session.Status == domain.SessionDeleted {
			continue
		}
		n++
	}
	return n, nil
}

type editRepo struct{ s *Store }

func (r *editRepo) Create(_ context.Context, edit *domain.MessageEdit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	edit.ID = newID()
	if edit.EditedAt.IsZero() {
		edit.EditedAt = r.s.now()
	}
	r.s.edits = append(r.s.edits, *edit)
	return nil
}

func (r *editRepo) ListBySession(_ context.Context, sessionID string) ([]domain.MessageEdit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inSession := make(map[string]struct{})
	for _, msg := range r.s.messages {
		if msg.SessionID == sessionID {
			inSession[msg.ID] = struct{}{}
		}
	}
	var out []domain.MessageEdit
	for _, edit := range r.s.edits {
		if _, ok := inSession[edit.MessageID]; ok {
			out = append(out, edit)
		}
	}
	return out, nil
}
