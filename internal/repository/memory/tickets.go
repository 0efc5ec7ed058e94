package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	ticket.ID = newID()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

// GetForUpdate needs no row lock here: WithinTx already serialises writers.
func (r *ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.TechnicianID != nil && !t.BoundTo(*filter.TechnicianID) {
			continue
		}
		if filter.ParticipantID != nil && t.OwnerID != *filter.ParticipantID && !t.BoundTo(*filter.ParticipantID) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Categories) > 0 && !slices.Contains(filter.Categories, t.Category) {
			continue
		}
		if len(filter.Priorities) > 0 && !slices.Contains(filter.Priorities, t.Priority) {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			if term != "" && !strings.Contains(strings.ToLower(t.Title), term) && !strings.Contains(strings.ToLower(t.Description), term) {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *ticketRepo) UpdateStatus(_ context.Context, id string, from []domain.TicketStatus, to domain.TicketStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok || !slices.Contains(from, t.Status) {
		return false, nil
	}
	now := r.s.now()
	t.Status = to
	switch to {
	case domain.TicketStatusResolved:
		t.ResolvedAt = &now
	case domain.TicketStatusOpen:
		t.ResolvedAt = nil
	}
	t.UpdatedAt = now
	r.s.tickets[id] = t
	return true, nil
}

func (r *ticketRepo) Reopen(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok || t.Status != domain.TicketStatusResolved {
		return false, nil
	}
	if _, reviewed := r.s.reviews[id]; reviewed {
		return false, nil
	}
	t.Status = domain.TicketStatusOpen
	t.ResolvedAt = nil
	t.UpdatedAt = r.s.now()
	r.s.tickets[id] = t
	return true, nil
}

func (r *ticketRepo) BindTechnician(_ context.Context, id, technicianID string, from []domain.TicketStatus, to domain.TicketStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok || !slices.Contains(from, t.Status) {
		return false, nil
	}
	if t.TechnicianID != nil && *t.TechnicianID != technicianID {
		return false, nil
	}
	tech := technicianID
	t.TechnicianID = &tech
	t.Status = to
	t.UpdatedAt = r.s.now()
	r.s.tickets[id] = t
	return true, nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = newID()
	h.CreatedAt = r.s.now()
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID string, types []domain.TicketChangeType) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.s.history {
		if h.TicketID == ticketID && (len(types) == 0 || slices.Contains(types, h.ChangeType)) {
			out = append(out, h)
		}
	}
	return out, nil
}

type reviewRepo struct{ s *Store }

func (r *reviewRepo) Create(_ context.Context, review *domain.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.reviews[review.TicketID]; exists {
		return fmt.Errorf("%w: reviews_ticket_id_key", repository.ErrConflict)
	}
	review.ID = newID()
	review.CreatedAt = r.s.now()
	r.s.reviews[review.TicketID] = *review
	return nil
}

func (r *reviewRepo) GetByTicket(_ context.Context, ticketID string) (*domain.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	review, ok := r.s.reviews[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &review, nil
}

func (r *reviewRepo) ListByTechnician(_ context.Context, technicianID string, limit, offset int) ([]domain.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Review
	for _, review := range r.s.reviews {
		if review.TechnicianID == technicianID {
			out = append(out, review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

type assistanceRepo struct{ s *Store }

func isLive(status domain.AssistanceRequestStatus) bool {
	return status == domain.AssistancePending || status == domain.AssistanceAccepted
}

func (r *assistanceRepo) Create(_ context.Context, req *domain.AssistanceRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if isLive(req.Status) {
		for _, other := range r.s.requests {
			if other.TicketID == req.TicketID && other.TechnicianID == req.TechnicianID && isLive(other.Status) {
				return fmt.Errorf("%w: uq_assistance_active", repository.ErrConflict)
			}
		}
	}
	now := r.s.now()
	req.ID = newID()
	req.CreatedAt = now
	req.UpdatedAt = now
	r.s.requests[req.ID] = *req
	return nil
}

func (r *assistanceRepo) GetByID(_ context.Context, id string) (*domain.AssistanceRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r *assistanceRepo) List(_ context.Context, filter repository.AssistanceFilter) ([]domain.AssistanceRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AssistanceRequest
	for _, req := range r.s.requests {
		if filter.UserID != nil && req.UserID != *filter.UserID {
			continue
		}
		if filter.TechnicianID != nil && req.TechnicianID != *filter.TechnicianID {
			continue
		}
		if filter.TicketID != nil && req.TicketID != *filter.TicketID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, req.Status) {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *assistanceRepo) UpdateStatus(_ context.Context, id string, from, to domain.AssistanceRequestStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	if to == domain.AssistanceAccepted {
		for otherID, other := range r.s.requests {
			if otherID != id && other.TicketID == req.TicketID && other.Status == domain.AssistanceAccepted {
				return false, fmt.Errorf("%w: uq_assistance_accepted", repository.ErrConflict)
			}
		}
	}
	req.Status = to
	req.UpdatedAt = r.s.now()
	r.s.requests[id] = req
	return true, nil
}

func (r *assistanceRepo) RejectPendingSiblings(_ context.Context, ticketID, exceptID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, req := range r.s.requests {
		if id != exceptID && req.TicketID == ticketID && req.Status == domain.AssistancePending {
			req.Status = domain.AssistanceRejected
			req.UpdatedAt = r.s.now()
			r.s.requests[id] = req
			n++
		}
	}
	return n, nil
}

func (r *assistanceRepo) CompleteAccepted(_ context.Context, ticketID, technicianID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, req := range r.s.requests {
		if req.TicketID == ticketID && req.TechnicianID == technicianID && req.Status == domain.AssistanceAccepted {
			req.Status = domain.AssistanceCompleted
			req.UpdatedAt = r.s.now()
			r.s.requests[id] = req
			n++
		}
	}
	return n, nil
}
