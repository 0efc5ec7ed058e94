package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketService owns ticket status transitions and reviews.
type TicketService struct {
	repos      repository.Repositories
	tx         repository.TxManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Repos      repository.Repositories
	Tx         repository.TxManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      Clock
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
}

// TicketListFilter narrows the caller's ticket list.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Categories []domain.TicketCategory
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// ReviewInput carries the owner's rating.
type ReviewInput struct {
	Rating  int
	Comment string
}

type transitionRule struct {
	from    []domain.TicketStatus
	byOwner bool
}

// Assigned is reached only by accepting an assistance request.
var transitionRules = map[domain.TicketStatus]transitionRule{
	domain.TicketStatusCancelled: {
		from:    []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusAssigned, domain.TicketStatusInProgress},
		byOwner: true,
	},
	domain.TicketStatusInProgress: {
		from: []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusAssigned},
	},
	domain.TicketStatusResolved: {
		from: []domain.TicketStatus{domain.TicketStatusAssigned, domain.TicketStatusInProgress},
	},
	domain.TicketStatusOpen: {
		from: []domain.TicketStatus{domain.TicketStatusResolved},
	},
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		repos:      deps.Repos,
		tx:         deps.Tx,
		dispatcher: deps.Dispatcher,
		logger:     loggerOrNop(deps.Logger),
		metrics:    deps.Metrics,
		now:        clockOrDefault(deps.Clock),
	}
}

// CreateTicket files a ticket owned by the caller.
func (s *TicketService) CreateTicket(ctx context.Context, identity domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	ticket, err := newTicket(identity.ActorID, input)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishCreated(ctx, identity, ticket)
	return ticket, nil
}

func newTicket(ownerID string, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      domain.TicketStatusOpen,
	}
	if ticket.Category == "" {
		ticket.Category = domain.TicketCategoryOther
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	details := map[string]any{}
	if ticket.Title == "" {
		details["title"] = "required"
	}
	if !ticket.Category.Valid() {
		details["category"] = "unknown category"
	}
	if !ticket.Priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}
	return ticket, nil
}

func (s *TicketService) publishCreated(ctx context.Context, identity domain.Identity, ticket *domain.Ticket) {
	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("owner_id", ticket.OwnerID))
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(identity),
		Payload: events.TicketCreatedPayload{
			Category: ticket.Category,
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})
}

// GetTicket returns a ticket visible to the caller.
func (s *TicketService) GetTicket(ctx context.Context, identity domain.Identity, ticketID string) (*domain.Ticket, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", ticketID)
	}
	if !canViewTicket(identity, ticket) {
		return nil, apperrors.NewUnauthorized("not a participant of this ticket")
	}
	return ticket, nil
}

func canViewTicket(identity domain.Identity, ticket *domain.Ticket) bool {
	return identity.IsAdmin() || ticket.OwnerID == identity.ActorID || ticket.BoundTo(identity.ActorID)
}

// ListTickets returns tickets the caller owns or is bound to. Admins see all.
func (s *TicketService) ListTickets(ctx context.Context, identity domain.Identity, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Categories: filter.Categories,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !identity.IsAdmin() {
		repoFilter.ParticipantID = &identity.ActorID
	}
	tickets, err := s.repos.Tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Transition moves a ticket to target. The owner may cancel; the bound
// technician may start, resolve and reopen. Reopening fails once the ticket
// carries a review.
func (s *TicketService) Transition(ctx context.Context, identity domain.Identity, ticketID string, target domain.TicketStatus) (ticket *domain.Ticket, err error) {
	ctx, span := startSpan(ctx, "TicketService.Transition")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": target})
	}
	rule, ok := transitionRules[target]
	if !ok {
		return nil, apperrors.NewInvalidTransition("tickets are assigned by accepting an assistance request", map[string]any{"status": target})
	}

	current, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", ticketID)
	}
	if rule.byOwner && current.OwnerID != identity.ActorID {
		return nil, apperrors.NewUnauthorized("only the ticket owner may cancel it")
	}
	if !rule.byOwner && !current.BoundTo(identity.ActorID) {
		return nil, apperrors.NewUnauthorized("only the assigned technician may change this ticket")
	}
	if !slices.Contains(rule.from, current.Status) {
		return nil, invalidTicketTransition(current.Status, target)
	}

	oldStatus := current.Status
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var applied bool
		var err error
		if target == domain.TicketStatusOpen {
			if _, err := repos.Tickets.GetForUpdate(ctx, ticketID); err != nil {
				return lookupError(err, "ticket", ticketID)
			}
			applied, err = repos.Tickets.Reopen(ctx, ticketID)
		} else {
			applied, err = repos.Tickets.UpdateStatus(ctx, ticketID, rule.from, target)
		}
		if err != nil {
			return err
		}
		if !applied {
			return s.explainRejected(ctx, repos, ticketID, target)
		}
		if err := recordStatusChange(ctx, repos, identity.ActorID, ticketID, oldStatus, target); err != nil {
			return err
		}
		if target == domain.TicketStatusResolved {
			if err := repos.Technicians.IncrementCompleted(ctx, identity.ActorID); err != nil {
				return err
			}
			if _, err := repos.Assistance.CompleteAccepted(ctx, ticketID, identity.ActorID); err != nil {
				return err
			}
		}
		ticket, err = repos.Tickets.GetByID(ctx, ticketID)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordTicketTransition(string(oldStatus), string(target))
	s.logger.Info("ticket status changed",
		zap.String("ticket_id", ticketID),
		zap.String("actor_id", identity.ActorID),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(target)))
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:        events.EventTicketStatusChanged,
		TicketID:    ticketID,
		Actor:       events.ActorFrom(identity),
		RecipientID: counterpart(ticket, identity.ActorID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: target,
		},
	})
	return ticket, nil
}

// explainRejected re-reads a ticket whose conditional update matched no row.
func (s *TicketService) explainRejected(ctx context.Context, repos repository.Repositories, ticketID string, target domain.TicketStatus) error {
	latest, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return lookupError(err, "ticket", ticketID)
	}
	if target == domain.TicketStatusOpen && latest.Status == domain.TicketStatusResolved {
		return apperrors.NewInvalidTransition("a reviewed ticket cannot be reopened", map[string]any{"ticket_id": ticketID})
	}
	return invalidTicketTransition(latest.Status, target)
}

func invalidTicketTransition(from, to domain.TicketStatus) error {
	return apperrors.NewInvalidTransition("ticket cannot move to the requested status", map[string]any{
		"from": from,
		"to":   to,
	})
}

// counterpart returns the other party of a ticket relative to actorID.
func counterpart(ticket *domain.Ticket, actorID string) *string {
	if ticket == nil {
		return nil
	}
	if ticket.OwnerID == actorID {
		return ticket.TechnicianID
	}
	return strPtr(ticket.OwnerID)
}

// SubmitReview lets the owner rate a resolved ticket once.
func (s *TicketService) SubmitReview(ctx context.Context, identity domain.Identity, ticketID string, input ReviewInput) (*domain.Review, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": input.Rating})
	}
	var ticket *domain.Ticket
	review := &domain.Review{
		TicketID: ticketID,
		UserID:   identity.ActorID,
		Rating:   input.Rating,
		Comment:  strings.TrimSpace(input.Comment),
	}
	// The status check runs under the ticket row lock so a concurrent reopen
	// cannot slip between it and the insert.
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ticket, err = repos.Tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return lookupError(err, "ticket", ticketID)
		}
		if ticket.OwnerID != identity.ActorID {
			return apperrors.NewUnauthorized("only the ticket owner may review it")
		}
		if ticket.Status != domain.TicketStatusResolved || ticket.TechnicianID == nil {
			return apperrors.NewInvalidTransition("only resolved tickets can be reviewed", map[string]any{"status": ticket.Status})
		}
		review.TechnicianID = *ticket.TechnicianID

		if err := repos.Reviews.Create(ctx, review); err != nil {
			return err
		}
		if err := repos.Technicians.RecordRating(ctx, review.TechnicianID, review.Rating); err != nil {
			return err
		}
		return repos.History.Create(ctx, &domain.TicketHistory{
			TicketID:    ticketID,
			ChangedByID: strPtr(identity.ActorID),
			ChangeType:  domain.ChangeTypeReview,
			NewValue:    map[string]any{"rating": review.Rating},
		})
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperrors.NewAlreadyHandled("ticket already reviewed", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:        events.EventTicketReviewed,
		TicketID:    ticketID,
		Actor:       events.ActorFrom(identity),
		RecipientID: ticket.TechnicianID,
		Payload:     events.TicketReviewedPayload{ReviewID: review.ID, Rating: review.Rating},
	})
	return review, nil
}

// History returns the audit trail of a ticket visible to the caller,
// optionally narrowed to some change types.
func (s *TicketService) History(ctx context.Context, identity domain.Identity, ticketID string, types ...domain.TicketChangeType) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, identity, ticketID); err != nil {
		return nil, err
	}
	history, err := s.repos.History.ListByTicket(ctx, ticketID, types)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

func recordStatusChange(ctx context.Context, repos repository.Repositories, actorID, ticketID string, oldStatus, newStatus domain.TicketStatus) error {
	return repos.History.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: strPtr(actorID),
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": oldStatus},
		NewValue:    map[string]any{"status": newStatus},
	})
}

func recordTechnicianChange(ctx context.Context, repos repository.Repositories, actorID, ticketID string, oldTechnician *string, newTechnician string) error {
	old := map[string]any{"technician_id": nil}
	if oldTechnician != nil {
		old["technician_id"] = *oldTechnician
	}
	return repos.History.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: strPtr(actorID),
		ChangeType:  domain.ChangeTypeTechnician,
		OldValue:    old,
		NewValue:    map[string]any{"technician_id": newTechnician},
	})
}
