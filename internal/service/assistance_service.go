package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AssistanceService matches tickets to technicians through assistance requests.
type AssistanceService struct {
	repos      repository.Repositories
	tx         repository.TxManager
	chat       *ChatService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        Clock
}

// AssistanceDependencies bundles collaborators for the assistance service.
type AssistanceDependencies struct {
	Repos      repository.Repositories
	Tx         repository.TxManager
	Chat       *ChatService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      Clock
}

// AssistanceInput asks a technician for help, either on an existing ticket or
// on a new one described by Title, Description, Category and Priority.
type AssistanceInput struct {
	TechnicianID string
	TicketID     *string
	Title        string
	Description  string
	Category     domain.TicketCategory
	Priority     domain.TicketPriority
}

// AssistanceListFilter narrows the caller's requests. Incoming lists requests
// addressed to the caller as technician; otherwise the caller's own requests.
type AssistanceListFilter struct {
	Incoming bool
	TicketID *string
	Statuses []domain.AssistanceRequestStatus
	Limit    int
	Offset   int
}

// AcceptResult reports everything an acceptance changed.
type AcceptResult struct {
	Request          *domain.AssistanceRequest
	Ticket           *domain.Ticket
	Session          *domain.ChatSession
	RejectedSiblings int64
}

// NewAssistanceService constructs the service.
func NewAssistanceService(deps AssistanceDependencies) *AssistanceService {
	return &AssistanceService{
		repos:      deps.Repos,
		tx:         deps.Tx,
		chat:       deps.Chat,
		dispatcher: deps.Dispatcher,
		logger:     loggerOrNop(deps.Logger),
		metrics:    deps.Metrics,
		now:        clockOrDefault(deps.Clock),
	}
}

// Request creates a pending request, and the ticket too when none is given.
func (s *AssistanceService) Request(ctx context.Context, identity domain.Identity, input AssistanceInput) (*domain.AssistanceRequest, *domain.Ticket, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, nil, err
	}
	if input.TechnicianID == "" {
		return nil, nil, apperrors.NewValidationError("technician is required", map[string]any{"technician_id": "required"})
	}
	if input.TechnicianID == identity.ActorID {
		return nil, nil, apperrors.NewValidationError("cannot request assistance from yourself", nil)
	}
	tech, err := s.repos.Technicians.GetByUserID(ctx, input.TechnicianID)
	if err != nil {
		return nil, nil, lookupError(err, "technician", input.TechnicianID)
	}
	if !tech.IsAvailable {
		return nil, nil, apperrors.NewValidationError("technician is not available", map[string]any{"technician_id": input.TechnicianID})
	}

	var ticket *domain.Ticket
	created := false
	if input.TicketID != nil {
		ticket, err = s.repos.Tickets.GetByID(ctx, *input.TicketID)
		if err != nil {
			return nil, nil, lookupError(err, "ticket", *input.TicketID)
		}
		if ticket.OwnerID != identity.ActorID {
			return nil, nil, apperrors.NewUnauthorized("only the ticket owner may request assistance")
		}
		if ticket.Status != domain.TicketStatusOpen {
			return nil, nil, apperrors.NewInvalidTransition("assistance can only be requested for open tickets", map[string]any{"status": ticket.Status})
		}
	} else {
		ticket, err = newTicket(identity.ActorID, TicketCreateInput{
			Title:       input.Title,
			Description: input.Description,
			Category:    input.Category,
			Priority:    input.Priority,
		})
		if err != nil {
			return nil, nil, err
		}
		created = true
	}

	req := &domain.AssistanceRequest{
		UserID:       identity.ActorID,
		TechnicianID: input.TechnicianID,
		Title:        ticket.Title,
		Description:  firstNonEmpty(strings.TrimSpace(input.Description), ticket.Description),
		Priority:     ticket.Priority,
		Status:       domain.AssistancePending,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if created {
			if err := repos.Tickets.Create(ctx, ticket); err != nil {
				return err
			}
		}
		req.TicketID = ticket.ID
		return repos.Assistance.Create(ctx, req)
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, nil, apperrors.NewAlreadyHandled("an active request for this technician already exists", map[string]any{
			"ticket_id":     ticket.ID,
			"technician_id": input.TechnicianID,
		})
	}
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.metrics.RecordAssistance(string(domain.AssistancePending))
	s.logger.Info("assistance requested",
		zap.String("request_id", req.ID),
		zap.String("ticket_id", ticket.ID),
		zap.String("technician_id", req.TechnicianID))
	if created {
		publishEvent(ctx, s.dispatcher, s.now, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Actor:    events.ActorFrom(identity),
			Payload:  events.TicketCreatedPayload{Category: ticket.Category, Priority: ticket.Priority, Title: ticket.Title},
		})
	}
	s.publish(ctx, events.EventAssistanceRequested, identity, req, strPtr(req.TechnicianID), "", 0)
	return req, ticket, nil
}

// Accept binds the ticket to the addressed technician. In one transaction the
// request flips to accepted, the ticket becomes assigned and every other
// pending request on the ticket is rejected. The chat session between the
// two parties is opened afterwards.
func (s *AssistanceService) Accept(ctx context.Context, identity domain.Identity, requestID string) (result *AcceptResult, err error) {
	ctx, span := startSpan(ctx, "AssistanceService.Accept")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	req, err := s.repos.Assistance.GetByID(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, "assistance request", requestID)
	}
	if req.TechnicianID != identity.ActorID {
		return nil, apperrors.NewUnauthorized("only the addressed technician may accept this request")
	}
	if req.Status != domain.AssistancePending {
		return nil, alreadyHandled(req)
	}

	result = &AcceptResult{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ok, err := repos.Assistance.UpdateStatus(ctx, requestID, domain.AssistancePending, domain.AssistanceAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return alreadyHandled(req)
		}
		before, err := repos.Tickets.GetByID(ctx, req.TicketID)
		if err != nil {
			return err
		}
		bound, err := repos.Tickets.BindTechnician(ctx, req.TicketID, req.TechnicianID,
			[]domain.TicketStatus{domain.TicketStatusOpen}, domain.TicketStatusAssigned)
		if err != nil {
			return err
		}
		if !bound {
			return apperrors.NewAlreadyHandled("ticket is no longer open for assignment", map[string]any{
				"ticket_id": req.TicketID,
				"status":    before.Status,
			})
		}
		if err := recordTechnicianChange(ctx, repos, identity.ActorID, req.TicketID, before.TechnicianID, req.TechnicianID); err != nil {
			return err
		}
		if err := recordStatusChange(ctx, repos, identity.ActorID, req.TicketID, before.Status, domain.TicketStatusAssigned); err != nil {
			return err
		}
		if result.RejectedSiblings, err = repos.Assistance.RejectPendingSiblings(ctx, req.TicketID, requestID); err != nil {
			return err
		}
		if result.Request, err = repos.Assistance.GetByID(ctx, requestID); err != nil {
			return err
		}
		result.Ticket, err = repos.Tickets.GetByID(ctx, req.TicketID)
		return err
	})
	// The partial unique index on accepted requests turns a racing accept on
	// a sibling into a conflict.
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperrors.NewAlreadyHandled("ticket already has an accepted request", map[string]any{"ticket_id": req.TicketID})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordAssistance(string(domain.AssistanceAccepted))
	s.metrics.RecordTicketTransition(string(domain.TicketStatusOpen), string(domain.TicketStatusAssigned))
	s.logger.Info("assistance accepted",
		zap.String("request_id", requestID),
		zap.String("ticket_id", req.TicketID),
		zap.String("technician_id", req.TechnicianID),
		zap.Int64("rejected_siblings", result.RejectedSiblings))

	if s.chat != nil {
		ticketID := req.TicketID
		session, err := s.chat.GetOrCreate(ctx, domain.SessionKey{
			UserID:       req.UserID,
			TechnicianID: strPtr(req.TechnicianID),
			TicketID:     &ticketID,
			Type:         domain.SessionUserTechnician,
		})
		if err != nil {
			// The binding is committed; the session is created again on first use.
			s.logger.Warn("chat session for accepted request not opened", zap.String("request_id", requestID), zap.Error(err))
		} else {
			result.Session = session
		}
	}

	sessionID := ""
	if result.Session != nil {
		sessionID = result.Session.ID
	}
	s.publish(ctx, events.EventAssistanceAccepted, identity, result.Request, strPtr(req.UserID), sessionID, result.RejectedSiblings)
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:        events.EventTicketStatusChanged,
		TicketID:    req.TicketID,
		Actor:       events.ActorFrom(identity),
		RecipientID: strPtr(result.Ticket.OwnerID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusAssigned,
		},
	})
	return result, nil
}

// Reject declines a pending request addressed to the caller.
func (s *AssistanceService) Reject(ctx context.Context, identity domain.Identity, requestID string) (*domain.AssistanceRequest, error) {
	return s.close(ctx, identity, requestID, domain.AssistanceRejected, events.EventAssistanceRejected)
}

// Cancel withdraws a pending request the caller sent.
func (s *AssistanceService) Cancel(ctx context.Context, identity domain.Identity, requestID string) (*domain.AssistanceRequest, error) {
	return s.close(ctx, identity, requestID, domain.AssistanceCancelled, events.EventAssistanceCancelled)
}

func (s *AssistanceService) close(ctx context.Context, identity domain.Identity, requestID string, target domain.AssistanceRequestStatus, eventType events.EventType) (*domain.AssistanceRequest, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	req, err := s.repos.Assistance.GetByID(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, "assistance request", requestID)
	}

	var recipient string
	switch target {
	case domain.AssistanceRejected:
		if req.TechnicianID != identity.ActorID {
			return nil, apperrors.NewUnauthorized("only the addressed technician may reject this request")
		}
		recipient = req.UserID
	default:
		if req.UserID != identity.ActorID {
			return nil, apperrors.NewUnauthorized("only the requester may cancel this request")
		}
		recipient = req.TechnicianID
	}
	if req.Status != domain.AssistancePending {
		return nil, alreadyHandled(req)
	}

	ok, err := s.repos.Assistance.UpdateStatus(ctx, requestID, domain.AssistancePending, target)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, alreadyHandled(req)
	}
	req.Status = target

	s.metrics.RecordAssistance(string(target))
	s.logger.Info("assistance request closed", zap.String("request_id", requestID), zap.String("status", string(target)))
	s.publish(ctx, eventType, identity, req, &recipient, "", 0)
	return req, nil
}

// Get returns a request the caller sent or received.
func (s *AssistanceService) Get(ctx context.Context, identity domain.Identity, requestID string) (*domain.AssistanceRequest, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	req, err := s.repos.Assistance.GetByID(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, "assistance request", requestID)
	}
	if !identity.IsAdmin() && req.UserID != identity.ActorID && req.TechnicianID != identity.ActorID {
		return nil, apperrors.NewUnauthorized("not a party to this request")
	}
	return req, nil
}

// List returns requests the caller sent, or received when filter.Incoming is set.
func (s *AssistanceService) List(ctx context.Context, identity domain.Identity, filter AssistanceListFilter) ([]domain.AssistanceRequest, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	repoFilter := repository.AssistanceFilter{
		TicketID: filter.TicketID,
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	if filter.Incoming {
		repoFilter.TechnicianID = &identity.ActorID
	} else {
		repoFilter.UserID = &identity.ActorID
	}
	reqs, err := s.repos.Assistance.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return reqs, nil
}

func (s *AssistanceService) publish(ctx context.Context, eventType events.EventType, identity domain.Identity, req *domain.AssistanceRequest, recipient *string, sessionID string, rejected int64) {
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:        eventType,
		TicketID:    req.TicketID,
		SessionID:   sessionID,
		Actor:       events.ActorFrom(identity),
		RecipientID: recipient,
		Payload: events.AssistancePayload{
			RequestID:    req.ID,
			TechnicianID: req.TechnicianID,
			Status:       req.Status,
			SessionID:    sessionID,
			Rejected:     rejected,
		},
	})
}

func alreadyHandled(req *domain.AssistanceRequest) error {
	return apperrors.NewAlreadyHandled("assistance request is no longer pending", map[string]any{
		"request_id": req.ID,
		"status":     req.Status,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
