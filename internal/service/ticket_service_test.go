package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestCreateTicketDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.tickets.CreateTicket(f.ctx, f.owner, TicketCreateInput{Title: "  Printer jam  "})
	require.NoError(t, err)
	assert.Equal(t, "Printer jam", ticket.Title)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.TicketCategoryOther, ticket.Category)
	assert.Len(t, f.recorder.ofType(events.EventTicketCreated), 1)

	_, err = f.tickets.CreateTicket(f.ctx, f.owner, TicketCreateInput{Title: "x", Priority: "urgent"})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(f.ctx, f.owner, TicketCreateInput{})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(f.ctx, domain.Identity{}, TicketCreateInput{Title: "x"})
	requireCode(t, err, apperrors.CodeUnauthenticated)
}

func TestTicketLifecycle(t *testing.T) {
	f := newFixture(t)
	ticket := f.assignedTicket(t)
	require.Equal(t, domain.TicketStatusAssigned, ticket.Status)
	require.True(t, ticket.BoundTo(f.tech.ActorID))

	started, err := f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, started.Status)

	resolved, err := f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	tech, err := f.repos.Technicians.GetByUserID(f.ctx, f.tech.ActorID)
	require.NoError(t, err)
	assert.Equal(t, 1, tech.CompletedTickets)

	reqs, err := f.assistance.List(f.ctx, f.owner, AssistanceListFilter{TicketID: &ticket.ID})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.AssistanceCompleted, reqs[0].Status)

	history, err := f.tickets.History(f.ctx, f.owner, ticket.ID)
	require.NoError(t, err)
	var statuses []any
	for _, h := range history {
		if h.ChangeType == domain.ChangeTypeStatus {
			statuses = append(statuses, h.NewValue["status"])
		}
	}
	assert.Equal(t, []any{domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusResolved}, statuses)

	onlyStatus, err := f.tickets.History(f.ctx, f.owner, ticket.ID, domain.ChangeTypeStatus)
	require.NoError(t, err)
	assert.Len(t, onlyStatus, len(statuses))
}

func TestTransitionNotifiesCounterpart(t *testing.T) {
	f := newFixture(t)
	ticket := f.assignedTicket(t)

	_, err := f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	_, err = f.tickets.Transition(f.ctx, f.owner, ticket.ID, domain.TicketStatusCancelled)
	require.NoError(t, err)

	changes := f.recorder.ofType(events.EventTicketStatusChanged)
	require.Len(t, changes, 3) // assigned, in_progress, cancelled
	require.NotNil(t, changes[1].RecipientID)
	assert.Equal(t, f.owner.ActorID, *changes[1].RecipientID)
	require.NotNil(t, changes[2].RecipientID)
	assert.Equal(t, f.tech.ActorID, *changes[2].RecipientID)
	assert.Equal(t, events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusInProgress,
		NewStatus: domain.TicketStatusCancelled,
	}, changes[2].Payload)
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFixture(t)
	ticket := f.assignedTicket(t)

	_, err := f.tickets.Transition(f.ctx, f.owner, ticket.ID, domain.TicketStatusInProgress)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.tickets.Transition(f.ctx, f.otherTech, ticket.ID, domain.TicketStatusResolved)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusCancelled)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusAssigned)
	requireCode(t, err, apperrors.CodeInvalidTransition)

	_, err = f.tickets.Transition(f.ctx, f.tech, ticket.ID, "solved")
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.tickets.Transition(f.ctx, f.tech, "missing", domain.TicketStatusResolved)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestTransitionRejectsWrongSourceStatus(t *testing.T) {
	f := newFixture(t)
	ticket := f.assignedTicket(t)

	_, err := f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusOpen)
	requireCode(t, err, apperrors.CodeInvalidTransition)

	_, err = f.tickets.Transition(f.ctx, f.owner, ticket.ID, domain.TicketStatusCancelled)
	require.NoError(t, err)
	_, err = f.tickets.Transition(f.ctx, f.owner, ticket.ID, domain.TicketStatusCancelled)
	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestReopenBeforeReview(t *testing.T) {
	f := newFixture(t)
	ticket := f.resolvedTicket(t)

	reopened, err := f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
	assert.True(t, reopened.BoundTo(f.tech.ActorID))
}

func TestReopenFailsOnceReviewed(t *testing.T) {
	f := newFixture(t)
	ticket := f.resolvedTicket(t)

	_, err := f.tickets.SubmitReview(f.ctx, f.owner, ticket.ID, ReviewInput{Rating: 5, Comment: "quick fix"})
	require.NoError(t, err)

	_, err = f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusOpen)
	requireCode(t, err, apperrors.CodeInvalidTransition)

	current, err := f.repos.Tickets.GetByID(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, current.Status)
}

func TestSubmitReview(t *testing.T) {
	f := newFixture(t)
	ticket := f.resolvedTicket(t)

	for _, rating := range []int{0, 6, -1} {
		_, err := f.tickets.SubmitReview(f.ctx, f.owner, ticket.ID, ReviewInput{Rating: rating})
		requireCode(t, err, apperrors.CodeValidation)
	}

	_, err := f.tickets.SubmitReview(f.ctx, f.tech, ticket.ID, ReviewInput{Rating: 4})
	requireCode(t, err, apperrors.CodeUnauthorized)

	review, err := f.tickets.SubmitReview(f.ctx, f.owner, ticket.ID, ReviewInput{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, f.tech.ActorID, review.TechnicianID)

	_, err = f.tickets.SubmitReview(f.ctx, f.owner, ticket.ID, ReviewInput{Rating: 2})
	requireCode(t, err, apperrors.CodeAlreadyHandled)

	tech, err := f.repos.Technicians.GetByUserID(f.ctx, f.tech.ActorID)
	require.NoError(t, err)
	assert.Equal(t, 1, tech.ReviewCount)
	assert.InDelta(t, 4.0, tech.AverageRating, 0.001)

	reviewed := f.recorder.ofType(events.EventTicketReviewed)
	require.Len(t, reviewed, 1)
	assert.Equal(t, f.tech.ActorID, *reviewed[0].RecipientID)
}

func TestSubmitReviewRequiresResolvedTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.assignedTicket(t)

	_, err := f.tickets.SubmitReview(f.ctx, f.owner, ticket.ID, ReviewInput{Rating: 3})
	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestSubmitReviewRejectsTicketReopenedMeanwhile(t *testing.T) {
	f := newFixture(t)
	ticket := f.resolvedTicket(t)

	// The technician reopens after the owner loaded the resolved ticket but
	// before the review transaction starts.
	f.tickets = NewTicketService(TicketDependencies{
		Repos: f.repos,
		Tx: beforeTx{inner: f.store, hook: func() {
			_, err := f.repos.Tickets.Reopen(f.ctx, ticket.ID)
			require.NoError(t, err)
		}},
	})

	_, err := f.tickets.SubmitReview(f.ctx, f.owner, ticket.ID, ReviewInput{Rating: 5})
	requireCode(t, err, apperrors.CodeInvalidTransition)

	_, err = f.repos.Reviews.GetByTicket(f.ctx, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	current, err := f.repos.Tickets.GetByID(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, current.Status)
}

func TestTicketVisibility(t *testing.T) {
	f := newFixture(t)
	ticket := f.assignedTicket(t)
	_, err := f.tickets.CreateTicket(f.ctx, f.stranger, TicketCreateInput{Title: "VPN down"})
	require.NoError(t, err)

	_, err = f.tickets.GetTicket(f.ctx, f.stranger, ticket.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = f.tickets.GetTicket(f.ctx, f.tech, ticket.ID)
	require.NoError(t, err)
	_, err = f.tickets.GetTicket(f.ctx, f.admin, ticket.ID)
	require.NoError(t, err)

	mine, err := f.tickets.ListTickets(f.ctx, f.owner, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ticket.ID, mine[0].ID)

	assigned, err := f.tickets.ListTickets(f.ctx, f.tech, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	all, err := f.tickets.ListTickets(f.ctx, f.admin, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTransitionRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ticket := f.assignedTicket(t)

	// The technician counter fails after the status update; the update must
	// not survive.
	f.tickets = NewTicketService(TicketDependencies{Repos: f.repos, Tx: failingTx{f.store}})

	_, err := f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusResolved)
	require.Error(t, err)

	current, err := f.repos.Tickets.GetByID(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, current.Status)
}

// failingTx runs fn against repositories whose technician counter fails.
type failingTx struct {
	inner repository.TxManager
}

func (f failingTx) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return f.inner.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.Technicians = failingTechnicians{repos.Technicians}
		return fn(ctx, repos)
	})
}

type failingTechnicians struct {
	repository.TechnicianRepository
}

func (failingTechnicians) IncrementCompleted(context.Context, string) error {
	return errors.New("technician counter unavailable")
}

// beforeTx runs hook right before each transaction.
type beforeTx struct {
	inner repository.TxManager
	hook  func()
}

func (b beforeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	b.hook()
	return b.inner.WithinTx(ctx, fn)
}
