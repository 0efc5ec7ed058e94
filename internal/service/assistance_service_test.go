package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestRequestCreatesTicketAndPendingRequest(t *testing.T) {
	f := newFixture(t)

	req, ticket, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{
		TechnicianID: f.tech.ActorID,
		Title:        "Outlook keeps crashing",
		Description:  "Crashes when opening attachments",
		Category:     domain.TicketCategorySoftware,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AssistancePending, req.Status)
	assert.Equal(t, ticket.ID, req.TicketID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, f.owner.ActorID, ticket.OwnerID)
	assert.Nil(t, ticket.TechnicianID)

	requested := f.recorder.ofType(events.EventAssistanceRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, f.tech.ActorID, *requested[0].RecipientID)
	assert.Len(t, f.recorder.ofType(events.EventTicketCreated), 1)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.stranger.ActorID, Title: "x"})
	requireCode(t, err, apperrors.CodeNotFound)

	_, _, err = f.assistance.Request(f.ctx, f.tech, AssistanceInput{TechnicianID: f.tech.ActorID, Title: "x"})
	requireCode(t, err, apperrors.CodeValidation)

	_, _, err = f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.profiles.SetAvailability(f.ctx, f.tech, false)
	require.NoError(t, err)
	_, _, err = f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, Title: "x"})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestRequestForExistingTicket(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.tickets.CreateTicket(f.ctx, f.owner, TicketCreateInput{Title: "Monitor flickers"})
	require.NoError(t, err)

	_, _, err = f.assistance.Request(f.ctx, f.stranger, AssistanceInput{TechnicianID: f.tech.ActorID, TicketID: &ticket.ID})
	requireCode(t, err, apperrors.CodeUnauthorized)

	req, got, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, TicketID: &ticket.ID})
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
	assert.Equal(t, "Monitor flickers", req.Title)

	_, _, err = f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, TicketID: &ticket.ID})
	requireCode(t, err, apperrors.CodeAlreadyHandled)
}

func TestAcceptBindsTicketAndRejectsSiblings(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.tickets.CreateTicket(f.ctx, f.owner, TicketCreateInput{Title: "Wifi drops"})
	require.NoError(t, err)
	first, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, TicketID: &ticket.ID})
	require.NoError(t, err)
	second, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.otherTech.ActorID, TicketID: &ticket.ID})
	require.NoError(t, err)

	result, err := f.assistance.Accept(f.ctx, f.tech, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssistanceAccepted, result.Request.Status)
	assert.Equal(t, domain.TicketStatusAssigned, result.Ticket.Status)
	assert.True(t, result.Ticket.BoundTo(f.tech.ActorID))
	assert.EqualValues(t, 1, result.RejectedSiblings)

	require.NotNil(t, result.Session)
	assert.Equal(t, domain.SessionUserTechnician, result.Session.Type)
	assert.Equal(t, f.owner.ActorID, result.Session.UserID)
	assert.Equal(t, ticket.ID, *result.Session.TicketID)

	sibling, err := f.repos.Assistance.GetByID(f.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssistanceRejected, sibling.Status)

	_, err = f.assistance.Accept(f.ctx, f.otherTech, second.ID)
	requireCode(t, err, apperrors.CodeAlreadyHandled)

	accepted := f.recorder.ofType(events.EventAssistanceAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, f.owner.ActorID, *accepted[0].RecipientID)
	assert.Equal(t, result.Session.ID, accepted[0].SessionID)
}

func TestAcceptRequiresAddressedTechnician(t *testing.T) {
	f := newFixture(t)
	req, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, Title: "Dock not detected"})
	require.NoError(t, err)

	for _, actor := range []domain.Identity{f.otherTech, f.owner, f.admin} {
		_, err = f.assistance.Accept(f.ctx, actor, req.ID)
		requireCode(t, err, apperrors.CodeUnauthorized)
	}

	_, err = f.assistance.Accept(f.ctx, f.tech, "missing")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestAcceptTwiceIsAlreadyHandled(t *testing.T) {
	f := newFixture(t)
	req, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, Title: "Dock not detected"})
	require.NoError(t, err)

	_, err = f.assistance.Accept(f.ctx, f.tech, req.ID)
	require.NoError(t, err)
	_, err = f.assistance.Accept(f.ctx, f.tech, req.ID)
	requireCode(t, err, apperrors.CodeAlreadyHandled)
}

func TestAcceptCancelledTicketIsAlreadyHandled(t *testing.T) {
	f := newFixture(t)
	req, ticket, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, Title: "Dock not detected"})
	require.NoError(t, err)
	_, err = f.tickets.Transition(f.ctx, f.owner, ticket.ID, domain.TicketStatusCancelled)
	require.NoError(t, err)

	_, err = f.assistance.Accept(f.ctx, f.tech, req.ID)
	requireCode(t, err, apperrors.CodeAlreadyHandled)

	// The whole acceptance rolled back.
	stored, err := f.repos.Assistance.GetByID(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssistancePending, stored.Status)
}

func TestConcurrentAcceptsLeaveOneBinding(t *testing.T) {
	f := newFixture(t)
	techs := []domain.Identity{f.tech, f.otherTech, f.technician(t, "theo"), f.technician(t, "tamsin")}

	ticket, err := f.tickets.CreateTicket(f.ctx, f.owner, TicketCreateInput{Title: "Server room is hot"})
	require.NoError(t, err)
	reqIDs := make([]string, len(techs))
	for i, tech := range techs {
		req, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: tech.ActorID, TicketID: &ticket.ID})
		require.NoError(t, err)
		reqIDs[i] = req.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, len(techs))
	for i := range techs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.assistance.Accept(f.ctx, techs[i], reqIDs[i])
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		requireCode(t, err, apperrors.CodeAlreadyHandled)
	}
	assert.Equal(t, 1, winners)

	reqs, err := f.repos.Assistance.List(f.ctx, repository.AssistanceFilter{TicketID: &ticket.ID})
	require.NoError(t, err)
	counts := map[domain.AssistanceRequestStatus]int{}
	for _, r := range reqs {
		counts[r.Status]++
	}
	assert.Equal(t, 1, counts[domain.AssistanceAccepted])
	assert.Equal(t, 0, counts[domain.AssistancePending])
	assert.Equal(t, len(techs)-1, counts[domain.AssistanceRejected])
}

func TestRejectAndCancel(t *testing.T) {
	f := newFixture(t)
	req, ticket, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, Title: "Keyboard missing keys"})
	require.NoError(t, err)

	_, err = f.assistance.Reject(f.ctx, f.owner, req.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)

	rejected, err := f.assistance.Reject(f.ctx, f.tech, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssistanceRejected, rejected.Status)

	_, err = f.assistance.Reject(f.ctx, f.tech, req.ID)
	requireCode(t, err, apperrors.CodeAlreadyHandled)

	again, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, TicketID: &ticket.ID})
	require.NoError(t, err)

	_, err = f.assistance.Cancel(f.ctx, f.tech, again.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)

	cancelled, err := f.assistance.Cancel(f.ctx, f.owner, again.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssistanceCancelled, cancelled.Status)

	assert.Equal(t, f.owner.ActorID, *f.recorder.ofType(events.EventAssistanceRejected)[0].RecipientID)
	assert.Equal(t, f.tech.ActorID, *f.recorder.ofType(events.EventAssistanceCancelled)[0].RecipientID)
}

func TestListAssistanceByDirection(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{TechnicianID: f.tech.ActorID, Title: "Mouse lag"})
	require.NoError(t, err)

	sent, err := f.assistance.List(f.ctx, f.owner, AssistanceListFilter{})
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	incoming, err := f.assistance.List(f.ctx, f.tech, AssistanceListFilter{Incoming: true})
	require.NoError(t, err)
	assert.Len(t, incoming, 1)

	none, err := f.assistance.List(f.ctx, f.otherTech, AssistanceListFilter{Incoming: true})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.assistance.Get(f.ctx, f.stranger, sent[0].ID)
	requireCode(t, err, apperrors.CodeUnauthorized)
}
