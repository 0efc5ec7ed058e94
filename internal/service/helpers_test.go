package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// stepClock advances by one millisecond on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type staticCorpus struct {
	items []domain.FAQItem
	err   error
}

func (c staticCorpus) ActiveCorpus(context.Context) ([]domain.FAQItem, error) {
	return c.items, c.err
}

type fixture struct {
	ctx      context.Context
	clock    *stepClock
	store    *memory.Store
	repos    repository.Repositories
	recorder *eventRecorder

	tickets    *TicketService
	assistance *AssistanceService
	chat       *ChatService
	faq        *FAQService
	profiles   *ProfileService

	owner     domain.Identity
	tech      domain.Identity
	otherTech domain.Identity
	stranger  domain.Identity
	admin     domain.Identity
}

type fixtureOption func(*ChatDependencies)

func withCorpus(c CorpusSource) fixtureOption {
	return func(d *ChatDependencies) { d.Corpus = c }
}

func withChatConfig(cfg config.ChatConfig) fixtureOption {
	return func(d *ChatDependencies) { d.Config = cfg }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	clock := newStepClock()
	store := memory.NewStore(memory.WithClock(clock.Now))
	repos := store.Repositories()
	recorder := &eventRecorder{}
	dispatcher := events.NewInMemoryDispatcher()
	events.SubscribeAll(dispatcher, recorder.handle)

	f := &fixture{
		ctx:      context.Background(),
		clock:    clock,
		store:    store,
		repos:    repos,
		recorder: recorder,
	}

	f.faq = NewFAQService(FAQDependencies{Repos: repos, Tx: store})
	chatDeps := ChatDependencies{
		Repos:      repos,
		Tx:         store,
		Dispatcher: dispatcher,
		Corpus:     f.faq,
		Clock:      clock.Now,
	}
	for _, opt := range opts {
		opt(&chatDeps)
	}
	f.chat = NewChatService(chatDeps)
	f.tickets = NewTicketService(TicketDependencies{Repos: repos, Tx: store, Dispatcher: dispatcher, Clock: clock.Now})
	f.assistance = NewAssistanceService(AssistanceDependencies{Repos: repos, Tx: store, Chat: f.chat, Dispatcher: dispatcher, Clock: clock.Now})
	f.profiles = NewProfileService(ProfileDependencies{Repos: repos, Tx: store, Dispatcher: dispatcher, Clock: clock.Now})

	f.admin = f.user(t, "admin", domain.RoleAdmin)
	f.owner = f.user(t, "olivia", domain.RoleUser)
	f.stranger = f.user(t, "sam", domain.RoleUser)
	f.tech = f.technician(t, "tariq")
	f.otherTech = f.technician(t, "tess")
	return f
}

func (f *fixture) user(t *testing.T, username string, role domain.Role) domain.Identity {
	t.Helper()
	profile, err := f.profiles.CreateProfile(f.ctx, ProfileInput{
		Username: username,
		Email:    username + "@fixit.local",
		FullName: username,
		IsAdmin:  role == domain.RoleAdmin,
	})
	require.NoError(t, err)
	return domain.Identity{ActorID: profile.ID, Role: role}
}

func (f *fixture) technician(t *testing.T, username string) domain.Identity {
	t.Helper()
	id := f.user(t, username, domain.RoleTechnician)
	_, err := f.profiles.SetTechnicianFlag(f.ctx, f.admin, id.ActorID, true)
	require.NoError(t, err)
	return id
}

// assignedTicket files a ticket for the owner and has tech accept it.
func (f *fixture) assignedTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	req, _, err := f.assistance.Request(f.ctx, f.owner, AssistanceInput{
		TechnicianID: f.tech.ActorID,
		Title:        "Laptop will not boot",
		Category:     domain.TicketCategoryHardware,
		Priority:     domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	result, err := f.assistance.Accept(f.ctx, f.tech, req.ID)
	require.NoError(t, err)
	return result.Ticket
}

func (f *fixture) resolvedTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := f.assignedTicket(t)
	resolved, err := f.tickets.Transition(f.ctx, f.tech, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	return resolved
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
}
