// Package memory provides in-process repositories with the same semantics as
// the postgres ones: uniqueness constraints return repository.ErrConflict,
// conditional updates are atomic and WithinTx rolls back on error. It backs
// service tests and local runs without a database.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Store holds every table. All repositories returned by Repositories share it.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	now  func() time.Time

	profiles    map[string]domain.Profile
	technicians map[string]domain.Technician
	tickets     map[string]domain.Ticket
	history     []domain.TicketHistory
	reviews     map[string]domain.Review // by ticket id
	requests    map[string]domain.AssistanceRequest
	sessions    map[string]domain.ChatSession
	messages    []domain.Message
	edits       []domain.MessageEdit
	categories  map[string]domain.FAQCategory
	faqItems    []domain.FAQItem
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		profiles:    make(map[string]domain.Profile),
		technicians: make(map[string]domain.Technician),
		tickets:     make(map[string]domain.Ticket),
		reviews:     make(map[string]domain.Review),
		requests:    make(map[string]domain.AssistanceRequest),
		sessions:    make(map[string]domain.ChatSession),
		categories:  make(map[string]domain.FAQCategory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories returns every repository backed by the store.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Tickets:      &ticketRepo{s},
		History:      &historyRepo{s},
		Reviews:      &reviewRepo{s},
		Assistance:   &assistanceRepo{s},
		Sessions:     &sessionRepo{s},
		Messages:     &messageRepo{s},
		MessageEdits: &editRepo{s},
		FAQ:          &faqRepo{s},
		Profiles:     &profileRepo{s},
		Technicians:  &technicianRepo{s},
	}
}

// WithinTx serialises transactions and restores the previous state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.Repositories()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	profiles    map[string]domain.Profile
	technicians map[string]domain.Technician
	tickets     map[string]domain.Ticket
	history     []domain.TicketHistory
	reviews     map[string]domain.Review
	requests    map[string]domain.AssistanceRequest
	sessions    map[string]domain.ChatSession
	messages    []domain.Message
	edits       []domain.MessageEdit
	categories  map[string]domain.FAQCategory
	faqItems    []domain.FAQItem
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		profiles:    maps.Clone(s.profiles),
		technicians: maps.Clone(s.technicians),
		tickets:     maps.Clone(s.tickets),
		history:     slices.Clone(s.history),
		reviews:     maps.Clone(s.reviews),
		requests:    maps.Clone(s.requests),
		sessions:    maps.Clone(s.sessions),
		messages:    slices.Clone(s.messages),
		edits:       slices.Clone(s.edits),
		categories:  maps.Clone(s.categories),
		faqItems:    slices.Clone(s.faqItems),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = snap.profiles
	s.technicians = snap.technicians
	s.tickets = snap.tickets
	s.history = snap.history
	s.reviews = snap.reviews
	s.requests = snap.requests
	s.sessions = snap.sessions
	s.messages = snap.messages
	s.edits = snap.edits
	s.categories = snap.categories
	s.faqItems = snap.faqItems
}

func newID() string {
	return uuid.NewString()
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
