package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

type countingSink struct {
	seen []events.EventType
}

func (s *countingSink) Register(d events.Dispatcher) {
	events.SubscribeAll(d, func(_ context.Context, e events.Event) error {
		s.seen = append(s.seen, e.Type)
		return nil
	})
}

func TestStartEventSubscribers(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, nil, config.NotificationConfig{})
	sink := &countingSink{}

	StartEventSubscribers(dispatcher, notifications, sink, nil)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketStatusChanged}))
	assert.Equal(t, []events.EventType{events.EventTicketStatusChanged}, sink.seen)
}
