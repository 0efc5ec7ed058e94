package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishContinuesAfterHandlerError(t *testing.T) {
	var failures int
	d := NewInMemoryDispatcher(WithErrorHandler(func(Event, error) { failures++ }))

	var seen []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		seen = append(seen, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		seen = append(seen, "second")
		return nil
	})
	d.Subscribe(EventTicketReviewed, func(context.Context, Event) error {
		seen = append(seen, "other")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))
	assert.Equal(t, []string{"first", "second"}, seen)
	assert.Equal(t, 1, failures)
}

func TestSubscribeAllReceivesEveryType(t *testing.T) {
	d := NewInMemoryDispatcher()
	got := map[EventType]int{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		got[e.Type]++
		return nil
	})

	for _, typ := range AllEventTypes {
		require.NoError(t, d.Publish(context.Background(), Event{Type: typ}))
	}
	assert.Len(t, got, len(AllEventTypes))
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "t1", Event{TicketID: "t1", SessionID: "s1"}.Key())
	assert.Equal(t, "s1", Event{SessionID: "s1"}.Key())
}
