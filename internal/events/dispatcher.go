package events

import (
	"context"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// ErrorHandler observes handler failures. Publication never fails because of them.
type ErrorHandler func(event Event, err error)

// DispatcherOption customises the in-memory dispatcher.
type DispatcherOption func(*inMemoryDispatcher)

// WithErrorHandler reports handler errors to fn.
func WithErrorHandler(fn ErrorHandler) DispatcherOption {
	return func(d *inMemoryDispatcher) { d.onError = fn }
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	onError   ErrorHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher(opts ...DispatcherOption) Dispatcher {
	d := &inMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish synchronously invokes handlers for the given event. Delivery is
// best effort: a failing handler does not stop the others.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil && d.onError != nil {
			d.onError(event, err)
		}
	}
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// SubscribeAll registers handler for every known event type.
func SubscribeAll(d Dispatcher, handler EventHandler) {
	for _, t := range AllEventTypes {
		d.Subscribe(t, handler)
	}
}
