package worker

import (
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

// Subscriber attaches its handlers to a dispatcher.
type Subscriber interface {
	Register(dispatcher events.Dispatcher)
}

// StartEventSubscribers registers notification delivery and any additional
// sinks, such as the Kafka producer, on dispatcher.
func StartEventSubscribers(dispatcher events.Dispatcher, notifications *service.NotificationService, sinks ...Subscriber) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if dispatcher == nil {
		return
	}
	for _, sink := range sinks {
		if sink != nil {
			sink.Register(dispatcher)
		}
	}
}
