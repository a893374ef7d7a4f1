package outbox

import "context"

// Event is something that happened in the domain, identified by name.
// Settlement outcomes (completed, rejected, inconsistency) are the main
// producers.
type Event interface {
	EventName() string
}

// Handler consumes one delivered event.
type Handler func(ctx context.Context, e Event) error

// Publisher hands an event to the bus for fanout.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber binds a handler to an event name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
