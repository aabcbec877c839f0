// Package eventbus carries trigger events into the engine and execution
// notifications out of it.
package eventbus

import (
	"context"

	"github.com/dukex/orderflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	// Handle registers the handler for one event type.
	Handle(eventType events.EventType, handler EventHandler) error
	// HandleTriggers registers the handler for every <entity>:<verb> event
	// without a handler of its own. It receives *events.TriggerEvent.
	HandleTriggers(handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
