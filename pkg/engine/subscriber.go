package engine

import (
	"context"

	"github.com/dukex/orderflow/pkg/eventbus"
	"github.com/dukex/orderflow/pkg/events"
)

// Subscribe routes every trigger event arriving on bus to HandleEvent.
// Notifications published by the tracker are not trigger events and never
// reach the engine.
func (o *Orchestrator) Subscribe(bus eventbus.EventSubscriber) error {
	return bus.HandleTriggers(o.handleBusEvent)
}

func (o *Orchestrator) handleBusEvent(ctx context.Context, event any) error {
	triggerEvent, ok := event.(*events.TriggerEvent)
	if !ok {
		o.logger.ErrorContext(ctx, "Invalid event type for trigger handler")

		return nil
	}

	if triggerEvent.Payload == nil {
		triggerEvent.Payload = map[string]any{}
	}

	_, err := o.HandleEvent(ctx, *triggerEvent)

	return err
}
