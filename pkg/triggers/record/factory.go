// Package record provides the trigger kinds fired by entity lifecycle events
// published on the event bus: record creation, status changes and payments.
package record

import (
	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
)

const defaultEntity = "order"

var entitySchema = map[string]any{
	"type":        "string",
	"description": "Entity whose events fire the trigger",
	"default":     defaultEntity,
	"pattern":     `^[a-z][a-z0-9_]*$`,
	"examples":    []string{"order", "customer", "delivery"},
}

// CreatedFactory fires on <entity>:created.
type CreatedFactory struct{}

func NewCreatedFactory() *CreatedFactory {
	return &CreatedFactory{}
}

func (*CreatedFactory) ID() string { return string(models.TriggerRecordCreated) }

func (*CreatedFactory) Name() string { return "Record Created" }

func (*CreatedFactory) Description() string {
	return "Fires when a new record, an order by default, is created."
}

func (*CreatedFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entity": entitySchema,
		},
		"additionalProperties": false,
	}
}

func (*CreatedFactory) Validate(map[string]any) error { return nil }

func (*CreatedFactory) Match(trigger models.Trigger, event events.TriggerEvent) bool {
	return event.Type == events.NewEventType(trigger.ConfigString("entity", defaultEntity), "created")
}

// StatusChangedFactory fires on <entity>:status_changed, optionally only
// for one target status.
type StatusChangedFactory struct{}

func NewStatusChangedFactory() *StatusChangedFactory {
	return &StatusChangedFactory{}
}

func (*StatusChangedFactory) ID() string { return string(models.TriggerStatusChanged) }

func (*StatusChangedFactory) Name() string { return "Order Status Changed" }

func (*StatusChangedFactory) Description() string {
	return "Fires when a record changes status. Set toStatus to fire only for that status."
}

func (*StatusChangedFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entity": entitySchema,
			"toStatus": map[string]any{
				"type":        "string",
				"description": "Only fire when the new status equals this value",
				"examples":    []string{"confirmed", "shipped", "delivered", "cancelled"},
			},
		},
		"additionalProperties": false,
	}
}

func (*StatusChangedFactory) Validate(map[string]any) error { return nil }

func (*StatusChangedFactory) Match(trigger models.Trigger, event events.TriggerEvent) bool {
	if event.Type != events.NewEventType(trigger.ConfigString("entity", defaultEntity), "status_changed") {
		return false
	}

	toStatus := trigger.ConfigString("toStatus", "")
	if toStatus == "" {
		return true
	}

	for _, key := range []string{"newStatus", "status"} {
		if status, ok := event.Payload[key].(string); ok {
			return status == toStatus
		}
	}

	return false
}

// PaymentConfirmedFactory fires on payment:received and payment:confirmed.
type PaymentConfirmedFactory struct{}

func NewPaymentConfirmedFactory() *PaymentConfirmedFactory {
	return &PaymentConfirmedFactory{}
}

func (*PaymentConfirmedFactory) ID() string { return string(models.TriggerPaymentConfirmed) }

func (*PaymentConfirmedFactory) Name() string { return "Payment Received" }

func (*PaymentConfirmedFactory) Description() string {
	return "Fires when a payment for an order is received."
}

func (*PaymentConfirmedFactory) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
	}
}

func (*PaymentConfirmedFactory) Validate(map[string]any) error { return nil }

func (*PaymentConfirmedFactory) Match(_ models.Trigger, event events.TriggerEvent) bool {
	return event.Type == events.PaymentReceivedEvent || event.Type == events.PaymentConfirmedEvent
}
