// Package events defines the trigger events the engine consumes and the
// execution notifications it emits.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries both inbound trigger events and outbound notifications.
const Topic = "orderflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution notifications.
	ExecutionStartedEvent   EventType = "workflow:execution_started"
	ExecutionCompletedEvent EventType = "workflow:execution_completed"

	// Inbound trigger events, named <entity>:<verb>.
	OrderCreatedEvent       EventType = "order:created"
	OrderStatusChangedEvent EventType = "order:status_changed"
	PaymentReceivedEvent    EventType = "payment:received"
	PaymentConfirmedEvent   EventType = "payment:confirmed"
	WebhookReceivedEvent    EventType = "webhook:received"
	ScheduleTickEvent       EventType = "schedule:tick"
	ManualRunEvent          EventType = "manual:run"
)

// NewEventType builds an <entity>:<verb> event name.
func NewEventType(entity, verb string) EventType {
	return EventType(entity + ":" + verb)
}

// Split returns the entity and verb of an <entity>:<verb> name.
func (t EventType) Split() (string, string, bool) {
	entity, verb, found := strings.Cut(string(t), ":")
	if !found || entity == "" || verb == "" || strings.Contains(verb, ":") {
		return "", "", false
	}

	return entity, verb, true
}

// IsNotification reports whether t is emitted by the engine itself.
func (t EventType) IsNotification() bool {
	return t == ExecutionStartedEvent || t == ExecutionCompletedEvent
}

// IsTrigger reports whether t names an inbound trigger event.
func (t EventType) IsTrigger() bool {
	_, _, ok := t.Split()

	return ok && !t.IsNotification()
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func newBase(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// TriggerEvent is an inbound domain event. Payload is the entity data used
// for condition evaluation and template substitution. Source narrows the
// event to one trigger, such as the path of a webhook.
type TriggerEvent struct {
	BaseEvent

	Payload map[string]any `json:"payload"`
	Source  string         `json:"source,omitempty"`
}

func (e TriggerEvent) GetType() EventType {
	return e.Type
}

// NewTriggerEvent creates a trigger event with a fresh id and timestamp.
func NewTriggerEvent(eventType EventType, payload map[string]any) TriggerEvent {
	if payload == nil {
		payload = map[string]any{}
	}

	return TriggerEvent{
		BaseEvent: newBase(eventType),
		Payload:   payload,
	}
}

type ExecutionStarted struct {
	BaseEvent

	WorkflowID  string `json:"workflowId"`
	ExecutionID string `json:"executionId"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

func NewExecutionStarted(workflowID, executionID string) ExecutionStarted {
	return ExecutionStarted{
		BaseEvent:   newBase(ExecutionStartedEvent),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

type ExecutionCompleted struct {
	BaseEvent

	WorkflowID  string `json:"workflowId"`
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

func NewExecutionCompleted(workflowID, executionID, status string) ExecutionCompleted {
	return ExecutionCompleted{
		BaseEvent:   newBase(ExecutionCompletedEvent),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Status:      status,
	}
}
