package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/orderflow/pkg/events"
)

var ErrEventTypeRequired = errors.New("event type is required")

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
	triggers      EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		logger:        logger.With("component", "eventbus"),
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	if event.GetType() == "" {
		return ErrEventTypeRequired
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))
	msg.SetContext(ctx)

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eb.dispatch(ctx, msg)
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	handler, event := eb.route(eventType)
	if handler == nil {
		msg.Ack()

		return
	}

	if event == nil {
		eb.logger.WarnContext(ctx, "Dropping event of unknown type", "eventType", eventType, "messageId", msg.UUID)
		msg.Nack()

		return
	}

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		eb.logger.ErrorContext(ctx, "Failed to decode event", "eventType", eventType, "messageId", msg.UUID, "error", err)
		msg.Ack()

		return
	}

	if err := handler(ctx, event); err != nil {
		eb.logger.ErrorContext(ctx, "Event handler failed", "eventType", eventType, "messageId", msg.UUID, "error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}

// route picks the handler for eventType and an empty value to decode into.
func (eb *WatermillEventBus) route(eventType events.EventType) (EventHandler, any) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	handler, exists := eb.subscriptions[eventType]
	if !exists && eventType.IsTrigger() {
		handler = eb.triggers
	}

	if handler == nil {
		return nil, nil
	}

	switch {
	case eventType == events.ExecutionStartedEvent:
		return handler, &events.ExecutionStarted{}
	case eventType == events.ExecutionCompletedEvent:
		return handler, &events.ExecutionCompleted{}
	case eventType.IsTrigger():
		return handler, &events.TriggerEvent{}
	default:
		return handler, nil
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	if eventType == "" {
		return ErrEventTypeRequired
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) HandleTriggers(handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.triggers = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
