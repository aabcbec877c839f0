// Package sms implements the send_sms action.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/notify"
	"github.com/dukex/orderflow/pkg/protocol"
)

var ErrMissingRecipient = errors.New("sms recipient is empty")

type Action struct {
	config *models.SendSMSConfig
	sender notify.Sender
}

func NewAction(config *models.SendSMSConfig, sender notify.Sender) *Action {
	return &Action{config: config, sender: sender}
}

func (a *Action) Execute(ctx context.Context, req protocol.ActionRequest, logger *slog.Logger) (protocol.ActionResult, error) {
	if a.config.To == "" {
		return protocol.ActionResult{}, ErrMissingRecipient
	}

	id, err := a.sender.Send(ctx, notify.Message{
		Channel:     notify.ChannelSMS,
		To:          a.config.To,
		Body:        a.config.Message,
		ExecutionID: req.ExecutionID,
	})
	if err != nil {
		return protocol.ActionResult{}, fmt.Errorf("failed to send sms: %w", err)
	}

	logger.InfoContext(ctx, "SMS sent", "module", "send_sms_action", "to", a.config.To, "messageId", id)

	return protocol.ActionResult{Output: map[string]any{
		"messageId": id,
		"to":        a.config.To,
		"message":   a.config.Message,
	}}, nil
}

type ActionFactory struct {
	sender notify.Sender
}

func NewActionFactory(sender notify.Sender) *ActionFactory {
	return &ActionFactory{sender: sender}
}

func (f *ActionFactory) Create(_ context.Context, config models.ActionConfig) (protocol.Action, error) {
	cfg, ok := config.(*models.SendSMSConfig)
	if !ok {
		return nil, fmt.Errorf("%w: expected send_sms config, got %T", protocol.ErrInvalidConfig, config)
	}

	return NewAction(cfg, f.sender), nil
}

func (*ActionFactory) ID() string { return string(models.ActionSendSMS) }

func (*ActionFactory) Name() string { return "Send SMS" }

func (*ActionFactory) Description() string {
	return "Sends a text message. Recipient and message accept {field} placeholders."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Phone number of the recipient",
				"examples":    []string{"{customerPhone}"},
			},
			"message": map[string]any{
				"type":      "string",
				"minLength": 1,
				"maxLength": 1600,
				"examples":  []string{"Order {orderNumber} confirmed"},
			},
		},
		"required":             []string{"to", "message"},
		"additionalProperties": false,
	}
}
