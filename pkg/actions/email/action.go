// Package email implements the send_email action.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/notify"
	"github.com/dukex/orderflow/pkg/protocol"
)

var ErrMissingRecipient = errors.New("email recipient is empty")

type Action struct {
	config *models.SendEmailConfig
	sender notify.Sender
}

func NewAction(config *models.SendEmailConfig, sender notify.Sender) *Action {
	return &Action{config: config, sender: sender}
}

func (a *Action) Execute(ctx context.Context, req protocol.ActionRequest, logger *slog.Logger) (protocol.ActionResult, error) {
	if a.config.To == "" {
		return protocol.ActionResult{}, ErrMissingRecipient
	}

	id, err := a.sender.Send(ctx, notify.Message{
		Channel:     notify.ChannelEmail,
		To:          a.config.To,
		Subject:     a.config.Subject,
		Body:        a.config.Body,
		ExecutionID: req.ExecutionID,
	})
	if err != nil {
		return protocol.ActionResult{}, fmt.Errorf("failed to send email: %w", err)
	}

	logger.InfoContext(ctx, "Email sent", "module", "send_email_action", "to", a.config.To, "messageId", id)

	return protocol.ActionResult{Output: map[string]any{
		"messageId": id,
		"to":        a.config.To,
		"subject":   a.config.Subject,
		"body":      a.config.Body,
	}}, nil
}

type ActionFactory struct {
	sender notify.Sender
}

func NewActionFactory(sender notify.Sender) *ActionFactory {
	return &ActionFactory{sender: sender}
}

func (f *ActionFactory) Create(_ context.Context, config models.ActionConfig) (protocol.Action, error) {
	cfg, ok := config.(*models.SendEmailConfig)
	if !ok {
		return nil, fmt.Errorf("%w: expected send_email config, got %T", protocol.ErrInvalidConfig, config)
	}

	return NewAction(cfg, f.sender), nil
}

func (*ActionFactory) ID() string { return string(models.ActionSendEmail) }

func (*ActionFactory) Name() string { return "Send Email" }

func (*ActionFactory) Description() string {
	return "Sends an email. Recipient, subject and body accept {field} placeholders."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Recipient address",
				"examples":    []string{"{customerEmail}", "sales@example.com"},
			},
			"subject": map[string]any{
				"type":      "string",
				"minLength": 1,
				"examples":  []string{"Your order {orderNumber} is confirmed"},
			},
			"body": map[string]any{
				"type":   "string",
				"format": "textarea",
			},
		},
		"required":             []string{"to", "subject"},
		"additionalProperties": false,
	}
}
