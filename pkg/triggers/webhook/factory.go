// Package webhook provides the trigger kind fired by inbound HTTP requests on
// /webhooks/<path>.
package webhook

import (
	"errors"
	"regexp"

	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
)

// SecretHeader carries the shared secret of webhooks configured with one.
const SecretHeader = "X-Webhook-Secret"

var (
	ErrInvalidPath = errors.New("webhook path must be a lowercase slug")

	pathPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string { return string(models.TriggerWebhook) }

func (*Factory) Name() string { return "Webhook" }

func (*Factory) Description() string {
	return "Runs the workflow when an HTTP request hits its webhook path. The request body becomes the input."
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path segment of the endpoint, served as /webhooks/<path>",
				"examples":    []string{"shopify-orders", "carrier-updates"},
			},
			"secret": map[string]any{
				"type":        "string",
				"description": "Shared secret expected in the " + SecretHeader + " header",
			},
		},
		"required":             []string{"path"},
		"additionalProperties": false,
	}
}

func (*Factory) Validate(config map[string]any) error {
	path, _ := config["path"].(string)
	if !pathPattern.MatchString(path) {
		return ErrInvalidPath
	}

	return nil
}

func (*Factory) Match(trigger models.Trigger, event events.TriggerEvent) bool {
	return event.Type == events.WebhookReceivedEvent && event.Source == Path(trigger)
}

// Path returns the webhook path of a trigger.
func Path(trigger models.Trigger) string {
	return trigger.ConfigString("path", "")
}

// Secret returns the shared secret of a trigger, if any.
func Secret(trigger models.Trigger) string {
	return trigger.ConfigString("secret", "")
}
