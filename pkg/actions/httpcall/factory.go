package httpcall

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/protocol"
)

// ActionFactory creates http_call actions.
type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) Create(_ context.Context, config models.ActionConfig) (protocol.Action, error) {
	cfg, ok := config.(*models.HTTPCallConfig)
	if !ok {
		return nil, fmt.Errorf("%w: expected http_call config, got %T", protocol.ErrInvalidConfig, config)
	}

	action, err := NewAction(cfg)
	if err != nil {
		return nil, err
	}

	return &dispatcher{action: action}, nil
}

// dispatcher adapts Action to the engine's action contract.
type dispatcher struct {
	action *Action
}

func (d *dispatcher) Execute(ctx context.Context, _ protocol.ActionRequest, logger *slog.Logger) (protocol.ActionResult, error) {
	output, err := d.action.Execute(ctx, logger)
	if err != nil {
		return protocol.ActionResult{}, err
	}

	return protocol.ActionResult{Output: output}, nil
}

func (*ActionFactory) ID() string {
	return string(models.ActionHTTPCall)
}

func (*ActionFactory) Name() string {
	return "HTTP Call"
}

func (*ActionFactory) Description() string {
	return "Calls an external HTTP endpoint. URL, headers and body accept {field} placeholders."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"title":       "URL",
				"type":        "string",
				"description": "The URL to call. Supports {field} placeholders from the trigger payload.",
				"examples": []string{
					"https://erp.example.com/orders/{orderId}/sync",
				},
			},
			"method": map[string]any{
				"type":    "string",
				"default": "GET",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
				"examples": []map[string]string{
					{"Authorization": "Bearer your-token-here"},
				},
			},
			"body": map[string]any{
				"type":     "string",
				"format":   "code",
				"examples": []string{`{"orderId": "{orderId}", "total": {orderTotal}}`},
			},
			"timeout": map[string]any{
				"type":        []string{"string", "integer"},
				"description": "Request timeout, 30s by default",
			},
			"retryAttempts": map[string]any{
				"type":    "integer",
				"minimum": 0,
				"maximum": maxRetryAttempts,
				"default": 0,
			},
			"retryDelay": map[string]any{
				"type":        []string{"string", "integer"},
				"description": "Delay between retries, 1s by default",
			},
		},
		"required":             []string{"url"},
		"additionalProperties": false,
	}
}
