// Package manual provides the trigger kind of workflows that only run on
// explicit operator request.
package manual

import (
	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string { return string(models.TriggerManual) }

func (*Factory) Name() string { return "Manual" }

func (*Factory) Description() string {
	return "Runs only when an operator executes the workflow."
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
	}
}

func (*Factory) Validate(map[string]any) error { return nil }

func (*Factory) Match(models.Trigger, events.TriggerEvent) bool { return false }
