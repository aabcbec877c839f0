// Package schedule provides the cron based trigger kind. Scheduled workflows
// are fired by the scheduler, never by bus events.
package schedule

import (
	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string { return string(models.TriggerScheduled) }

func (*Factory) Name() string { return "Time-Based (cron)" }

func (*Factory) Description() string {
	return "Runs the workflow on a cron schedule."
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"schedule": map[string]any{
				"type":        "string",
				"description": "Cron expression (minute hour day month weekday)",
				"examples":    []string{"0 9 * * *", "*/15 * * * *", "@hourly"},
			},
		},
		"required":             []string{"schedule"},
		"additionalProperties": false,
	}
}

func (*Factory) Validate(config map[string]any) error {
	expression, _ := config["schedule"].(string)
	_, err := models.ParseCron(expression)

	return err
}

// Match never accepts bus events. The scheduler starts due workflows
// directly.
func (*Factory) Match(models.Trigger, events.TriggerEvent) bool {
	return false
}

// Expression returns the cron expression of a scheduled trigger.
func Expression(trigger models.Trigger) string {
	return trigger.ConfigString("schedule", "")
}
