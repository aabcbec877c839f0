package schedule

import (
	"testing"

	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_Validate(t *testing.T) {
	factory := NewFactory()

	require.NoError(t, factory.Validate(map[string]any{"schedule": "0 9 * * *"}))
	require.ErrorIs(t, factory.Validate(map[string]any{"schedule": "whenever"}), models.ErrInvalidSchedule)
	require.ErrorIs(t, factory.Validate(map[string]any{}), models.ErrInvalidSchedule)
}

func TestFactory_Match(t *testing.T) {
	factory := NewFactory()
	trigger := models.Trigger{Kind: models.TriggerScheduled, Config: map[string]any{"schedule": "@hourly"}}

	assert.False(t, factory.Match(trigger, events.NewTriggerEvent(events.ScheduleTickEvent, nil)))
	assert.False(t, factory.Match(trigger, events.NewTriggerEvent(events.OrderCreatedEvent, nil)))
	assert.Equal(t, "@hourly", Expression(trigger))
}
