package builtin

import (
	"log/slog"
	"testing"

	"github.com/dukex/orderflow/pkg/assignment"
	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/notify"
	"github.com/dukex/orderflow/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	c := catalog.New(slog.Default())

	err := Register(c, Dependencies{
		Recorder: assignment.NewMemoryRecorder(),
		Updater:  records.NewLogUpdater(slog.Default()),
		Sender:   notify.NewLogSender(slog.Default()),
	})
	require.NoError(t, err)

	for _, kind := range models.BuiltinActionKinds {
		_, ok := c.Action(kind)
		assert.True(t, ok, kind)
	}

	for _, kind := range []models.TriggerKind{
		models.TriggerRecordCreated,
		models.TriggerStatusChanged,
		models.TriggerPaymentConfirmed,
		models.TriggerScheduled,
		models.TriggerManual,
		models.TriggerWebhook,
	} {
		_, ok := c.Trigger(kind)
		assert.True(t, ok, kind)
	}

	require.ErrorIs(t, Register(c, Dependencies{}), catalog.ErrKindRegistered)
}

func TestNativeConfigsPassTheirSchemas(t *testing.T) {
	c := catalog.New(slog.Default())
	require.NoError(t, Register(c, Dependencies{}))

	configs := []models.ActionConfig{
		&models.AssignUserConfig{
			TargetType:       models.TargetSalesRep,
			DistributionMode: models.DistributionWeighted,
			Assignments:      []models.UserAssignment{{UserID: "a", Weight: 60}, {UserID: "b", Weight: 40}},
			OnlyUnassigned:   true,
		},
		&models.AssignUserConfig{TargetType: models.TargetDeliveryAgent, DistributionMode: models.DistributionEven},
		&models.SendEmailConfig{To: "{customerEmail}", Subject: "Hi"},
		&models.SendSMSConfig{To: "{customerPhone}", Message: "Order {orderNumber} confirmed"},
		&models.UpdateRecordConfig{Fields: map[string]any{"priority": "high"}},
		&models.WaitConfig{Duration: models.Duration(3600000000000)},
		&models.HTTPCallConfig{URL: "https://example.com", Method: "POST", RetryAttempts: 2},
	}

	for _, cfg := range configs {
		assert.NoError(t, c.ValidateActionConfig(cfg.ActionKind(), cfg), cfg.ActionKind())
	}

	assert.ErrorIs(t, c.ValidateActionConfig(models.ActionSendSMS, &models.SendSMSConfig{To: "x"}), catalog.ErrInvalidConfig)
	assert.NoError(t, c.ValidateTriggerConfig(models.TriggerScheduled, map[string]any{"schedule": "0 9 * * *"}))
	assert.ErrorIs(t, c.ValidateTriggerConfig(models.TriggerWebhook, map[string]any{"path": "Bad Path"}), catalog.ErrInvalidConfig)
	assert.ErrorIs(t, c.ValidateTriggerConfig(models.TriggerManual, map[string]any{"unexpected": 1}), catalog.ErrInvalidConfig)
}
