package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `
workflows:
  - id: confirmation-sms
    name: Order confirmation SMS
    isActive: true
    trigger:
      kind: status_changed
      config:
        toStatus: confirmed
    conditions:
      logic: AND
      rules:
        - id: r1
          field: orderTotal
          operator: greaterThan
          value: "100"
    actions:
      - id: sms
        kind: send_sms
        config:
          to: "{customerPhone}"
          message: "Order {orderNumber} confirmed"
      - id: pause
        kind: wait
        config:
          duration: 1h
`

func TestParseWorkflows(t *testing.T) {
	definitions, err := ParseWorkflows([]byte(seed))
	require.NoError(t, err)
	require.Len(t, definitions, 1)

	workflow := definitions[0]
	assert.Equal(t, "confirmation-sms", workflow.ID)
	assert.True(t, workflow.IsActive)
	assert.Equal(t, models.TriggerStatusChanged, workflow.Trigger.Kind)
	assert.Equal(t, "confirmed", workflow.Trigger.Config["toStatus"])
	require.NotNil(t, workflow.Conditions)
	assert.Len(t, workflow.Conditions.Rules, 1)

	require.Len(t, workflow.Actions, 2)

	sms, ok := workflow.Actions[0].Config.(*models.SendSMSConfig)
	require.True(t, ok)
	assert.Equal(t, "Order {orderNumber} confirmed", sms.Message)
	assert.IsType(t, &models.WaitConfig{}, workflow.Actions[1].Config)
}

func TestParseWorkflows_Errors(t *testing.T) {
	_, err := ParseWorkflows([]byte("workflows:\n  - name: no id\n    actions: []\n"))
	require.ErrorIs(t, err, ErrMissingID)

	_, err = ParseWorkflows([]byte("workflows: [\n"))
	require.Error(t, err)
}

func TestLoadWorkflows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	definitions, err := LoadWorkflows(path)
	require.NoError(t, err)
	assert.Len(t, definitions, 1)

	_, err = LoadWorkflows(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
