package services

import (
	"testing"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecution_Execute(t *testing.T) {
	env := newTestEnv(t)

	workflow, err := env.workflows.Create(t.Context(), smsWorkflow("Manual"))
	require.NoError(t, err)

	id, err := env.executions.Execute(t.Context(), workflow.ID, map[string]any{
		"customerPhone": "+15550100",
		"orderNumber":   "ORD-42",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	env.engine.Wait()

	execution, err := env.executions.FetchByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, string(models.TriggerManual), execution.Trigger)
	require.Len(t, execution.Steps, 1)

	_, err = env.executions.Execute(t.Context(), "missing", nil)
	assert.True(t, IsNotFoundError(err))
}

func TestExecution_ListExecutions(t *testing.T) {
	env := newTestEnv(t)

	workflow, err := env.workflows.Create(t.Context(), smsWorkflow("Listed"))
	require.NoError(t, err)

	for range 3 {
		_, err := env.executions.Execute(t.Context(), workflow.ID, map[string]any{"customerPhone": "+15550100"})
		require.NoError(t, err)
	}

	env.engine.Wait()

	first, err := env.executions.ListExecutions(t.Context(), ListExecutionsRequest{WorkflowID: workflow.ID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, first.Executions, 2)
	assert.Equal(t, Pagination{Page: 1, Limit: 2, Total: 3, Pages: 2}, first.Pagination)
	assert.False(t, first.Polling.Active)
	assert.Equal(t, 10, first.Polling.IntervalSeconds)

	second, err := env.executions.ListExecutions(t.Context(), ListExecutionsRequest{WorkflowID: workflow.ID, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, second.Executions, 1)

	_, err = env.executions.ListExecutions(t.Context(), ListExecutionsRequest{WorkflowID: workflow.ID, Page: -1})
	assert.True(t, IsValidationError(err))

	_, err = env.executions.ListExecutions(t.Context(), ListExecutionsRequest{})
	assert.True(t, IsValidationError(err))
}

func TestExecution_ListExecutions_PollsWhileInFlight(t *testing.T) {
	env := newTestEnv(t)

	running := models.NewExecution("exec-running", "wf-1", "manual", nil, time.Now().UTC())
	require.NoError(t, running.Start())
	require.NoError(t, env.store.ExecutionRepository().Save(t.Context(), running))

	list, err := env.executions.ListExecutions(t.Context(), ListExecutionsRequest{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.True(t, list.Polling.Active)
	assert.Equal(t, 1, list.Pagination.Total)

	empty, err := env.executions.ListExecutions(t.Context(), ListExecutionsRequest{WorkflowID: "wf-unknown"})
	require.NoError(t, err)
	assert.Empty(t, empty.Executions)
	assert.Zero(t, empty.Pagination.Pages)
	assert.False(t, empty.Polling.Active)
}

func TestExecution_Webhook(t *testing.T) {
	env := newTestEnv(t)

	open, err := env.workflows.Create(t.Context(), webhookWorkflow("Open hook", "orders-in", ""))
	require.NoError(t, err)

	_, err = env.workflows.Create(t.Context(), webhookWorkflow("Guarded hook", "payments-in", "s3cret"))
	require.NoError(t, err)

	t.Run("unknown path", func(t *testing.T) {
		_, err := env.executions.Webhook(t.Context(), "nobody-listens", "", nil)
		require.ErrorIs(t, err, ErrWebhookNotFound)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := env.executions.Webhook(t.Context(), "payments-in", "guess", nil)
		require.ErrorIs(t, err, ErrWebhookUnauthorized)
		assert.True(t, IsUnauthorizedError(err))
	})

	t.Run("starts the listening workflow", func(t *testing.T) {
		ids, err := env.executions.Webhook(t.Context(), "orders-in", "", map[string]any{
			"customerPhone": "+15550100",
			"orderNumber":   "ORD-7",
		})
		require.NoError(t, err)
		require.Len(t, ids, 1)

		env.engine.Wait()

		execution, err := env.executions.FetchByID(t.Context(), ids[0])
		require.NoError(t, err)
		assert.Equal(t, open.ID, execution.WorkflowID)
		assert.Equal(t, models.ExecutionCompleted, execution.Status)
	})

	t.Run("accepts the right secret", func(t *testing.T) {
		ids, err := env.executions.Webhook(t.Context(), "payments-in", "s3cret", map[string]any{"customerPhone": "+15550100"})
		require.NoError(t, err)
		assert.Len(t, ids, 1)

		env.engine.Wait()
	})
}
