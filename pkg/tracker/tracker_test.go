package tracker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/mocks"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/dukex/orderflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Tracker, persistence.ExecutionRepository, *mocks.MockEventBus) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	tr := New(store.ExecutionRepository(), bus, slog.Default()).WithClock(func() time.Time { return fixedNow })

	return tr, store.ExecutionRepository(), bus
}

func TestTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tr, repo, bus := setup(t)

	execution, err := tr.Create(ctx, "wf-1", "manual", map[string]any{"orderId": "o-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionPending, execution.Status)
	assert.Empty(t, bus.PublishedTypes())

	require.NoError(t, tr.MarkRunning(ctx, execution))

	stored, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, stored.Status)

	require.NoError(t, execution.Record(models.StepResult{Index: 0, Kind: models.ActionSendSMS, Status: models.StepSucceeded}))
	require.NoError(t, tr.Checkpoint(ctx, execution))
	require.NoError(t, tr.Complete(ctx, execution))

	stored, err = repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.CompletedAt.Equal(fixedNow))
	assert.Len(t, stored.Steps, 1)

	assert.Equal(t, []events.EventType{events.ExecutionStartedEvent, events.ExecutionCompletedEvent}, bus.PublishedTypes())
}

func TestTracker_Fail(t *testing.T) {
	ctx := context.Background()
	tr, repo, bus := setup(t)

	execution, err := tr.Create(ctx, "wf-1", "order:created", nil)
	require.NoError(t, err)
	require.NoError(t, tr.MarkRunning(ctx, execution))
	require.NoError(t, tr.Fail(ctx, execution, errors.New("no assignees"), -1))

	stored, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, stored.Status)
	assert.Equal(t, "no assignees", stored.Error)
	assert.Nil(t, stored.FailedAction)
	assert.Empty(t, stored.Steps)

	bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.MatchedBy(func(e events.ExecutionCompleted) bool {
		return e.Status == string(models.ExecutionFailed) && e.WorkflowID == "wf-1"
	}))
}

func TestTracker_TerminalIsImmutable(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := setup(t)

	execution, err := tr.Create(ctx, "wf-1", "manual", nil)
	require.NoError(t, err)
	require.NoError(t, tr.MarkRunning(ctx, execution))
	require.NoError(t, tr.Complete(ctx, execution))

	require.ErrorIs(t, tr.Fail(ctx, execution, errors.New("late"), 0), models.ErrExecutionTerminal)
	require.ErrorIs(t, tr.MarkRunning(ctx, execution), models.ErrExecutionTerminal)
}

func TestTracker_PublishFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	tr := New(store.ExecutionRepository(), bus, slog.Default())

	execution, err := tr.Create(ctx, "wf-1", "manual", nil)
	require.NoError(t, err)
	require.NoError(t, tr.MarkRunning(ctx, execution))

	stored, err := store.ExecutionRepository().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, stored.Status)
}

func TestTracker_NilPublisher(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	tr := New(store.ExecutionRepository(), nil, slog.Default())

	execution, err := tr.Create(ctx, "wf-1", "manual", nil)
	require.NoError(t, err)
	require.NoError(t, tr.MarkRunning(ctx, execution))
	require.NoError(t, tr.Complete(ctx, execution))
}
