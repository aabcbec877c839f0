// Package tracker persists execution state changes and announces them on the
// event bus.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/orderflow/pkg/eventbus"
	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/google/uuid"
)

// Tracker owns every status change of an execution. A change is persisted
// first and published second; a failed publish is logged and never undoes
// the stored state.
type Tracker struct {
	repository persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger

	now func() time.Time
}

// New returns a Tracker. publisher may be nil, in which case no
// notifications are sent.
func New(repository persistence.ExecutionRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *Tracker {
	return &Tracker{
		repository: repository,
		publisher:  publisher,
		logger:     logger.With("component", "tracker"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now

	return t
}

func (t *Tracker) Now() time.Time {
	return t.now()
}

// Create stores a new pending execution.
func (t *Tracker) Create(ctx context.Context, workflowID, trigger string, input map[string]any) (*models.WorkflowExecution, error) {
	execution := models.NewExecution(uuid.New().String(), workflowID, trigger, input, t.now())

	if err := t.repository.Save(ctx, execution); err != nil {
		return nil, persistence.NewExecutionError("create", execution.ID, err)
	}

	t.logger.DebugContext(ctx, "Execution created", "executionId", execution.ID, "workflowId", workflowID, "trigger", trigger)

	return execution, nil
}

// MarkRunning moves a pending execution to running and publishes
// workflow:execution_started.
func (t *Tracker) MarkRunning(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := execution.Start(); err != nil {
		return err
	}

	if err := t.repository.Save(ctx, execution); err != nil {
		return persistence.NewExecutionError("start", execution.ID, err)
	}

	t.logger.InfoContext(ctx, "Execution started", "executionId", execution.ID, "workflowId", execution.WorkflowID)
	t.publish(ctx, execution.ID, events.NewExecutionStarted(execution.WorkflowID, execution.ID))

	return nil
}

// Checkpoint persists the steps and cursor of a running execution.
func (t *Tracker) Checkpoint(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := t.repository.Save(ctx, execution); err != nil {
		return persistence.NewExecutionError("checkpoint", execution.ID, err)
	}

	return nil
}

// Complete finishes the execution successfully and publishes
// workflow:execution_completed.
func (t *Tracker) Complete(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := execution.Complete(t.now()); err != nil {
		return err
	}

	return t.finish(ctx, execution)
}

// Fail finishes the execution with cause and publishes
// workflow:execution_completed. actionIndex is -1 when the failure happened
// before any action ran.
func (t *Tracker) Fail(ctx context.Context, execution *models.WorkflowExecution, cause error, actionIndex int) error {
	if err := execution.Fail(t.now(), cause, actionIndex); err != nil {
		return err
	}

	return t.finish(ctx, execution)
}

func (t *Tracker) finish(ctx context.Context, execution *models.WorkflowExecution) error {
	if err := t.repository.Save(ctx, execution); err != nil {
		return persistence.NewExecutionError("finish", execution.ID, err)
	}

	t.logger.InfoContext(ctx, "Execution finished",
		"executionId", execution.ID,
		"workflowId", execution.WorkflowID,
		"status", execution.Status,
		"steps", len(execution.Steps),
	)

	t.publish(ctx, execution.ID,
		events.NewExecutionCompleted(execution.WorkflowID, execution.ID, string(execution.Status)))

	return nil
}

func (t *Tracker) publish(ctx context.Context, key string, event eventbus.Event) {
	if t.publisher == nil {
		return
	}

	if err := t.publisher.Publish(ctx, key, event); err != nil {
		t.logger.ErrorContext(ctx, "Failed to publish execution event",
			"executionId", key,
			"eventType", event.GetType(),
			"error", err,
		)
	}
}
