package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/otelhelper"
	"github.com/dukex/orderflow/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (o *Orchestrator) run(ctx context.Context, workflow *models.WorkflowDefinition, execution *models.WorkflowExecution) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.execute", o.spanAttributes(workflow, execution)...)
	defer span.End()

	logger := o.logger.With("workflowId", workflow.ID, "executionId", execution.ID)

	if err := o.tracker.MarkRunning(ctx, execution); err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to start execution", "error", err)

		return
	}

	if err := preflight(workflow, execution.Input); err != nil {
		otelhelper.SetError(span, err)
		logger.WarnContext(ctx, "Execution cannot be dispatched", "error", err)

		if err := o.tracker.Fail(ctx, execution, err, -1); err != nil {
			logger.ErrorContext(ctx, "Failed to record dispatch failure", "error", err)
		}

		return
	}

	o.proceed(ctx, span, logger, workflow, execution)
}

func (o *Orchestrator) resume(ctx context.Context, workflow *models.WorkflowDefinition, execution *models.WorkflowExecution) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.resume", o.spanAttributes(workflow, execution)...)
	defer span.End()

	logger := o.logger.With("workflowId", workflow.ID, "executionId", execution.ID)
	logger.InfoContext(ctx, "Resuming execution", "nextAction", execution.NextAction)

	o.proceed(ctx, span, logger, workflow, execution)
}

// proceed runs the actions from the execution cursor until the sequence
// ends, an action fails or a wait suspends it.
func (o *Orchestrator) proceed(ctx context.Context, span trace.Span, logger *slog.Logger, workflow *models.WorkflowDefinition, execution *models.WorkflowExecution) {
	for index := execution.NextAction; index < len(workflow.Actions); index++ {
		action := workflow.Actions[index]

		step := models.StepResult{Index: index, ActionID: action.ID, Kind: action.Kind}

		if !action.Conditions.Matches(execution.Input) {
			step.Status = models.StepSkipped
			step.CompletedAt = o.tracker.Now()

			logger.DebugContext(ctx, "Action conditions not met, skipping", "index", index, "kind", action.Kind)

			if !o.checkpoint(ctx, logger, execution, step) {
				return
			}

			continue
		}

		result, err := o.runAction(ctx, logger, workflow, execution, index)
		step.CompletedAt = o.tracker.Now()

		if err != nil {
			actionErr := &ActionError{Index: index, Kind: action.Kind, Err: err}

			step.Status = models.StepFailed
			step.Error = err.Error()

			otelhelper.SetError(span, actionErr, attribute.Int(otelhelper.ActionIndexKey, index))
			logger.WarnContext(ctx, "Action failed, stopping execution", "index", index, "kind", action.Kind, "error", err)

			if err := execution.Record(step); err != nil {
				logger.ErrorContext(ctx, "Failed to record failed step", "error", err)
			}

			if err := o.tracker.Fail(ctx, execution, actionErr, index); err != nil {
				logger.ErrorContext(ctx, "Failed to record action failure", "error", err)
			}

			return
		}

		step.Result = result.Output

		if result.ResumeAfter > 0 {
			o.suspend(ctx, logger, execution, step, result.ResumeAfter)

			return
		}

		step.Status = models.StepSucceeded

		if !o.checkpoint(ctx, logger, execution, step) {
			return
		}
	}

	if err := o.tracker.Complete(ctx, execution); err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to complete execution", "error", err)
	}
}

// suspend records a wait step and parks the execution until the wait
// elapses. Resume times are kept at microsecond precision so they survive a
// round trip through the store unchanged.
func (o *Orchestrator) suspend(ctx context.Context, logger *slog.Logger, execution *models.WorkflowExecution, step models.StepResult, wait time.Duration) {
	step.Status = models.StepWaiting
	resumeAt := step.CompletedAt.Add(wait).Truncate(time.Microsecond)

	if err := execution.Record(step); err != nil {
		logger.ErrorContext(ctx, "Failed to record wait step", "error", err)

		return
	}

	if err := execution.Suspend(resumeAt); err != nil {
		logger.ErrorContext(ctx, "Failed to suspend execution", "error", err)

		return
	}

	if err := o.tracker.Checkpoint(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist suspension", "error", err)

		return
	}

	logger.InfoContext(ctx, "Execution suspended", "resumeAt", resumeAt, "nextAction", execution.NextAction)
}

func (o *Orchestrator) checkpoint(ctx context.Context, logger *slog.Logger, execution *models.WorkflowExecution, step models.StepResult) bool {
	if err := execution.Record(step); err != nil {
		logger.ErrorContext(ctx, "Failed to record step", "index", step.Index, "error", err)

		return false
	}

	if err := o.tracker.Checkpoint(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist step", "index", step.Index, "error", err)

		return false
	}

	return true
}

func (o *Orchestrator) runAction(
	ctx context.Context,
	logger *slog.Logger,
	workflow *models.WorkflowDefinition,
	execution *models.WorkflowExecution,
	index int,
) (protocol.ActionResult, error) {
	action := workflow.Actions[index]

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "action.execute",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.ActionIDKey, action.ID),
		attribute.String(otelhelper.ActionKindKey, string(action.Kind)),
		attribute.Int(otelhelper.ActionIndexKey, index),
	)
	defer span.End()

	factory, ok := o.catalog.Action(action.Kind)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownAction, action.Kind)
		otelhelper.SetError(span, err)

		return protocol.ActionResult{}, err
	}

	config := action.Config
	if renderable, ok := config.(models.Renderable); ok {
		config = renderable.Render(execution.Input)
	}

	handler, err := factory.Create(ctx, config)
	if err != nil {
		otelhelper.SetError(span, err)

		return protocol.ActionResult{}, err
	}

	result, err := handler.Execute(ctx, protocol.ActionRequest{
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		ActionID:    action.ID,
		Index:       index,
		Input:       execution.Input,
	}, logger.With("index", index, "kind", action.Kind))
	if err != nil {
		otelhelper.SetError(span, err)

		return protocol.ActionResult{}, err
	}

	return result, nil
}

// preflight rejects executions that cannot dispatch before any side effect
// happens: an assign_user action that would run without assignees.
func preflight(workflow *models.WorkflowDefinition, input map[string]any) error {
	for index, action := range workflow.Actions {
		config, ok := action.Config.(*models.AssignUserConfig)
		if !ok || len(config.Assignments) > 0 {
			continue
		}

		if !action.Conditions.Matches(input) {
			continue
		}

		return &DispatchError{Index: index, Kind: action.Kind, Err: ErrNoAssignees}
	}

	return nil
}
