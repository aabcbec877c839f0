// Package engine matches trigger events against active workflows and runs
// the actions of every matching workflow in order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/otelhelper"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/dukex/orderflow/pkg/tracker"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxConcurrent = 16
	resumeBatchSize      = 100
	activeWorkflowsKey   = "active-workflows"
)

type Options struct {
	// MaxConcurrent bounds the executions running at once.
	MaxConcurrent int64
	// CacheTTL keeps the list of active workflows in memory. Zero disables
	// the cache.
	CacheTTL time.Duration
	Tracer   trace.Tracer
}

type Orchestrator struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	catalog    *catalog.Catalog
	tracker    *tracker.Tracker
	logger     *slog.Logger
	tracer     trace.Tracer

	definitions *cache.Cache
	pool        *semaphore.Weighted
	running     sync.WaitGroup
	stopped     atomic.Bool
}

func New(
	store persistence.Persistence,
	c *catalog.Catalog,
	t *tracker.Tracker,
	logger *slog.Logger,
	opts Options,
) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}

	if opts.Tracer == nil {
		opts.Tracer = otelhelper.Tracer("orderflow/engine")
	}

	o := &Orchestrator{
		workflows:  store.WorkflowRepository(),
		executions: store.ExecutionRepository(),
		catalog:    c,
		tracker:    t,
		logger:     logger.With("module", "engine"),
		tracer:     opts.Tracer,
		pool:       semaphore.NewWeighted(opts.MaxConcurrent),
	}

	if opts.CacheTTL > 0 {
		o.definitions = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	return o
}

// HandleEvent starts one execution for every active workflow whose trigger
// matches event and whose conditions hold for its payload. It returns the
// ids of the started executions.
func (o *Orchestrator) HandleEvent(ctx context.Context, event events.TriggerEvent) ([]string, error) {
	logger := o.logger.With("eventId", event.ID, "eventType", event.Type)

	workflows, err := o.activeWorkflows(ctx)
	if err != nil {
		return nil, err
	}

	started := []string{}

	for _, workflow := range workflows {
		factory, ok := o.catalog.Trigger(workflow.Trigger.Kind)
		if !ok {
			logger.WarnContext(ctx, "Workflow has an unregistered trigger", "workflowId", workflow.ID, "triggerKind", workflow.Trigger.Kind)

			continue
		}

		if !factory.Match(workflow.Trigger, event) {
			continue
		}

		if !workflow.Conditions.Matches(event.Payload) {
			logger.DebugContext(ctx, "Conditions not met", "workflowId", workflow.ID)

			continue
		}

		id, err := o.start(ctx, workflow, string(event.Type), event.Payload)
		if err != nil {
			return started, err
		}

		started = append(started, id)
	}

	if len(started) > 0 {
		logger.InfoContext(ctx, "Event started executions", "executions", len(started))
	}

	return started, nil
}

// Trigger starts workflow for input if its conditions hold. It reports
// whether an execution was started.
func (o *Orchestrator) Trigger(ctx context.Context, workflow *models.WorkflowDefinition, trigger string, input map[string]any) (string, bool, error) {
	if !workflow.IsActive {
		return "", false, nil
	}

	if !workflow.Conditions.Matches(input) {
		return "", false, nil
	}

	id, err := o.start(ctx, workflow, trigger, input)
	if err != nil {
		return "", false, err
	}

	return id, true, nil
}

// Execute runs an active workflow on demand. Workflow conditions are not
// evaluated; per-action conditions still apply.
func (o *Orchestrator) Execute(ctx context.Context, workflowID string, input map[string]any) (string, error) {
	workflow, err := o.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	if !workflow.IsActive {
		return "", fmt.Errorf("%w: %s", models.ErrWorkflowInactive, workflowID)
	}

	return o.start(ctx, workflow, string(models.TriggerManual), input)
}

// ResumeDue continues executions whose wait has elapsed at now. Each
// suspension is claimed before it runs, so concurrent pollers never resume
// the same execution twice.
func (o *Orchestrator) ResumeDue(ctx context.Context, now time.Time) (int, error) {
	due, err := o.executions.ListDueResumptions(ctx, now, resumeBatchSize)
	if err != nil {
		return 0, err
	}

	resumed := 0

	for _, execution := range due {
		if o.stopped.Load() {
			return resumed, ErrStopped
		}

		if err := o.pool.Acquire(ctx, 1); err != nil {
			return resumed, err
		}

		workflow, err := o.claim(ctx, execution)
		if err != nil || workflow == nil {
			o.pool.Release(1)

			if err != nil {
				return resumed, err
			}

			continue
		}

		o.spawn(ctx, func(runCtx context.Context) {
			o.resume(runCtx, workflow, execution)
		})

		resumed++
	}

	return resumed, nil
}

// claim takes the suspension of execution and loads its workflow. It returns
// a nil workflow when another poller won the claim or the workflow is gone.
func (o *Orchestrator) claim(ctx context.Context, execution *models.WorkflowExecution) (*models.WorkflowDefinition, error) {
	if execution.ResumeAt == nil {
		return nil, nil
	}

	claimed, err := o.executions.ClaimResumption(ctx, execution.ID, *execution.ResumeAt)
	if err != nil || !claimed {
		return nil, err
	}

	execution.Resume()

	workflow, err := o.workflows.GetByID(ctx, execution.WorkflowID)
	if err == nil {
		return workflow, nil
	}

	if !persistence.IsWorkflowNotFound(err) {
		return nil, err
	}

	o.logger.WarnContext(ctx, "Suspended execution lost its workflow", "executionId", execution.ID, "workflowId", execution.WorkflowID)

	return nil, o.tracker.Fail(ctx, execution, ErrWorkflowGone, -1)
}

// InvalidateDefinitions drops the cached list of active workflows.
func (o *Orchestrator) InvalidateDefinitions() {
	if o.definitions != nil {
		o.definitions.Delete(activeWorkflowsKey)
	}
}

// Wait blocks until every dispatched execution returned or suspended.
func (o *Orchestrator) Wait() {
	o.running.Wait()
}

// Shutdown stops accepting executions and waits for the running ones or
// for ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stopped.Store(true)

	done := make(chan struct{})

	go func() {
		o.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) start(ctx context.Context, workflow *models.WorkflowDefinition, trigger string, input map[string]any) (string, error) {
	if o.stopped.Load() {
		return "", ErrStopped
	}

	if err := o.pool.Acquire(ctx, 1); err != nil {
		return "", err
	}

	execution, err := o.tracker.Create(ctx, workflow.ID, trigger, input)
	if err != nil {
		o.pool.Release(1)

		return "", err
	}

	o.spawn(ctx, func(runCtx context.Context) {
		o.run(runCtx, workflow, execution)
	})

	return execution.ID, nil
}

// spawn runs fn on a slot already taken from the pool. The run outlives the
// request or message that started it.
func (o *Orchestrator) spawn(ctx context.Context, fn func(context.Context)) {
	runCtx := context.WithoutCancel(ctx)

	o.running.Add(1)

	go func() {
		defer o.running.Done()
		defer o.pool.Release(1)

		fn(runCtx)
	}()
}

func (o *Orchestrator) activeWorkflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	if o.definitions != nil {
		if cached, ok := o.definitions.Get(activeWorkflowsKey); ok {
			return cached.([]*models.WorkflowDefinition), nil
		}
	}

	var workflows []*models.WorkflowDefinition

	opts := persistence.ListWorkflowsOptions{ActiveOnly: true, Limit: persistence.MaxListLimit}

	for {
		page, err := o.workflows.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list active workflows: %w", err)
		}

		workflows = append(workflows, page.Workflows...)
		opts.Offset += len(page.Workflows)

		if len(page.Workflows) == 0 || opts.Offset >= page.TotalCount {
			break
		}
	}

	if o.definitions != nil {
		o.definitions.SetDefault(activeWorkflowsKey, workflows)
	}

	return workflows, nil
}

func (o *Orchestrator) spanAttributes(workflow *models.WorkflowDefinition, execution *models.WorkflowExecution) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.TriggerKindKey, string(workflow.Trigger.Kind)),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	}
}
