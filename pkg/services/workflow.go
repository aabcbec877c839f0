package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/dukex/orderflow/pkg/templates"
	"github.com/dukex/orderflow/pkg/triggers/webhook"
	"github.com/dukex/orderflow/pkg/validation"
	"github.com/google/uuid"
)

// DefinitionCache is told when stored definitions change.
type DefinitionCache interface {
	InvalidateDefinitions()
}

type Workflow struct {
	persistence persistence.Persistence
	validator   *validation.Validator
	cache       DefinitionCache
}

// NewWorkflow creates a new workflow service. cache may be nil.
func NewWorkflow(persistence persistence.Persistence, validator *validation.Validator, cache DefinitionCache) *Workflow {
	return &Workflow{
		persistence: persistence,
		validator:   validator,
		cache:       cache,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit  int
	Offset int

	ActiveOnly  bool
	TriggerKind models.TriggerKind
	Category    string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.WorkflowDefinition `json:"workflows"`
	TotalCount  int                          `json:"totalCount"`
	HasNextPage bool                         `json:"hasNextPage"`
}

// ListWorkflows retrieves workflows with filtering and pagination, newest first.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if req.Offset < 0 {
		return nil, NewValidationError("ListWorkflows", "INVALID_OFFSET", "offset must not be negative", ErrInvalidRequest)
	}

	opts := persistence.ListWorkflowsOptions{
		ActiveOnly:  req.ActiveOnly,
		TriggerKind: req.TriggerKind,
		Category:    req.Category,
		Limit:       persistence.NormalizeLimit(req.Limit),
		Offset:      req.Offset,
	}

	result, err := w.persistence.WorkflowRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: opts.Offset+len(result.Workflows) < result.TotalCount,
	}, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create validates and stores a new workflow. Invalid definitions are
// rejected with validation.Errors and nothing is stored.
func (w *Workflow) Create(ctx context.Context, workflow *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	workflow.Normalize()

	if err := w.validator.Workflow(workflow); err != nil {
		return nil, err
	}

	if err := w.checkWebhookPath(ctx, "", workflow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.invalidate()

	return workflow, nil
}

// Seed stores definitions that carry their own id. Definitions whose id is
// already stored are left untouched, so seeding the same file twice is a
// no-op. It returns how many workflows were created.
func (w *Workflow) Seed(ctx context.Context, definitions []*models.WorkflowDefinition) (int, error) {
	created := 0

	for _, workflow := range definitions {
		_, err := w.persistence.WorkflowRepository().GetByID(ctx, workflow.ID)
		if err == nil {
			continue
		}

		if !persistence.IsWorkflowNotFound(err) {
			return created, err
		}

		workflow.Normalize()

		if err := w.validator.Workflow(workflow); err != nil {
			return created, fmt.Errorf("workflow %s: %w", workflow.ID, err)
		}

		if err := w.checkWebhookPath(ctx, workflow.ID, workflow); err != nil {
			return created, err
		}

		now := time.Now().UTC()
		workflow.CreatedAt = now
		workflow.UpdatedAt = now

		if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
			return created, fmt.Errorf("failed to seed workflow %s: %w", workflow.ID, err)
		}

		created++
	}

	if created > 0 {
		w.invalidate()
	}

	return created, nil
}

// CreateFromTemplate stores an inactive copy of a prebuilt template.
func (w *Workflow) CreateFromTemplate(ctx context.Context, templateID string) (*models.WorkflowDefinition, error) {
	workflow, err := templates.Instantiate(templateID)
	if err != nil {
		return nil, err
	}

	return w.Create(ctx, workflow)
}

// Update replaces a whole workflow document.
func (w *Workflow) Update(
	ctx context.Context,
	workflowID string,
	workflow *models.WorkflowDefinition,
) (*models.WorkflowDefinition, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	workflow.Normalize()

	if err := w.validator.Workflow(workflow); err != nil {
		return nil, err
	}

	if err := w.checkWebhookPath(ctx, workflowID, workflow); err != nil {
		return nil, err
	}

	workflow.ID = workflowID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.invalidate()

	return workflow, nil
}

// SetActive switches a workflow on or off. Executions already in flight are
// not affected.
func (w *Workflow) SetActive(ctx context.Context, workflowID string, active bool) (*models.WorkflowDefinition, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.IsActive == active {
		return workflow, nil
	}

	if active {
		if err := w.checkWebhookPath(ctx, workflowID, workflow); err != nil {
			return nil, err
		}
	}

	workflow.IsActive = active
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow status: %w", err)
	}

	w.invalidate()

	return workflow, nil
}

// Delete removes a workflow by its ID. Its executions are kept.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	if err := w.persistence.WorkflowRepository().Delete(ctx, workflowID); err != nil {
		return err
	}

	w.invalidate()

	return nil
}

// checkWebhookPath rejects an active webhook workflow whose path is already
// served by another active workflow.
func (w *Workflow) checkWebhookPath(ctx context.Context, selfID string, workflow *models.WorkflowDefinition) error {
	if !workflow.IsActive || workflow.Trigger.Kind != models.TriggerWebhook {
		return nil
	}

	path := webhook.Path(workflow.Trigger)

	listeners, err := webhookListeners(ctx, w.persistence.WorkflowRepository(), path)
	if err != nil {
		return err
	}

	for _, other := range listeners {
		if other.ID != selfID {
			return NewConflictError("checkWebhookPath", "WEBHOOK_PATH_TAKEN",
				fmt.Sprintf("webhook path %q is used by workflow %s", path, other.ID), ErrWebhookPathTaken)
		}
	}

	return nil
}

func (w *Workflow) invalidate() {
	if w.cache != nil {
		w.cache.InvalidateDefinitions()
	}
}

// webhookListeners returns the active webhook workflows serving path.
func webhookListeners(ctx context.Context, repo persistence.WorkflowRepository, path string) ([]*models.WorkflowDefinition, error) {
	var out []*models.WorkflowDefinition

	opts := persistence.ListWorkflowsOptions{
		ActiveOnly:  true,
		TriggerKind: models.TriggerWebhook,
		Limit:       persistence.MaxListLimit,
	}

	for {
		page, err := repo.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list webhook workflows: %w", err)
		}

		for _, workflow := range page.Workflows {
			if webhook.Path(workflow.Trigger) == path {
				out = append(out, workflow)
			}
		}

		opts.Offset += len(page.Workflows)

		if len(page.Workflows) == 0 || opts.Offset >= page.TotalCount {
			return out, nil
		}
	}
}
