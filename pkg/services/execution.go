package services

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/dukex/orderflow/pkg/triggers/webhook"
)

// Runner starts executions.
type Runner interface {
	Execute(ctx context.Context, workflowID string, input map[string]any) (string, error)
	HandleEvent(ctx context.Context, event events.TriggerEvent) ([]string, error)
}

type Execution struct {
	persistence persistence.Persistence
	runner      Runner
}

func NewExecution(persistence persistence.Persistence, runner Runner) *Execution {
	return &Execution{
		persistence: persistence,
		runner:      runner,
	}
}

// ListExecutionsRequest pages the executions of one workflow. Page starts
// at 1.
type ListExecutionsRequest struct {
	WorkflowID string
	Page       int
	Limit      int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Polling tells clients whether to keep re-fetching the list.
type Polling struct {
	Active          bool `json:"active"`
	IntervalSeconds int  `json:"intervalSeconds"`
}

type ListExecutionsResponse struct {
	Executions []*models.WorkflowExecution `json:"executions"`
	Pagination Pagination                  `json:"pagination"`
	Polling    Polling                     `json:"polling"`
}

// ListExecutions returns one page of a workflow's executions, newest first.
// Executions of deleted workflows stay listable.
func (e *Execution) ListExecutions(ctx context.Context, req ListExecutionsRequest) (*ListExecutionsResponse, error) {
	if req.WorkflowID == "" {
		return nil, NewValidationError("ListExecutions", "WORKFLOW_ID_REQUIRED", "workflow id is required", ErrInvalidRequest)
	}

	if req.Page < 0 || req.Limit < 0 {
		return nil, NewValidationError("ListExecutions", "INVALID_PAGE", "page and limit must not be negative", ErrInvalidRequest)
	}

	page := max(req.Page, 1)
	limit := persistence.NormalizeLimit(req.Limit)

	result, err := e.persistence.ExecutionRepository().ListByWorkflow(ctx, persistence.ListExecutionsOptions{
		WorkflowID: req.WorkflowID,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return &ListExecutionsResponse{
		Executions: result.Executions,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: result.TotalCount,
			Pages: (result.TotalCount + limit - 1) / limit,
		},
		Polling: Polling{
			Active:          models.ShouldPoll(result.Executions),
			IntervalSeconds: int(models.PollInterval.Seconds()),
		},
	}, nil
}

func (e *Execution) FetchByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().GetByID(ctx, id)
}

// Execute starts a manual run of an active workflow and returns the id of
// the pending execution.
func (e *Execution) Execute(ctx context.Context, workflowID string, input map[string]any) (string, error) {
	if input == nil {
		input = map[string]any{}
	}

	id, err := e.runner.Execute(ctx, workflowID, input)
	if err == nil {
		return id, nil
	}

	if IsConflictError(err) {
		return "", NewConflictError("Execute", "WORKFLOW_INACTIVE",
			fmt.Sprintf("workflow %s is not active", workflowID), err)
	}

	return "", err
}

// Webhook turns an inbound call on path into a webhook trigger event. When a
// listening workflow sets a secret, the call must carry it.
func (e *Execution) Webhook(ctx context.Context, path, secret string, payload map[string]any) ([]string, error) {
	listeners, err := webhookListeners(ctx, e.persistence.WorkflowRepository(), path)
	if err != nil {
		return nil, err
	}

	if len(listeners) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrWebhookNotFound, path)
	}

	for _, workflow := range listeners {
		expected := webhook.Secret(workflow.Trigger)
		if expected != "" && subtle.ConstantTimeCompare([]byte(expected), []byte(secret)) != 1 {
			return nil, ErrWebhookUnauthorized
		}
	}

	event := events.NewTriggerEvent(events.WebhookReceivedEvent, payload)
	event.Source = path

	return e.runner.HandleEvent(ctx, event)
}
