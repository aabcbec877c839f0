// Package persistence provides the storage abstraction for workflow
// definitions and their executions.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/orderflow/pkg/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters and pages workflow listings. Results are
// ordered by creation time, newest first.
type ListWorkflowsOptions struct {
	ActiveOnly  bool
	TriggerKind models.TriggerKind
	Category    string
	Limit       int
	Offset      int
}

type WorkflowListResult struct {
	Workflows  []*models.WorkflowDefinition
	TotalCount int
}

type WorkflowRepository interface {
	// Save inserts or replaces the whole definition.
	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
	// GetByID returns ErrWorkflowNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	// Delete returns ErrWorkflowNotFound for unknown ids.
	Delete(ctx context.Context, id string) error
}

// ListExecutionsOptions pages the executions of one workflow. Results are
// ordered by start time, newest first.
type ListExecutionsOptions struct {
	WorkflowID string
	Limit      int
	Offset     int
}

type ExecutionListResult struct {
	Executions []*models.WorkflowExecution
	TotalCount int
}

type ExecutionRepository interface {
	// Save inserts or updates an execution. Once stored as completed or
	// failed, an execution is immutable and Save returns
	// models.ErrExecutionTerminal.
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	// GetByID returns ErrExecutionNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, opts ListExecutionsOptions) (*ExecutionListResult, error)
	// ListDueResumptions returns suspended executions whose resume time is
	// not after now, oldest first.
	ListDueResumptions(ctx context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error)
	// ClaimResumption clears the suspension of an execution if it is still
	// suspended until resumeAt. Only one caller wins a given suspension.
	ClaimResumption(ctx context.Context, id string, resumeAt time.Time) (bool, error)
}

// NormalizeLimit applies the default and upper bound to a page size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}

	return min(limit, MaxListLimit)
}
