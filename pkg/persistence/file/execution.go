package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/persistence"
)

// ExecutionRepository handles execution-related file operations.
type ExecutionRepository struct {
	dir string
	mu  sync.RWMutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{dir: filepath.Join(root, "executions")}
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	if err := validateID(execution.ID); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.load(execution.ID)
	if err == nil && stored.IsTerminal() {
		return persistence.NewExecutionError("Save", execution.ID, models.ErrExecutionTerminal)
	}

	if err != nil && !errors.Is(err, persistence.ErrExecutionNotFound) {
		return err
	}

	if err := writeDocument(er.dir, execution.ID, execution); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.load(id)
}

func (er *ExecutionRepository) ListByWorkflow(_ context.Context, opts persistence.ListExecutionsOptions) (*persistence.ExecutionListResult, error) {
	all, err := er.all(func(e *models.WorkflowExecution) bool { return e.WorkflowID == opts.WorkflowID })
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].StartedAt.After(all[j].StartedAt)
	})

	return &persistence.ExecutionListResult{
		Executions: page(all, opts.Offset, opts.Limit),
		TotalCount: len(all),
	}, nil
}

func (er *ExecutionRepository) ListDueResumptions(_ context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error) {
	due, err := er.all(func(e *models.WorkflowExecution) bool {
		return e.IsWaiting() && !e.ResumeAt.After(now)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(*due[j].ResumeAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (er *ExecutionRepository) ClaimResumption(_ context.Context, id string, resumeAt time.Time) (bool, error) {
	if err := validateID(id); err != nil {
		return false, persistence.NewExecutionError("ClaimResumption", id, persistence.ErrExecutionNotFound)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.load(id)
	if err != nil {
		return false, err
	}

	if !execution.IsWaiting() || !execution.ResumeAt.Equal(resumeAt) {
		return false, nil
	}

	execution.Resume()

	if err := writeDocument(er.dir, id, execution); err != nil {
		return false, persistence.NewExecutionError("ClaimResumption", id, err)
	}

	return true, nil
}

func (er *ExecutionRepository) all(keep func(*models.WorkflowExecution) bool) ([]*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	ids, err := listIDs(er.dir)
	if err != nil {
		return nil, err
	}

	out := make([]*models.WorkflowExecution, 0)

	for _, id := range ids {
		execution, err := er.load(id)
		if err != nil {
			return nil, err
		}

		if keep(execution) {
			out = append(out, execution)
		}
	}

	return out, nil
}

func (er *ExecutionRepository) load(id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	err := readDocument(er.dir, id, &execution)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, fmt.Errorf("failed to read execution: %w", err))
	}

	return &execution, nil
}
