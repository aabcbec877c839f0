package engine

import (
	"errors"
	"fmt"

	"github.com/dukex/orderflow/pkg/distributor"
	"github.com/dukex/orderflow/pkg/models"
)

var (
	// ErrNoAssignees fails an execution before any action runs.
	ErrNoAssignees = distributor.ErrNoAssignees
	// ErrWorkflowGone fails a suspended execution whose workflow was deleted.
	ErrWorkflowGone  = errors.New("workflow no longer exists")
	ErrUnknownAction = errors.New("action kind is not registered")
	ErrStopped       = errors.New("orchestrator is stopped")
)

// DispatchError reports a configuration problem found before the first
// action ran. The execution fails with no steps.
type DispatchError struct {
	Index int
	Kind  models.ActionKind
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("action %d (%s) cannot be dispatched: %v", e.Index, e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// ActionError reports the action that stopped an execution.
type ActionError struct {
	Index int
	Kind  models.ActionKind
	Err   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
