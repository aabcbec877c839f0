// Package protocol defines the contracts between the engine and the action
// and trigger kinds it can run.
package protocol

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/orderflow/pkg/models"
)

// ActionRequest carries the context of one action dispatch.
type ActionRequest struct {
	ExecutionID string
	WorkflowID  string
	ActionID    string
	Index       int
	Input       map[string]any
}

// ActionResult is what an action reports back. A positive ResumeAfter
// suspends the execution for that long before the next action runs.
type ActionResult struct {
	Output      map[string]any
	ResumeAfter time.Duration
}

type Action interface {
	Execute(ctx context.Context, req ActionRequest, logger *slog.Logger) (ActionResult, error)
}

type ActionFactory interface {
	ID() string
	Name() string
	Description() string
	Schema() map[string]any
	Create(ctx context.Context, config models.ActionConfig) (Action, error)
}
