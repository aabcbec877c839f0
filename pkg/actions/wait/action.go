// Package wait implements the wait action. The action itself returns at
// once; the engine parks the execution and resumes it when the delay ends.
package wait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/protocol"
)

// MaxDuration bounds a single wait.
const MaxDuration = 30 * 24 * time.Hour

var ErrInvalidDuration = errors.New("wait duration must be positive and at most 30 days")

type Action struct {
	duration time.Duration
}

func NewAction(config *models.WaitConfig) (*Action, error) {
	d := config.Duration.Std()
	if d <= 0 || d > MaxDuration {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidDuration, d)
	}

	return &Action{duration: d}, nil
}

func (a *Action) Execute(ctx context.Context, _ protocol.ActionRequest, logger *slog.Logger) (protocol.ActionResult, error) {
	logger.InfoContext(ctx, "Suspending execution", "module", "wait_action", "duration", a.duration)

	return protocol.ActionResult{
		Output:      map[string]any{"waitedFor": a.duration.String()},
		ResumeAfter: a.duration,
	}, nil
}

type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) Create(_ context.Context, config models.ActionConfig) (protocol.Action, error) {
	cfg, ok := config.(*models.WaitConfig)
	if !ok {
		return nil, fmt.Errorf("%w: expected wait config, got %T", protocol.ErrInvalidConfig, config)
	}

	return NewAction(cfg)
}

func (*ActionFactory) ID() string { return string(models.ActionWait) }

func (*ActionFactory) Name() string { return "Wait" }

func (*ActionFactory) Description() string {
	return "Pauses the workflow before the next action. The pause survives restarts."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration": map[string]any{
				"type":        []string{"string", "integer"},
				"description": "Go duration string, or milliseconds when a number",
				"examples":    []any{"15m", "2h", "24h", 60000},
			},
		},
		"required":             []string{"duration"},
		"additionalProperties": false,
	}
}
