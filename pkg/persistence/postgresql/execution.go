package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/persistence"
)

const executionColumns = `id, workflow_id, trigger, status, input, output, error_message, failed_action,
	steps, next_action, resume_at, started_at, completed_at`

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts the execution. The update is skipped for rows that already
// reached a terminal status, which is reported as models.ErrExecutionTerminal.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	input, err := json.Marshal(orEmpty(execution.Input))
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to marshal input: %w", err))
	}

	var output []byte
	if execution.Output != nil {
		output, err = json.Marshal(execution.Output)
		if err != nil {
			return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to marshal output: %w", err))
		}
	}

	steps := execution.Steps
	if steps == nil {
		steps = []models.StepResult{}
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to marshal steps: %w", err))
	}

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			output = EXCLUDED.output,
			error_message = EXCLUDED.error_message,
			failed_action = EXCLUDED.failed_action,
			steps = EXCLUDED.steps,
			next_action = EXCLUDED.next_action,
			resume_at = EXCLUDED.resume_at,
			completed_at = EXCLUDED.completed_at
		WHERE workflow_executions.status NOT IN ('completed', 'failed')
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Trigger,
		execution.Status,
		input,
		output,
		execution.Error,
		execution.FailedAction,
		stepsJSON,
		execution.NextAction,
		execution.ResumeAt,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to save execution: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Save", execution.ID, models.ErrExecutionTerminal)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM workflow_executions WHERE id = $1`, id)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, opts persistence.ListExecutionsOptions) (*persistence.ExecutionListResult, error) {
	var total int

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflow_executions WHERE workflow_id = $1`, opts.WorkflowID,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count executions: %w", err)
	}

	executions, err := r.query(ctx, `
		SELECT `+executionColumns+`
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		opts.WorkflowID, persistence.NormalizeLimit(opts.Limit), max(opts.Offset, 0),
	)
	if err != nil {
		return nil, err
	}

	return &persistence.ExecutionListResult{Executions: executions, TotalCount: total}, nil
}

func (r *ExecutionRepository) ListDueResumptions(ctx context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = persistence.MaxListLimit
	}

	return r.query(ctx, `
		SELECT `+executionColumns+`
		FROM workflow_executions
		WHERE status = 'running' AND resume_at IS NOT NULL AND resume_at <= $1
		ORDER BY resume_at
		LIMIT $2`,
		now, limit,
	)
}

func (r *ExecutionRepository) ClaimResumption(ctx context.Context, id string, resumeAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET resume_at = NULL
		WHERE id = $1 AND status = 'running' AND resume_at = $2`,
		id, resumeAt,
	)
	if err != nil {
		return false, persistence.NewExecutionError("ClaimResumption", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewExecutionError("ClaimResumption", id, err)
	}

	return affected == 1, nil
}

func (r *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row scanner) (*models.WorkflowExecution, error) {
	var (
		execution    models.WorkflowExecution
		input        []byte
		output       []byte
		steps        []byte
		failedAction sql.NullInt64
		resumeAt     sql.NullTime
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Trigger,
		&execution.Status,
		&input,
		&output,
		&execution.Error,
		&failedAction,
		&steps,
		&execution.NextAction,
		&resumeAt,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(input, &execution.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}

	if len(output) > 0 {
		if err := json.Unmarshal(output, &execution.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	if err := json.Unmarshal(steps, &execution.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if failedAction.Valid {
		index := int(failedAction.Int64)
		execution.FailedAction = &index
	}

	if resumeAt.Valid {
		t := resumeAt.Time.UTC()
		execution.ResumeAt = &t
	}

	if completedAt.Valid {
		t := completedAt.Time.UTC()
		execution.CompletedAt = &t
	}

	execution.StartedAt = execution.StartedAt.UTC()

	return &execution, nil
}
