package models

import (
	"fmt"
	"time"
)

// PollInterval is the cadence at which clients re-fetch execution history
// while an execution is in flight.
const PollInterval = 10 * time.Second

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// CanTransition reports whether moving from s to next is allowed:
// pending -> running -> completed|failed.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	switch s {
	case ExecutionPending:
		return next == ExecutionRunning
	case ExecutionRunning:
		return next == ExecutionCompleted || next == ExecutionFailed
	default:
		return false
	}
}

type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepSkipped   StepStatus = "skipped"
	StepWaiting   StepStatus = "waiting"
	StepFailed    StepStatus = "failed"
)

// StepResult records the outcome of one action of an execution.
type StepResult struct {
	Index       int            `json:"index"`
	ActionID    string         `json:"actionId,omitempty"`
	Kind        ActionKind     `json:"kind"`
	Status      StepStatus     `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CompletedAt time.Time      `json:"completedAt"`
}

// WorkflowExecution is the audit record of one run of a workflow.
type WorkflowExecution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflowId"`
	Trigger      string          `json:"trigger,omitempty"`
	Status       ExecutionStatus `json:"status"`
	Input        map[string]any  `json:"input"`
	Output       map[string]any  `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	FailedAction *int            `json:"failedAction,omitempty"`
	Steps        []StepResult    `json:"steps"`
	NextAction   int             `json:"nextAction"`
	ResumeAt     *time.Time      `json:"resumeAt,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// NewExecution returns a pending execution for the workflow.
func NewExecution(id, workflowID, trigger string, input map[string]any, now time.Time) *WorkflowExecution {
	if input == nil {
		input = map[string]any{}
	}

	return &WorkflowExecution{
		ID:         id,
		WorkflowID: workflowID,
		Trigger:    trigger,
		Status:     ExecutionPending,
		Input:      input,
		Steps:      []StepResult{},
		StartedAt:  now,
	}
}

func (e *WorkflowExecution) IsTerminal() bool {
	return e.Status.IsTerminal()
}

// InFlight reports whether the execution is pending or running.
func (e *WorkflowExecution) InFlight() bool {
	return e.Status == ExecutionPending || e.Status == ExecutionRunning
}

// IsWaiting reports whether the execution is suspended by a wait action.
func (e *WorkflowExecution) IsWaiting() bool {
	return e.Status == ExecutionRunning && e.ResumeAt != nil
}

// Start moves a pending execution to running.
func (e *WorkflowExecution) Start() error {
	return e.transition(ExecutionRunning)
}

// Record appends a step result and advances the cursor past it.
func (e *WorkflowExecution) Record(step StepResult) error {
	if e.Status != ExecutionRunning {
		return fmt.Errorf("%w: cannot record step while %s", ErrInvalidTransition, e.Status)
	}

	e.Steps = append(e.Steps, step)
	e.NextAction = step.Index + 1

	return nil
}

// Suspend parks a running execution until resumeAt.
func (e *WorkflowExecution) Suspend(resumeAt time.Time) error {
	if e.Status != ExecutionRunning {
		return fmt.Errorf("%w: cannot suspend while %s", ErrInvalidTransition, e.Status)
	}

	e.ResumeAt = &resumeAt

	return nil
}

// Resume clears a pending suspension.
func (e *WorkflowExecution) Resume() {
	e.ResumeAt = nil
}

// Complete finishes the execution successfully.
func (e *WorkflowExecution) Complete(now time.Time) error {
	if err := e.transition(ExecutionCompleted); err != nil {
		return err
	}

	e.finish(now)

	return nil
}

// Fail finishes the execution with cause. actionIndex is -1 when no action
// was attempted.
func (e *WorkflowExecution) Fail(now time.Time, cause error, actionIndex int) error {
	if err := e.transition(ExecutionFailed); err != nil {
		return err
	}

	if cause != nil {
		e.Error = cause.Error()
	}

	if actionIndex >= 0 {
		index := actionIndex
		e.FailedAction = &index
	}

	e.finish(now)

	return nil
}

func (e *WorkflowExecution) finish(now time.Time) {
	e.ResumeAt = nil
	e.CompletedAt = &now
	e.Output = map[string]any{
		"steps":  e.Steps,
		"result": e.lastResult(),
	}
}

func (e *WorkflowExecution) lastResult() map[string]any {
	for i := len(e.Steps) - 1; i >= 0; i-- {
		if e.Steps[i].Status == StepSucceeded || e.Steps[i].Status == StepWaiting {
			return e.Steps[i].Result
		}
	}

	return nil
}

func (e *WorkflowExecution) transition(next ExecutionStatus) error {
	if e.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrExecutionTerminal, e.Status)
	}

	if !e.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, next)
	}

	e.Status = next

	return nil
}

// ShouldPoll reports whether a client watching these executions must keep
// re-fetching, which is the case while any of them is pending or running.
func ShouldPoll(executions []*WorkflowExecution) bool {
	for _, execution := range executions {
		if execution.InFlight() {
			return true
		}
	}

	return false
}
