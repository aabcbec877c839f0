package models

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid execution status transition")
	ErrExecutionTerminal = errors.New("execution already finished")
	ErrWorkflowInactive  = errors.New("workflow is not active")
	ErrUnknownField      = errors.New("unknown condition field")
	ErrUnknownOperator   = errors.New("operator not allowed for field")
	ErrRuleNotFound      = errors.New("condition rule not found")
	ErrUnknownActionKind = errors.New("unknown action kind")
)
