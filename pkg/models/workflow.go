package models

import "time"

// WorkflowDefinition declares when a workflow fires, which conditions gate it
// and the ordered actions it performs. It owns its actions exclusively and is
// only ever replaced as a whole document.
type WorkflowDefinition struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"                 validate:"required,max=200"`
	Description string           `json:"description"`
	Category    string           `json:"category,omitempty"`
	IsActive    bool             `json:"isActive"`
	Trigger     Trigger          `json:"trigger"`
	Conditions  *ConditionGroup  `json:"conditions,omitempty"`
	Actions     []WorkflowAction `json:"actions"              validate:"required,min=1"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Normalize collapses empty condition groups to nil, at the workflow and the
// action level.
func (w *WorkflowDefinition) Normalize() {
	w.Conditions = w.Conditions.Normalize()

	for i := range w.Actions {
		w.Actions[i].Conditions = w.Actions[i].Conditions.Normalize()
	}
}
