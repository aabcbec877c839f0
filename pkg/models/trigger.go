package models

// TriggerKind identifies the event class that starts a workflow.
type TriggerKind string

const (
	TriggerRecordCreated    TriggerKind = "record_created"
	TriggerStatusChanged    TriggerKind = "status_changed"
	TriggerPaymentConfirmed TriggerKind = "payment_confirmed"
	TriggerScheduled        TriggerKind = "scheduled"
	TriggerManual           TriggerKind = "manual"
	TriggerWebhook          TriggerKind = "webhook"
)

// Trigger is the start condition of a workflow. The shape of Config depends on Kind.
type Trigger struct {
	Kind   TriggerKind    `json:"kind"             validate:"required"`
	Config map[string]any `json:"config,omitempty"`
}

// ConfigString returns a string config value or fallback when unset.
func (t Trigger) ConfigString(key, fallback string) string {
	if value, ok := t.Config[key].(string); ok && value != "" {
		return value
	}

	return fallback
}
