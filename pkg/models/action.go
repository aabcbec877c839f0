package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dukex/orderflow/pkg/template"
)

// ActionKind names an action type.
type ActionKind string

const (
	ActionAssignUser   ActionKind = "assign_user"
	ActionSendEmail    ActionKind = "send_email"
	ActionSendSMS      ActionKind = "send_sms"
	ActionUpdateRecord ActionKind = "update_record"
	ActionWait         ActionKind = "wait"
	ActionHTTPCall     ActionKind = "http_call"
)

// BuiltinActionKinds lists the kinds with a typed configuration.
var BuiltinActionKinds = []ActionKind{
	ActionAssignUser,
	ActionSendEmail,
	ActionSendSMS,
	ActionUpdateRecord,
	ActionWait,
	ActionHTTPCall,
}

// ActionConfig is the kind-specific configuration of a WorkflowAction.
type ActionConfig interface {
	ActionKind() ActionKind
}

// Renderable configs substitute {field} placeholders from the trigger payload.
type Renderable interface {
	Render(data map[string]any) ActionConfig
}

type AssignUserConfig struct {
	TargetType       TargetType       `json:"targetType"       validate:"required,oneof=sales_rep delivery_agent"`
	Assignments      []UserAssignment `json:"assignments"      validate:"dive"`
	DistributionMode DistributionMode `json:"distributionMode" validate:"required,oneof=even weighted"`
	OnlyUnassigned   bool             `json:"onlyUnassigned"`
	RecordField      string           `json:"recordField,omitempty"`
}

func (*AssignUserConfig) ActionKind() ActionKind { return ActionAssignUser }

// RecordIDField is the payload field holding the id of the record to assign.
func (c *AssignUserConfig) RecordIDField() string {
	if c.RecordField == "" {
		return "orderId"
	}

	return c.RecordField
}

type SendEmailConfig struct {
	To      string `json:"to"      validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body"`
}

func (*SendEmailConfig) ActionKind() ActionKind { return ActionSendEmail }

func (c *SendEmailConfig) Render(data map[string]any) ActionConfig {
	return &SendEmailConfig{
		To:      template.Render(c.To, data),
		Subject: template.Render(c.Subject, data),
		Body:    template.Render(c.Body, data),
	}
}

type SendSMSConfig struct {
	To      string `json:"to"      validate:"required"`
	Message string `json:"message" validate:"required"`
}

func (*SendSMSConfig) ActionKind() ActionKind { return ActionSendSMS }

func (c *SendSMSConfig) Render(data map[string]any) ActionConfig {
	return &SendSMSConfig{
		To:      template.Render(c.To, data),
		Message: template.Render(c.Message, data),
	}
}

type UpdateRecordConfig struct {
	Entity      string         `json:"entity,omitempty"`
	RecordField string         `json:"recordField,omitempty"`
	Fields      map[string]any `json:"fields"                validate:"required,min=1"`
}

func (*UpdateRecordConfig) ActionKind() ActionKind { return ActionUpdateRecord }

func (c *UpdateRecordConfig) Render(data map[string]any) ActionConfig {
	return &UpdateRecordConfig{
		Entity:      c.Entity,
		RecordField: c.RecordField,
		Fields:      template.RenderMap(c.Fields, data),
	}
}

type WaitConfig struct {
	Duration Duration `json:"duration" validate:"required"`
}

func (*WaitConfig) ActionKind() ActionKind { return ActionWait }

type HTTPCallConfig struct {
	URL           string            `json:"url"                     validate:"required"`
	Method        string            `json:"method,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          string            `json:"body,omitempty"`
	Timeout       Duration          `json:"timeout,omitempty"`
	RetryAttempts int               `json:"retryAttempts,omitempty" validate:"gte=0,lte=5"`
	RetryDelay    Duration          `json:"retryDelay,omitempty"`
}

func (*HTTPCallConfig) ActionKind() ActionKind { return ActionHTTPCall }

func (c *HTTPCallConfig) Render(data map[string]any) ActionConfig {
	out := *c
	out.URL = template.Render(c.URL, data)
	out.Headers = template.RenderStrings(c.Headers, data)
	out.Body = template.Render(c.Body, data)

	return &out
}

// CustomConfig carries the configuration of kinds registered at startup.
type CustomConfig struct {
	Kind   ActionKind
	Values map[string]any
}

func (c *CustomConfig) ActionKind() ActionKind { return c.Kind }

func (c *CustomConfig) Render(data map[string]any) ActionConfig {
	return &CustomConfig{Kind: c.Kind, Values: template.RenderMap(c.Values, data)}
}

func (c *CustomConfig) MarshalJSON() ([]byte, error) {
	if c.Values == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(c.Values)
}

// WorkflowAction is one step of a workflow. Conditions, when present, gate
// the step: an unmatched step is skipped and the sequence continues.
type WorkflowAction struct {
	ID         string          `json:"id"`
	Kind       ActionKind      `json:"kind"                 validate:"required"`
	Config     ActionConfig    `json:"config"`
	Conditions *ConditionGroup `json:"conditions,omitempty"`
}

type rawWorkflowAction struct {
	ID         string          `json:"id"`
	Kind       ActionKind      `json:"kind"`
	Config     json.RawMessage `json:"config"`
	Conditions *ConditionGroup `json:"conditions,omitempty"`
}

func (a *WorkflowAction) UnmarshalJSON(data []byte) error {
	var raw rawWorkflowAction
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	config, err := DecodeActionConfig(raw.Kind, raw.Config)
	if err != nil {
		return err
	}

	a.ID = raw.ID
	a.Kind = raw.Kind
	a.Config = config
	a.Conditions = raw.Conditions

	return nil
}

// DecodeActionConfig decodes raw JSON into the typed configuration for kind.
// Kinds without a typed configuration decode into CustomConfig.
func DecodeActionConfig(kind ActionKind, raw json.RawMessage) (ActionConfig, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: kind is required", ErrUnknownActionKind)
	}

	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	var config ActionConfig

	switch kind {
	case ActionAssignUser:
		config = &AssignUserConfig{OnlyUnassigned: true, DistributionMode: DistributionWeighted}
	case ActionSendEmail:
		config = &SendEmailConfig{}
	case ActionSendSMS:
		config = &SendSMSConfig{}
	case ActionUpdateRecord:
		config = &UpdateRecordConfig{}
	case ActionWait:
		config = &WaitConfig{}
	case ActionHTTPCall:
		config = &HTTPCallConfig{}
	default:
		values := map[string]any{}
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("failed to decode %s config: %w", kind, err)
		}

		return &CustomConfig{Kind: kind, Values: values}, nil
	}

	if err := json.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("failed to decode %s config: %w", kind, err)
	}

	return config, nil
}

// Duration is a time.Duration encoded as a Go duration string. Decoding also
// accepts a number of milliseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	switch v := value.(type) {
	case float64:
		*d = Duration(time.Duration(v) * time.Millisecond)
	case string:
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			*d = Duration(time.Duration(ms) * time.Millisecond)

			return nil
		}

		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}

		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", value)
	}

	return nil
}
