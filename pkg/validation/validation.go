// Package validation checks workflow definitions before they are stored or
// run. A definition that fails validation never produces an execution.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/distributor"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

const maxNameLength = 200

var ErrInvalidWorkflow = errors.New("invalid workflow definition")

// FieldError locates one problem in a definition.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the list of problems found in a definition.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}

	return fmt.Sprintf("%s: %s", ErrInvalidWorkflow, strings.Join(parts, "; "))
}

func (e Errors) Unwrap() error { return ErrInvalidWorkflow }

type Validator struct {
	validate *validator.Validate
	catalog  *catalog.Catalog
}

func New(c *catalog.Catalog) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonName)

	return &Validator{validate: validate, catalog: c}
}

// Struct validates any tagged struct and reports failures as Errors.
func (v *Validator) Struct(s any) error {
	var errs Errors

	v.structErrors(&errs, "", s)

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// Workflow validates a whole definition against the catalog and the
// condition field table. It returns Errors or nil.
func (v *Validator) Workflow(def *models.WorkflowDefinition) error {
	var errs Errors

	switch name := strings.TrimSpace(def.Name); {
	case name == "":
		errs.add("name", "is required")
	case len([]rune(name)) > maxNameLength:
		errs.add("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}

	v.trigger(&errs, def.Trigger)
	conditions(&errs, "conditions", def.Conditions)

	if len(def.Actions) == 0 {
		errs.add("actions", "at least one action is required")
	}

	ids := make(map[string]int, len(def.Actions))

	for i, action := range def.Actions {
		prefix := fmt.Sprintf("actions[%d]", i)

		if action.ID != "" {
			if first, dup := ids[action.ID]; dup {
				errs.add(prefix+".id", fmt.Sprintf("duplicates actions[%d].id %q", first, action.ID))
			} else {
				ids[action.ID] = i
			}
		}

		v.action(&errs, prefix, action)
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

func (v *Validator) trigger(errs *Errors, trigger models.Trigger) {
	if trigger.Kind == "" {
		errs.add("trigger.kind", "is required")

		return
	}

	if _, ok := v.catalog.Trigger(trigger.Kind); !ok {
		errs.add("trigger.kind", fmt.Sprintf("unknown trigger %q", trigger.Kind))

		return
	}

	if err := v.catalog.ValidateTriggerConfig(trigger.Kind, trigger.Config); err != nil {
		errs.add("trigger.config", err.Error())
	}
}

func (v *Validator) action(errs *Errors, prefix string, action models.WorkflowAction) {
	if action.Kind == "" {
		errs.add(prefix+".kind", "is required")

		return
	}

	if _, ok := v.catalog.Action(action.Kind); !ok {
		errs.add(prefix+".kind", fmt.Sprintf("unknown action %q", action.Kind))

		return
	}

	if action.Config == nil {
		errs.add(prefix+".config", "is required")

		return
	}

	if action.Config.ActionKind() != action.Kind {
		errs.add(prefix+".config", fmt.Sprintf("config of %q does not match kind %q", action.Config.ActionKind(), action.Kind))

		return
	}

	v.structErrors(errs, prefix+".config", action.Config)

	if err := v.catalog.ValidateActionConfig(action.Kind, action.Config); err != nil {
		errs.add(prefix+".config", err.Error())
	}

	if assign, ok := action.Config.(*models.AssignUserConfig); ok {
		assignments(errs, prefix+".config.assignments", assign.Assignments)
	}

	conditions(errs, prefix+".conditions", action.Conditions)
}

// assignments accepts an empty set; a non-empty set must hold distinct users
// and sum to 100 within tolerance.
func assignments(errs *Errors, field string, set []models.UserAssignment) {
	if len(set) == 0 {
		return
	}

	seen := make(map[string]bool, len(set))

	for _, a := range set {
		if seen[a.UserID] {
			errs.add(field, fmt.Sprintf("user %q is listed twice", a.UserID))
		}

		seen[a.UserID] = true
	}

	if !distributor.Balanced(set) {
		errs.add(field, fmt.Sprintf("weights must sum to 100 (±%.1f), got %.1f", distributor.Tolerance, models.TotalWeight(set)))
	}
}

func conditions(errs *Errors, field string, group *models.ConditionGroup) {
	if group == nil {
		return
	}

	if group.Logic != "" && group.Logic != models.LogicAnd && group.Logic != models.LogicOr {
		errs.add(field+".logic", fmt.Sprintf("must be AND or OR, got %q", group.Logic))
	}

	for i, rule := range group.Rules {
		if err := rule.Validate(); err != nil {
			errs.add(fmt.Sprintf("%s.rules[%d]", field, i), err.Error())
		}
	}

	for i, nested := range group.Groups {
		conditions(errs, fmt.Sprintf("%s.groups[%d]", field, i), nested)
	}
}

func (v *Validator) structErrors(errs *Errors, prefix string, s any) {
	err := v.validate.Struct(s)
	if err == nil {
		return
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs.add(strings.TrimPrefix(prefix, "."), err.Error())

		return
	}

	for _, fe := range validationErrors {
		namespace := fe.Namespace()
		if i := strings.Index(namespace, "."); i >= 0 {
			namespace = namespace[i+1:]
		}

		if prefix != "" {
			namespace = prefix + "." + namespace
		}

		errs.add(namespace, message(fe))
	}
}

func (e *Errors) add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func jsonName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}

	if name == "" {
		return field.Name
	}

	return name
}
