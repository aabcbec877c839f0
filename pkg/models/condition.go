package models

import (
	"errors"
	"fmt"
	"time"
)

// Logic combines the rules of a ConditionGroup.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

const (
	OperatorEquals      = "equals"
	OperatorGreaterThan = "greaterThan"
	OperatorLessThan    = "lessThan"
	OperatorBetween     = "between"
	OperatorContains    = "contains"
	OperatorStartsWith  = "startsWith"
	OperatorIn          = "in"
)

// FieldKind classifies a condition field and determines its operators.
type FieldKind string

const (
	FieldNumeric FieldKind = "numeric"
	FieldString  FieldKind = "string"
	FieldEnum    FieldKind = "enum"
)

// ConditionField describes one entry of the field/operator compatibility table.
// The first operator is the default one.
type ConditionField struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Kind      FieldKind `json:"kind"`
	Operators []string  `json:"operators"`
}

var conditionFields = []ConditionField{
	{Name: "orderTotal", Label: "Order Total", Kind: FieldNumeric, Operators: []string{OperatorEquals, OperatorGreaterThan, OperatorLessThan, OperatorBetween}},
	{Name: "itemCount", Label: "Item Count", Kind: FieldNumeric, Operators: []string{OperatorEquals, OperatorGreaterThan, OperatorLessThan, OperatorBetween}},
	{Name: "productName", Label: "Product Name", Kind: FieldString, Operators: []string{OperatorEquals, OperatorContains, OperatorStartsWith}},
	{Name: "state", Label: "State", Kind: FieldString, Operators: []string{OperatorEquals, OperatorContains, OperatorStartsWith}},
	{Name: "customerType", Label: "Customer Type", Kind: FieldEnum, Operators: []string{OperatorEquals, OperatorIn}},
	{Name: "status", Label: "Order Status", Kind: FieldEnum, Operators: []string{OperatorEquals, OperatorIn}},
	{Name: "paymentMethod", Label: "Payment Method", Kind: FieldEnum, Operators: []string{OperatorEquals, OperatorIn}},
	{Name: "country", Label: "Country", Kind: FieldEnum, Operators: []string{OperatorEquals, OperatorIn}},
}

const defaultRuleField = "orderTotal"

// ConditionFields returns the field/operator compatibility table.
func ConditionFields() []ConditionField {
	out := make([]ConditionField, len(conditionFields))
	copy(out, conditionFields)

	return out
}

// LookupField returns the table entry for name.
func LookupField(name string) (ConditionField, bool) {
	for _, field := range conditionFields {
		if field.Name == name {
			return field, true
		}
	}

	return ConditionField{}, false
}

// Allows reports whether operator is valid for the field.
func (f ConditionField) Allows(operator string) bool {
	for _, op := range f.Operators {
		if op == operator {
			return true
		}
	}

	return false
}

// ConditionRule compares one payload field against a value.
type ConditionRule struct {
	ID       string `json:"id"`
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    string `json:"value"`
}

// Validate checks the rule against the compatibility table.
func (r ConditionRule) Validate() error {
	field, ok := LookupField(r.Field)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, r.Field)
	}

	if !field.Allows(r.Operator) {
		return fmt.Errorf("%w: %q does not support %q", ErrUnknownOperator, r.Field, r.Operator)
	}

	return nil
}

// ConditionGroup combines rules, and optionally nested groups, with AND/OR.
// A nil group always matches.
type ConditionGroup struct {
	ID     string            `json:"id"`
	Logic  Logic             `json:"logic"            validate:"omitempty,oneof=AND OR"`
	Rules  []ConditionRule   `json:"rules"`
	Groups []*ConditionGroup `json:"groups,omitempty"`
}

// NewRule returns a rule with the default field and operator.
func NewRule(id string) ConditionRule {
	if id == "" {
		id = fmt.Sprintf("rule-%d", time.Now().UnixNano())
	}

	return ConditionRule{
		ID:       id,
		Field:    defaultRuleField,
		Operator: OperatorGreaterThan,
	}
}

// IsEmpty reports whether the group holds no rules at any depth.
func (g *ConditionGroup) IsEmpty() bool {
	if g == nil {
		return true
	}

	if len(g.Rules) > 0 {
		return false
	}

	for _, sub := range g.Groups {
		if !sub.IsEmpty() {
			return false
		}
	}

	return true
}

// Normalize drops empty nested groups and returns nil when nothing is left.
func (g *ConditionGroup) Normalize() *ConditionGroup {
	if g.IsEmpty() {
		return nil
	}

	out := g.clone()
	if out.Logic == "" {
		out.Logic = LogicAnd
	}

	groups := out.Groups[:0]
	for _, sub := range out.Groups {
		if normalized := sub.Normalize(); normalized != nil {
			groups = append(groups, normalized)
		}
	}

	out.Groups = groups
	if len(out.Groups) == 0 {
		out.Groups = nil
	}

	return out
}

// Walk calls fn for every rule in the group and its sub-groups.
func (g *ConditionGroup) Walk(fn func(ConditionRule)) {
	if g == nil {
		return
	}

	for _, rule := range g.Rules {
		fn(rule)
	}

	for _, sub := range g.Groups {
		sub.Walk(fn)
	}
}

// AddRule appends rule to group. A nil group becomes a new AND group.
func AddRule(group *ConditionGroup, rule ConditionRule) *ConditionGroup {
	if group == nil {
		return &ConditionGroup{
			ID:    fmt.Sprintf("group-%d", time.Now().UnixNano()),
			Logic: LogicAnd,
			Rules: []ConditionRule{rule},
		}
	}

	out := group.clone()
	out.Rules = append(out.Rules, rule)

	return out
}

// RemoveRule removes ruleID from the group. It returns nil when the group no
// longer holds any rule, meaning the trigger always fires.
func RemoveRule(group *ConditionGroup, ruleID string) *ConditionGroup {
	if group == nil {
		return nil
	}

	out := group.clone()
	rules := make([]ConditionRule, 0, len(out.Rules))

	for _, rule := range out.Rules {
		if rule.ID != ruleID {
			rules = append(rules, rule)
		}
	}

	out.Rules = rules

	for i, sub := range out.Groups {
		out.Groups[i] = RemoveRule(sub, ruleID)
	}

	return out.Normalize()
}

// SetField changes the field of ruleID, resets its operator to the field's
// default and clears its value.
func SetField(group *ConditionGroup, ruleID, field string) (*ConditionGroup, error) {
	entry, ok := LookupField(field)
	if !ok {
		return group, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	return updateRule(group, ruleID, func(rule *ConditionRule) error {
		rule.Field = entry.Name
		rule.Operator = entry.Operators[0]
		rule.Value = ""

		return nil
	})
}

// SetOperator changes the operator of ruleID, keeping it within the field's allowed set.
func SetOperator(group *ConditionGroup, ruleID, operator string) (*ConditionGroup, error) {
	return updateRule(group, ruleID, func(rule *ConditionRule) error {
		field, ok := LookupField(rule.Field)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, rule.Field)
		}

		if !field.Allows(operator) {
			return fmt.Errorf("%w: %q does not support %q", ErrUnknownOperator, rule.Field, operator)
		}

		rule.Operator = operator

		return nil
	})
}

// SetValue changes the comparison value of ruleID.
func SetValue(group *ConditionGroup, ruleID, value string) (*ConditionGroup, error) {
	return updateRule(group, ruleID, func(rule *ConditionRule) error {
		rule.Value = value

		return nil
	})
}

// ToggleLogic flips AND and OR. Groups with fewer than two rules are returned unchanged.
func ToggleLogic(group *ConditionGroup) *ConditionGroup {
	if group == nil || len(group.Rules)+len(group.Groups) < 2 {
		return group
	}

	out := group.clone()
	if out.Logic == LogicOr {
		out.Logic = LogicAnd
	} else {
		out.Logic = LogicOr
	}

	return out
}

func updateRule(group *ConditionGroup, ruleID string, fn func(*ConditionRule) error) (*ConditionGroup, error) {
	if group == nil {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}

	out := group.clone()

	for i := range out.Rules {
		if out.Rules[i].ID == ruleID {
			if err := fn(&out.Rules[i]); err != nil {
				return group, err
			}

			return out, nil
		}
	}

	for i, sub := range out.Groups {
		updated, err := updateRule(sub, ruleID, fn)
		if err == nil {
			out.Groups[i] = updated

			return out, nil
		}

		if !errors.Is(err, ErrRuleNotFound) {
			return group, err
		}
	}

	return group, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
}

func (g *ConditionGroup) clone() *ConditionGroup {
	out := &ConditionGroup{
		ID:    g.ID,
		Logic: g.Logic,
		Rules: append([]ConditionRule(nil), g.Rules...),
	}

	if len(g.Groups) > 0 {
		out.Groups = make([]*ConditionGroup, len(g.Groups))
		for i, sub := range g.Groups {
			if sub != nil {
				out.Groups[i] = sub.clone()
			}
		}
	}

	return out
}
