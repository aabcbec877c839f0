package models

import (
	"strings"

	"github.com/dukex/orderflow/pkg/payload"
)

// Matches evaluates the group against an event payload. A nil or empty group
// always matches. AND stops at the first false member, OR at the first true one.
func (g *ConditionGroup) Matches(data map[string]any) bool {
	if g.IsEmpty() {
		return true
	}

	anyMatch := g.Logic == LogicOr

	for _, rule := range g.Rules {
		if rule.Evaluate(data) == anyMatch {
			return anyMatch
		}
	}

	for _, sub := range g.Groups {
		if sub.IsEmpty() {
			continue
		}

		if sub.Matches(data) == anyMatch {
			return anyMatch
		}
	}

	return !anyMatch
}

// Evaluate applies the rule to the payload. Missing fields, unparsable
// numbers and unknown operators evaluate to false.
func (r ConditionRule) Evaluate(data map[string]any) bool {
	actual, ok := payload.Lookup(data, r.Field)
	if !ok || actual == nil {
		return false
	}

	switch r.Operator {
	case OperatorEquals:
		if a, ok := payload.Number(actual); ok {
			if e, ok := payload.Number(r.Value); ok {
				return a == e
			}
		}

		return payload.String(actual) == r.Value
	case OperatorGreaterThan:
		a, e, ok := numbers(actual, r.Value)

		return ok && a > e
	case OperatorLessThan:
		a, e, ok := numbers(actual, r.Value)

		return ok && a < e
	case OperatorBetween:
		return between(actual, r.Value)
	case OperatorContains:
		return strings.Contains(strings.ToLower(payload.String(actual)), strings.ToLower(r.Value))
	case OperatorStartsWith:
		return strings.HasPrefix(strings.ToLower(payload.String(actual)), strings.ToLower(r.Value))
	case OperatorIn:
		value := payload.String(actual)
		for _, candidate := range splitList(r.Value) {
			if strings.EqualFold(candidate, value) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

func numbers(actual any, expected string) (float64, float64, bool) {
	a, ok := payload.Number(actual)
	if !ok {
		return 0, 0, false
	}

	e, ok := payload.Number(expected)
	if !ok {
		return 0, 0, false
	}

	return a, e, true
}

// between accepts "min,max" and is inclusive on both ends.
func between(actual any, bounds string) bool {
	parts := splitList(bounds)
	if len(parts) != 2 {
		return false
	}

	a, lower, ok := numbers(actual, parts[0])
	if !ok {
		return false
	}

	upper, ok := payload.Number(parts[1])
	if !ok {
		return false
	}

	return a >= lower && a <= upper
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
