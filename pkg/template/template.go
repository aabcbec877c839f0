// Package template substitutes {field} placeholders in action configuration
// with values taken from the triggering event payload.
package template

import (
	"regexp"

	"github.com/dukex/orderflow/pkg/payload"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\}`)

// Render replaces every {field} in input with the matching payload value.
// Unresolved placeholders are left verbatim.
func Render(input string, data map[string]any) string {
	if input == "" {
		return input
	}

	return placeholder.ReplaceAllStringFunc(input, func(match string) string {
		field := match[1 : len(match)-1]

		value, ok := payload.Lookup(data, field)
		if !ok || value == nil {
			return match
		}

		return payload.String(value)
	})
}

// RenderValue renders input like Render, except that an input consisting of a
// single placeholder yields the raw payload value so numbers and booleans keep
// their type.
func RenderValue(input string, data map[string]any) any {
	loc := placeholder.FindStringSubmatchIndex(input)
	if loc != nil && loc[0] == 0 && loc[1] == len(input) {
		if value, ok := payload.Lookup(data, input[loc[2]:loc[3]]); ok && value != nil {
			return value
		}
	}

	return Render(input, data)
}

// RenderMap renders every string found in a nested map or slice.
func RenderMap(input map[string]any, data map[string]any) map[string]any {
	if input == nil {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = renderAny(value, data)
	}

	return out
}

// RenderStrings renders every value of a string map, typically headers.
func RenderStrings(input map[string]string, data map[string]any) map[string]string {
	if input == nil {
		return nil
	}

	out := make(map[string]string, len(input))
	for key, value := range input {
		out[key] = Render(value, data)
	}

	return out
}

// Placeholders lists the field names referenced by input, in order of appearance.
func Placeholders(input string) []string {
	matches := placeholder.FindAllStringSubmatch(input, -1)

	fields := make([]string, 0, len(matches))
	for _, m := range matches {
		fields = append(fields, m[1])
	}

	return fields
}

func renderAny(value any, data map[string]any) any {
	switch v := value.(type) {
	case string:
		return RenderValue(v, data)
	case map[string]any:
		return RenderMap(v, data)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = renderAny(item, data)
		}

		return out
	default:
		return v
	}
}
