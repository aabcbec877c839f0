// Package payload resolves fields from trigger event payloads.
package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
)

// Lookup returns the value stored under field. Dotted names such as
// "customer.address.city" walk nested objects.
func Lookup(data map[string]any, field string) (any, bool) {
	if data == nil || field == "" {
		return nil, false
	}

	if value, ok := data[field]; ok {
		return value, true
	}

	if !strings.Contains(field, ".") {
		return nil, false
	}

	value, err := jsonpath.JsonPathLookup(data, "$."+field)
	if err != nil {
		return nil, false
	}

	return value, true
}

// String renders a payload value the way it is shown to operators:
// integral numbers lose their fraction, objects are encoded as JSON.
func String(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}

// Number converts a payload value to float64. Strings are parsed.
func Number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}
