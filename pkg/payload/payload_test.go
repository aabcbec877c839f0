package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	data := map[string]any{
		"orderNumber": "ORD-42",
		"orderTotal":  150.0,
		"customer": map[string]any{
			"name": "Ada",
			"address": map[string]any{
				"city": "Lisbon",
			},
		},
	}

	tests := []struct {
		name     string
		field    string
		expected any
		found    bool
	}{
		{"top level", "orderNumber", "ORD-42", true},
		{"number", "orderTotal", 150.0, true},
		{"nested", "customer.name", "Ada", true},
		{"deeply nested", "customer.address.city", "Lisbon", true},
		{"missing", "status", nil, false},
		{"missing nested", "customer.email", nil, false},
		{"empty field", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := Lookup(data, tt.field)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestLookup_NilPayload(t *testing.T) {
	_, found := Lookup(nil, "orderTotal")
	assert.False(t, found)
}

func TestString(t *testing.T) {
	assert.Equal(t, "150", String(150.0))
	assert.Equal(t, "99.5", String(99.5))
	assert.Equal(t, "7", String(7))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "ORD-42", String("ORD-42"))
	assert.Equal(t, `{"a":1}`, String(map[string]any{"a": 1}))
	assert.Equal(t, "12.5", String(json.Number("12.5")))
}

func TestNumber(t *testing.T) {
	n, ok := Number("42.5")
	assert.True(t, ok)
	assert.InDelta(t, 42.5, n, 0.0001)

	n, ok = Number(10)
	assert.True(t, ok)
	assert.InDelta(t, 10, n, 0.0001)

	_, ok = Number("Premium")
	assert.False(t, ok)

	_, ok = Number(true)
	assert.False(t, ok)
}
