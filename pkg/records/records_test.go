package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Update(t *testing.T) {
	var fields map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/orders/o-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewAPIClient(server.URL+"/").Update(context.Background(), "order", "o-1", map[string]any{"customerRepId": "alice"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"customerRepId": "alice"}, fields)
}

func TestAPIClient_NotFound(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := NewAPIClient(server.URL).WithRetry(3, time.Millisecond).Update(context.Background(), "order", "missing", map[string]any{"a": 1})

	require.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAPIClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewAPIClient(server.URL).WithRetry(2, time.Millisecond).Update(context.Background(), "order", "o-1", map[string]any{"a": 1})

	require.ErrorIs(t, err, ErrUpdateRejected)
	assert.Equal(t, int32(3), calls.Load())
}
