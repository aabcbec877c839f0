package wait

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Execute(t *testing.T) {
	action, err := NewActionFactory().Create(context.Background(), &models.WaitConfig{Duration: models.Duration(2 * time.Hour)})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ActionRequest{}, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, result.ResumeAfter)
	assert.Equal(t, "2h0m0s", result.Output["waitedFor"])
}

func TestNewAction_InvalidDuration(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second, MaxDuration + time.Second} {
		_, err := NewAction(&models.WaitConfig{Duration: models.Duration(d)})
		require.ErrorIs(t, err, ErrInvalidDuration)
	}
}
