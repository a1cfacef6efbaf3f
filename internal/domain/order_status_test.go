package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"new", "prepping", "ready", "completed", "cancelled"} {
		st, err := ParseOrderStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, st.String())
	}

	for _, s := range []string{"", "NEW", "shipped", " ready"} {
		_, err := ParseOrderStatus(s)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), s)
		assert.Equal(t, "status", verr.Field)
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusNew, OrderStatusPrepping, true},
		{OrderStatusPrepping, OrderStatusReady, true},
		{OrderStatusReady, OrderStatusCompleted, true},
		{OrderStatusNew, OrderStatusCancelled, true},
		{OrderStatusPrepping, OrderStatusCancelled, true},
		{OrderStatusReady, OrderStatusCancelled, true},
		{OrderStatusNew, OrderStatusReady, false},
		{OrderStatusReady, OrderStatusPrepping, false},
		{OrderStatusNew, OrderStatusNew, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusNew, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusNew.IsTerminal())
	assert.False(t, OrderStatusReady.IsTerminal())
}
