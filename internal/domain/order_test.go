package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderPending, OrderCompleted, true},
		{OrderPending, OrderFailed, true},
		{OrderPending, OrderPending, false},
		{OrderCompleted, OrderFailed, false},
		{OrderCompleted, OrderPending, false},
		{OrderFailed, OrderCompleted, false},
		{OrderFailed, OrderPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, OrderPending.Terminal())
	assert.True(t, OrderCompleted.Terminal())
	assert.True(t, OrderFailed.Terminal())
}

func TestKnownGatewayStatus(t *testing.T) {
	assert.True(t, KnownGatewayStatus(GatewayComplete))
	assert.True(t, KnownGatewayStatus(GatewayPartialRefund))
	assert.False(t, KnownGatewayStatus("OK"))
	assert.False(t, KnownGatewayStatus(""))
	assert.False(t, KnownGatewayStatus("complete"))
}
