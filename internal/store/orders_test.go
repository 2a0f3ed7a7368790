package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"accept pending order", OrderPendingAcceptance, OrderBookedForSupply, true},
		{"supply booked order", OrderBookedForSupply, OrderSupplied, true},
		{"pay supplied order", OrderSupplied, OrderSuppliedAndPaid, true},

		{"cannot supply before acceptance", OrderPendingAcceptance, OrderSupplied, false},
		{"cannot pay before supply", OrderBookedForSupply, OrderSuppliedAndPaid, false},
		{"cannot pay pending order", OrderPendingAcceptance, OrderSuppliedAndPaid, false},
		{"cannot accept twice", OrderBookedForSupply, OrderBookedForSupply, false},
		{"cannot re-accept supplied order", OrderSupplied, OrderBookedForSupply, false},

		{"cancel pending order", OrderPendingAcceptance, OrderCancelled, true},
		{"cancel booked order", OrderBookedForSupply, OrderCancelled, true},
		{"cancel supplied order", OrderSupplied, OrderCancelled, true},
		{"cannot cancel settled order", OrderSuppliedAndPaid, OrderCancelled, false},
		{"cannot cancel twice", OrderCancelled, OrderCancelled, false},

		{"cancelled order is terminal", OrderCancelled, OrderBookedForSupply, false},
		{"settled order is terminal", OrderSuppliedAndPaid, OrderSupplied, false},
		{"unknown target status", OrderPendingAcceptance, "SHIPPED", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

// The UPDATE guards are derived from the transition table; this pins what
// each guard admits.
func TestStatusesAllowing(t *testing.T) {
	assert.ElementsMatch(t, []string{OrderPendingAcceptance}, StatusesAllowing(OrderBookedForSupply))
	assert.ElementsMatch(t, []string{OrderBookedForSupply}, StatusesAllowing(OrderSupplied))
	assert.ElementsMatch(t, []string{OrderSupplied}, StatusesAllowing(OrderSuppliedAndPaid))
	assert.ElementsMatch(t,
		[]string{OrderPendingAcceptance, OrderBookedForSupply, OrderSupplied},
		StatusesAllowing(OrderCancelled))
	assert.Empty(t, StatusesAllowing(OrderPendingAcceptance))
	assert.Empty(t, StatusesAllowing("SHIPPED"))
}
