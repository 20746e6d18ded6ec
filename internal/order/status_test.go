package order_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/order"
)

func TestStatus_TransitionTo(t *testing.T) {
	tests := []struct {
		from order.Status
		to   order.Status
		ok   bool
	}{
		{order.StatusPending, order.StatusProcessing, true},
		{order.StatusProcessing, order.StatusShipped, true},
		{order.StatusShipped, order.StatusDelivered, true},
		{order.StatusPending, order.StatusCancelled, true},
		{order.StatusProcessing, order.StatusCancelled, true},
		{order.StatusPending, order.StatusFailed, true},
		{order.StatusProcessing, order.StatusFailed, true},
		{order.StatusShipped, order.StatusFailed, true},
		{order.StatusOnHold, order.StatusFailed, true},
		{order.StatusProcessing, order.StatusOnHold, true},
		{order.StatusOnHold, order.StatusProcessing, true},
		{order.StatusProcessing, order.StatusRefunded, true},
		{order.StatusFailed, order.StatusProcessing, true},
		{order.StatusProcessing, order.StatusProcessing, true},

		{order.StatusDelivered, order.StatusPending, false},
		{order.StatusCancelled, order.StatusProcessing, false},
		{order.StatusRefunded, order.StatusProcessing, false},
		{order.StatusDelivered, order.StatusFailed, false},
		{order.StatusDelivered, order.StatusDelivered, false},
		{order.StatusFailed, order.StatusPending, false},
		{order.StatusShipped, order.StatusCancelled, false},
		{order.StatusPending, order.StatusShipped, false},
		{order.StatusPending, order.StatusOnHold, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, err := tt.from.TransitionTo(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, got)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, order.ErrInvalidTransition))
			assert.Equal(t, tt.from, got, "status is unchanged on rejection")

			var te *order.InvalidTransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.from, te.From)
			assert.Equal(t, tt.to, te.To)
		})
	}
}

func TestStatus_TerminalStatesHaveNoExit(t *testing.T) {
	all := []order.Status{
		order.StatusPending, order.StatusProcessing, order.StatusShipped, order.StatusDelivered,
		order.StatusCancelled, order.StatusRefunded, order.StatusFailed, order.StatusOnHold,
	}
	for _, terminal := range []order.Status{order.StatusDelivered, order.StatusCancelled, order.StatusRefunded} {
		assert.True(t, terminal.Terminal())
		for _, next := range all {
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
		}
	}
}

func TestStatus_TransitionToUnknown(t *testing.T) {
	_, err := order.StatusPending.TransitionTo("lost")
	assert.ErrorIs(t, err, order.ErrUnknownStatus)
}

func TestParseStatus(t *testing.T) {
	tests := map[string]order.Status{
		"pending":     order.StatusPending,
		" Processing": order.StatusProcessing,
		"on-hold":     order.StatusOnHold,
		"On Hold":     order.StatusOnHold,
		"on_hold":     order.StatusOnHold,
		"REFUNDED":    order.StatusRefunded,
	}
	for in, want := range tests {
		got, err := order.ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := order.ParseStatus("in transit")
	assert.ErrorIs(t, err, order.ErrUnknownStatus)
}
