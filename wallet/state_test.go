// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReservationStateTransitions verifies that a reservation moves once
// from Active to the terminal state of the outcome.
func TestReservationStateTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		outcome Outcome
		want    ReservationState
	}{
		{
			name:    "completed",
			outcome: OutcomeCompleted,
			want:    ReservationCompleted,
		},
		{
			name:    "cancelled",
			outcome: OutcomeCancelled,
			want:    ReservationCancelled,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Arrange: A fresh reservation is active.
			var s ReservationState
			require.Equal(t, ReservationActive, s)

			// Act: Apply the outcome.
			require.NoError(t, s.transition(tc.outcome))

			// Assert: The terminal state is reached and cannot be
			// left again.
			require.Equal(t, tc.want, s)

			err := s.transition(OutcomeCancelled)
			require.ErrorIs(t, err, ErrReservationNotActive)
			require.Equal(t, tc.want, s)
		})
	}
}

// TestReservationStateInvalidOutcome verifies that an unknown outcome leaves
// the state untouched.
func TestReservationStateInvalidOutcome(t *testing.T) {
	t.Parallel()

	s := ReservationActive
	require.Error(t, s.transition(Outcome(9)))
	require.Equal(t, ReservationActive, s)
}

// TestReservationStateStrings verifies the human readable names.
func TestReservationStateStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "active", ReservationActive.String())
	require.Equal(t, "completed", ReservationCompleted.String())
	require.Equal(t, "cancelled", ReservationCancelled.String())
	require.Equal(t, "unknown reservation state",
		ReservationState(7).String())

	require.Equal(t, "completed", OutcomeCompleted.String())
	require.Equal(t, "cancelled", OutcomeCancelled.String())
	require.Equal(t, "unknown outcome (5)", Outcome(5).String())
}
