// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import "fmt"

// ReservationState is the state of a spend reservation. A reservation starts
// Active and moves once to one of the terminal states.
type ReservationState uint32

const (
	// ReservationActive indicates the outputs and the change address are
	// held for a spend that is being built.
	ReservationActive ReservationState = iota

	// ReservationCompleted indicates the spend was broadcast.
	ReservationCompleted

	// ReservationCancelled indicates the spend was abandoned.
	ReservationCancelled
)

// String returns the string representation of a reservation state.
func (s ReservationState) String() string {
	switch s {
	case ReservationActive:
		return "active"

	case ReservationCompleted:
		return "completed"

	case ReservationCancelled:
		return "cancelled"

	default:
		return "unknown reservation state"
	}
}

// Outcome is the way a reservation ends.
type Outcome uint8

const (
	// OutcomeCompleted marks a spend that was broadcast. The reserved
	// outputs are spent and the change address stays used.
	OutcomeCompleted Outcome = iota

	// OutcomeCancelled marks a spend that was abandoned. The reserved
	// outputs return to the pool and the change address gets its prior
	// used flag back.
	OutcomeCancelled
)

// String returns the string representation of an outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"

	case OutcomeCancelled:
		return "cancelled"

	default:
		return fmt.Sprintf("unknown outcome (%d)", uint8(o))
	}
}

// state returns the terminal state the outcome leads to.
func (o Outcome) state() (ReservationState, error) {
	switch o {
	case OutcomeCompleted:
		return ReservationCompleted, nil

	case OutcomeCancelled:
		return ReservationCancelled, nil

	default:
		return 0, fmt.Errorf("invalid outcome: %v", o)
	}
}

// transition moves the reservation state to the terminal state of the
// outcome. Only active reservations can transition.
func (s *ReservationState) transition(o Outcome) error {
	if *s != ReservationActive {
		return fmt.Errorf("%w: current state is %v",
			ErrReservationNotActive, *s)
	}

	next, err := o.state()
	if err != nil {
		return err
	}

	*s = next

	return nil
}
