// Package submission drives send-style wallet operations from request to a
// terminal outcome: destination resolution, envelope build and signing, and
// a single submission attempt.
//
// Each run is a finite state machine. The legal-transition table below is
// checked on every step, and every run ends in exactly one of the terminal
// states Succeeded or Failed.
package submission

import (
	"fmt"

	"github.com/marwen-abid/stellar-wallet-go/errors"
)

// State is a step of a submission run.
type State string

const (
	StateStart              State = "start"
	StateResolveDestination State = "resolve_destination"
	StateBuildCreateAccount State = "build_create_account"
	StateBuildOperation     State = "build_operation"
	StateSubmit             State = "submit"
	StateSucceeded          State = "succeeded"
	StateFailed             State = "failed"
)

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// legalTransitions maps each state to the set of states it may move to.
// Terminal states have no outgoing transitions.
var legalTransitions = map[State]map[State]bool{
	StateStart: {
		StateResolveDestination: true,
		StateBuildOperation:     true,
		StateFailed:             true,
	},
	StateResolveDestination: {
		StateBuildCreateAccount: true,
		StateBuildOperation:     true,
		StateFailed:             true,
	},
	StateBuildCreateAccount: {
		StateSubmit: true,
		StateFailed: true,
	},
	StateBuildOperation: {
		StateSubmit: true,
		StateFailed: true,
	},
	StateSubmit: {
		StateSucceeded: true,
		StateFailed:    true,
	},
	StateSucceeded: {},
	StateFailed:    {},
}

// ValidateTransition returns a TRANSITION_INVALID error unless moving from
// "from" to "to" is allowed.
func ValidateTransition(from, to State) error {
	validToStates, exists := legalTransitions[from]
	if !exists {
		return errors.NewSubmitError(
			errors.TRANSITION_INVALID,
			fmt.Sprintf("unknown source state: %s", from),
			nil,
		)
	}

	if !validToStates[to] {
		return errors.NewSubmitError(
			errors.TRANSITION_INVALID,
			fmt.Sprintf("illegal transition from %s to %s", from, to),
			nil,
		)
	}

	return nil
}
