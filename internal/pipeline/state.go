package pipeline

import (
	"github.com/jonathan/claim-detective/internal/types"
)

var allowedTransitions = map[string]map[string]struct{}{
	types.RunStateCreated: {
		types.RunStateRunning: {},
		types.RunStateFailed:  {},
	},
	types.RunStateRunning: {
		types.RunStateAwaitingClarification: {},
		types.RunStateCompleted:             {},
		types.RunStateFailed:                {},
	},
	types.RunStateAwaitingClarification: {
		types.RunStateRunning: {},
	},
	types.RunStateCompleted: {},
	types.RunStateFailed:    {},
}

// ValidateTransition returns *types.InvalidTransitionError unless the run
// state machine allows from -> to.
func ValidateTransition(from, to string) error {
	if _, ok := allowedTransitions[from][to]; !ok {
		return &types.InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// transition moves run to state after checking the move is allowed.
func transition(run *types.Run, to string) error {
	if err := ValidateTransition(run.State, to); err != nil {
		return err
	}
	run.State = to
	return nil
}
