package jobs

import "fmt"

// State is the controller state of a job.
type State string

const (
	StatePending      State = "pending"
	StateInitializing State = "initializing"
	StateLoadingModel State = "loading_model"
	StateLoadingAudio State = "loading_audio"
	StateSeparating   State = "separating"
	StateSaving       State = "saving"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// validTransitions maps from-state to allowed to-states.
var validTransitions = map[State]map[State]bool{
	StatePending: {
		StateInitializing: true,
		StateCancelled:    true, // removed from the queue before it started
	},
	StateInitializing: {
		StateLoadingModel: true,
		StateFailed:       true,
		StateCancelled:    true,
	},
	StateLoadingModel: {
		StateLoadingAudio: true,
		StateFailed:       true,
		StateCancelled:    true,
	},
	StateLoadingAudio: {
		StateSeparating: true,
		StateFailed:     true,
		StateCancelled:  true,
	},
	StateSeparating: {
		StateSaving:    true,
		StateFailed:    true,
		StateCancelled: true,
	},
	StateSaving: {
		StateCompleted: true,
		StateFailed:    true,
		StateCancelled: true,
	},
	// Terminal states (no transitions allowed)
	StateCompleted: {},
	StateFailed:    {},
	StateCancelled: {},
}

// ValidateTransition checks if a state transition is valid.
func ValidateTransition(from, to State) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the state admits no further transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
