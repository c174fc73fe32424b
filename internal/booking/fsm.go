// Package booking implements the booking draft and its submission state machine.
package booking

// State is the submission state of a draft.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// FSM holds the allowed submission transitions.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the submission state machine.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:       {StateValidating},
			StateValidating: {StateIdle, StateSubmitting},
			StateSubmitting: {StateSucceeded, StateFailed},
			StateFailed:     {StateIdle},
			StateSucceeded:  {StateIdle},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
