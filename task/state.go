package task

import (
	"fmt"
)

// State is the lifecycle state of a task node within one build pass.
type State int

const (
	StateUnknown            State = iota // Never initialised
	StatePending                         // Initialised, waiting for its conditions to be checked
	StateCheckingConditions              // Conditions are being evaluated
	StateExecuting                       // Run has started and its child sequence is not exhausted
	StateCompleted                       // Run's child sequence was fully consumed
	StateSkipped                         // Conditions failed, or it was never run
	StateTerminated                      // Run was interrupted before completion
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StatePending:
		return "pending"
	case StateCheckingConditions:
		return "checking_conditions"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateSkipped:
		return "skipped"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state_%d", int(s))
	}
}

// IsTerminal reports whether the state ends an execution pass.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateSkipped || s == StateTerminated
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
