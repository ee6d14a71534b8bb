package core

// =============================================================================
// State: lifecycle of tasks and groups
// =============================================================================

// State is the lifecycle state shared by tasks and groups.
type State int32

const (
	// StateCreated: submitted or constructed, not yet ticked
	StateCreated State = iota

	// StateRunning: receives a step every tick
	StateRunning

	// StatePaused: no progress until Resume
	StatePaused

	// StateSucceeded, StateFailed and StateCanceled are terminal
	StateSucceeded
	StateFailed
	StateCanceled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if no further ticks are delivered in this state.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled:
		return true
	}
	return false
}

// ValidTransitions defines the allowed state transitions for tasks and groups.
var ValidTransitions = map[State][]State{
	StateCreated: {StateRunning, StateCanceled},
	StateRunning: {StatePaused, StateSucceeded, StateFailed, StateCanceled},
	// A step that pauses its own task still completes or fails in that tick.
	StatePaused: {StateRunning, StateSucceeded, StateFailed, StateCanceled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range ValidTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// =============================================================================
// Signal: what a step reports back to the executor
// =============================================================================

type Signal int

const (
	// SignalContinue keeps the task running; it will be stepped again next tick
	SignalContinue Signal = iota

	// SignalComplete moves the task to Succeeded
	SignalComplete

	// SignalFail moves the task to Failed
	SignalFail
)

func (s Signal) String() string {
	switch s {
	case SignalContinue:
		return "continue"
	case SignalComplete:
		return "complete"
	case SignalFail:
		return "fail"
	default:
		return "unknown"
	}
}

// TimeoutPolicy decides the outcome when a deadline expires.
type TimeoutPolicy int

const (
	// TimeoutComplete treats deadline expiry as success
	TimeoutComplete TimeoutPolicy = iota

	// TimeoutFail treats the deadline as a hard limit (ErrDeadlineExceeded)
	TimeoutFail
)

func (p TimeoutPolicy) String() string {
	if p == TimeoutFail {
		return "fail"
	}
	return "complete"
}
