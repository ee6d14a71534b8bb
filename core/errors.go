package core

import (
	"errors"
	"fmt"
)

// Usage errors: returned to the caller, never fatal to the dispatcher.
var (
	// ErrInvalidTransition indicates a lifecycle call made from the wrong state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrDispatcherClosed is returned by Submit and Tick after Shutdown.
	ErrDispatcherClosed = errors.New("dispatcher is shut down")

	// ErrUnknownHandle indicates a handle that is not (or no longer) registered.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrAlreadyOwned indicates the entry already belongs to a group or dispatcher.
	ErrAlreadyOwned = errors.New("already owned")

	// ErrNotCreated indicates membership or submission after the entry left Created.
	ErrNotCreated = errors.New("not in created state")

	// ErrNilSchedulable is returned when a nil task or group is passed in.
	ErrNilSchedulable = errors.New("nil task or group")

	// ErrCycle is returned when adding a member would nest a group inside itself.
	ErrCycle = errors.New("group cycle")

	// ErrReentrantTick is returned when Tick is called from inside Tick.
	ErrReentrantTick = errors.New("tick called reentrantly")

	// ErrInvalidDeltaTime is returned for negative, NaN or infinite deltas.
	ErrInvalidDeltaTime = errors.New("invalid delta time")

	// ErrLoopClosed is returned by HostLoop calls after Stop or Shutdown.
	ErrLoopClosed = errors.New("host loop is closed")
)

// Step failures: captured on the task, surfaced through Err() and completion records.
var (
	// ErrStepFailed is captured when a step signals SignalFail without an error.
	ErrStepFailed = errors.New("step failed")

	// ErrDeadlineExceeded is captured when a hard deadline expires.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// StepPanicError is captured when a step panics.
type StepPanicError struct {
	Value any
	Stack []byte
}

func (e *StepPanicError) Error() string {
	return fmt.Sprintf("step panicked: %v", e.Value)
}

// Unwrap exposes a panicked error value to errors.Is/As.
func (e *StepPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func transitionError(op string, from State) error {
	return fmt.Errorf("%s from %s: %w", op, from, ErrInvalidTransition)
}
