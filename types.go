package tickrunner

import (
	"time"

	"github.com/Swind/go-tick-runner/core"
)

// Re-export commonly used types from core package for convenience.
// This allows users to import only the tickrunner package for most use cases.

// Task is a unit of work advanced once per tick
type Task = core.Task

// TaskTraits configures a task's name, start delay and deadline
type TaskTraits = core.TaskTraits

// Group combines tasks and groups sequentially or in parallel
type Group = core.Group

// GroupTraits configures a group's mode and failure policy
type GroupTraits = core.GroupTraits

// Schedulable is a task or a group
type Schedulable = core.Schedulable

type (
	Step             = core.Step
	StepFunc         = core.StepFunc
	StepContext      = core.StepContext
	State            = core.State
	Signal           = core.Signal
	Handle           = core.Handle
	Dispatcher       = core.Dispatcher
	DispatcherConfig = core.DispatcherConfig
	HostLoop         = core.HostLoop
	CompletionRecord = core.CompletionRecord
)

// Signals returned by a Step
const (
	SignalContinue = core.SignalContinue
	SignalComplete = core.SignalComplete
	SignalFail     = core.SignalFail
)

// Lifecycle states
const (
	StateCreated   = core.StateCreated
	StateRunning   = core.StateRunning
	StatePaused    = core.StatePaused
	StateSucceeded = core.StateSucceeded
	StateFailed    = core.StateFailed
	StateCanceled  = core.StateCanceled
)

// Group modes
const (
	Sequential = core.Sequential
	Parallel   = core.Parallel
)

// Constructors
var (
	NewTask                 = core.NewTask
	NewFuncTask             = core.NewFuncTask
	NewGroup                = core.NewGroup
	NewSequence             = core.NewSequence
	NewParallel             = core.NewParallel
	NewDispatcher           = core.NewDispatcher
	DefaultDispatcherConfig = core.DefaultDispatcherConfig
	DefaultTaskTraits       = core.DefaultTaskTraits
)

// NewHostLoop creates and starts a HostLoop that ticks d every interval.
func NewHostLoop(d *Dispatcher, interval time.Duration) *HostLoop {
	return core.NewHostLoop(d, interval)
}

// CompletionObserverFunc adapts a function to a completion observer
type CompletionObserverFunc = core.CompletionObserverFunc
