package core

import (
	"fmt"
	"reflect"
	"runtime"
)

// =============================================================================
// Step: the polymorphic unit of work run once per tick
// =============================================================================

// Step is the behavior of a task. It is invoked exactly once per tick while
// the task is Running and reports whether the task continues, completes or
// fails. Returning a non-nil error always fails the task.
type Step interface {
	Step(ctx *StepContext) (Signal, error)
}

// StepFunc adapts a plain function to Step.
type StepFunc func(ctx *StepContext) (Signal, error)

func (f StepFunc) Step(ctx *StepContext) (Signal, error) {
	return f(ctx)
}

// StepContext is handed to a step on every invocation.
type StepContext struct {
	TaskID TaskID
	Name   string

	// DeltaTime is the tick's delta in seconds
	DeltaTime float64

	// Elapsed is the Running time including this tick
	Elapsed float64

	// Steps is the 1-based index of this invocation
	Steps int

	task *Task
}

// ReportProgress records the task's progress, clamped to [0, 1].
func (c *StepContext) ReportProgress(p float64) {
	if c.task == nil {
		return
	}
	switch {
	case p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	c.task.progress = p
}

// =============================================================================
// TaskTraits: timing and naming attributes of a task
// =============================================================================

type TaskTraits struct {
	// Name is used in logs and completion records. Resolved from the step when empty.
	Name string

	// StartDelay is the number of seconds the task waits in Created before it starts.
	StartDelay float64

	// Deadline caps the Running time in seconds. Zero means no deadline.
	Deadline float64

	// TimeoutPolicy decides the outcome when Deadline expires.
	TimeoutPolicy TimeoutPolicy
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{TimeoutPolicy: TimeoutComplete}
}

// =============================================================================
// Task
// =============================================================================

// Task is the smallest schedulable unit: a Step plus its state machine.
// A Task is advanced only by a TaskExecutor; Start, Pause, Resume and Cancel
// may be called by clients at any time from the dispatcher's goroutine.
type Task struct {
	id     TaskID
	name   string
	step   Step
	traits TaskTraits

	state    State
	err      error
	delay    float64
	elapsed  float64
	steps    int
	progress float64

	groupID   TaskID
	submitted bool
	hooks     finishHooks
}

var _ Schedulable = (*Task)(nil)

// NewTask creates a task in Created state.
func NewTask(step Step, traits TaskTraits) *Task {
	t := &Task{}
	t.init(step, traits)
	return t
}

// NewFuncTask creates a task from a step function.
func NewFuncTask(fn func(ctx *StepContext) (Signal, error), traits TaskTraits) *Task {
	return NewTask(StepFunc(fn), traits)
}

func (t *Task) init(step Step, traits TaskTraits) {
	*t = Task{
		id:     GenerateTaskID(),
		name:   resolveStepName(step, traits.Name),
		step:   step,
		traits: traits,
		delay:  traits.StartDelay,
	}
}

// reset clears the task before it goes back to a pool.
func (t *Task) reset() {
	*t = Task{}
}

func (t *Task) ID() TaskID         { return t.id }
func (t *Task) Name() string       { return t.name }
func (t *Task) Kind() Kind         { return KindTask }
func (t *Task) State() State       { return t.state }
func (t *Task) Err() error         { return t.err }
func (t *Task) Elapsed() float64   { return t.elapsed }
func (t *Task) GroupID() TaskID    { return t.groupID }
func (t *Task) Traits() TaskTraits { return t.traits }

// Steps returns how many times the step has been invoked.
func (t *Task) Steps() int { return t.steps }

// Progress returns the last value passed to StepContext.ReportProgress.
func (t *Task) Progress() float64 { return t.progress }

// Start moves the task from Created to Running, skipping any remaining
// start delay. Any other state is a usage error.
func (t *Task) Start() error {
	if t.state != StateCreated {
		return transitionError("start task "+t.name, t.state)
	}
	t.delay = 0
	t.state = StateRunning
	return nil
}

// Pause is valid only while Running.
func (t *Task) Pause() bool {
	if t.state != StateRunning {
		return false
	}
	t.state = StatePaused
	return true
}

// Resume is valid only while Paused.
func (t *Task) Resume() bool {
	if t.state != StatePaused {
		return false
	}
	t.state = StateRunning
	return true
}

// Cancel is valid from any non-terminal state and idempotent.
func (t *Task) Cancel() bool {
	if t.state.IsTerminal() {
		return false
	}
	t.finish(StateCanceled, nil)
	return true
}

func (t *Task) OnFinish(fn func(Schedulable)) {
	if fn == nil {
		return
	}
	if t.state.IsTerminal() {
		fn(t)
		return
	}
	t.hooks = append(t.hooks, fn)
}

func (t *Task) String() string {
	return fmt.Sprintf("task %q (%s)", t.name, t.state)
}

func (t *Task) finish(state State, err error) {
	t.state = state
	t.err = err
	t.hooks.fire(t)
}

func (t *Task) advance(e *GroupExecutor, dt float64) State {
	return e.tasks.Advance(t, dt)
}

func (t *Task) attach(group TaskID) { t.groupID = group }
func (t *Task) markSubmitted()      { t.submitted = true }
func (t *Task) owned() bool         { return t.submitted || !t.groupID.IsZero() }
func (t *Task) contains(id TaskID) bool {
	return t.id == id
}
func (t *Task) isNil() bool { return t == nil }

func (t *Task) release(tasks Pool[*Task], _ Pool[*Group]) {
	if tasks == nil {
		return
	}
	t.reset()
	tasks.Release(t)
}

// resolveStepName picks a display name: explicit, then the step function's
// symbol, then the step's type.
func resolveStepName(step Step, explicit string) string {
	if explicit != "" {
		return explicit
	}

	if step == nil {
		return "anonymous"
	}

	v := reflect.ValueOf(step)
	if v.Kind() != reflect.Func {
		return reflect.TypeOf(step).String()
	}

	pc := v.Pointer()
	if pc == 0 {
		return "anonymous"
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil || fn.Name() == "" {
		return "anonymous"
	}
	return fn.Name()
}
