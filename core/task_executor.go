package core

import (
	"fmt"
	"runtime/debug"
)

// ExecutorConfig carries the collaborators shared by the task and group executors.
type ExecutorConfig struct {
	// Name labels logs and metrics, normally the dispatcher's name.
	Name         string
	Logger       Logger
	PanicHandler PanicHandler
	Metrics      Metrics
}

// TaskExecutor advances a single task by one tick. It holds no per-task
// state; all bookkeeping lives on the Task.
type TaskExecutor struct {
	name         string
	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
}

// NewTaskExecutor creates a TaskExecutor. A nil config or nil fields fall back to defaults.
func NewTaskExecutor(config *ExecutorConfig) *TaskExecutor {
	e := &TaskExecutor{name: "dispatcher"}

	if config != nil {
		if config.Name != "" {
			e.name = config.Name
		}
		e.logger = config.Logger
		e.panicHandler = config.PanicHandler
		e.metrics = config.Metrics
	}

	if e.logger == nil {
		e.logger = NewNoOpLogger()
	}
	if e.panicHandler == nil {
		e.panicHandler = &DefaultPanicHandler{}
	}
	if e.metrics == nil {
		e.metrics = &NilMetrics{}
	}

	return e
}

// Advance advances t by dt seconds and returns its resulting state.
//
// Paused and terminal tasks are left untouched. A Created task first burns
// its start delay, then starts and steps in the same tick. A deadline that
// expired during previous ticks resolves the task without stepping it.
// Errors and panics from the step are captured on the task as Failed.
func (e *TaskExecutor) Advance(t *Task, dt float64) State {
	switch {
	case t.state == StatePaused, t.state.IsTerminal():
		return t.state
	case t.state == StateCreated:
		if t.delay > 0 {
			t.delay -= dt
			if t.delay > 0 {
				return t.state
			}
			t.delay = 0
		}
		t.state = StateRunning
		e.logger.Debug("task started", F("task", t.name), F("id", t.id))
	}

	if d := t.traits.Deadline; d > 0 && t.elapsed >= d {
		e.expire(t)
		return t.state
	}

	t.elapsed += dt
	t.steps++
	signal, err := e.step(t, dt)

	if t.state.IsTerminal() {
		// canceled from inside its own step
		return t.state
	}

	switch {
	case err != nil:
		t.finish(StateFailed, err)
		e.logger.Warn("task failed", F("task", t.name), F("id", t.id), F("error", err))
	case signal == SignalComplete:
		t.finish(StateSucceeded, nil)
		e.logger.Debug("task succeeded", F("task", t.name), F("id", t.id), F("steps", t.steps))
	}
	return t.state
}

func (e *TaskExecutor) expire(t *Task) {
	if t.traits.TimeoutPolicy == TimeoutFail {
		t.finish(StateFailed, fmt.Errorf("task %q after %.3fs: %w", t.name, t.elapsed, ErrDeadlineExceeded))
		e.logger.Warn("task deadline exceeded", F("task", t.name), F("id", t.id), F("deadline", t.traits.Deadline))
		return
	}
	t.finish(StateSucceeded, nil)
	e.logger.Debug("task completed on deadline", F("task", t.name), F("id", t.id))
}

// step invokes the step once, converting panics and fail signals to errors.
func (e *TaskExecutor) step(t *Task, dt float64) (signal Signal, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			e.panicHandler.HandlePanic(e.name, t.id, t.name, rec, stack)
			e.metrics.RecordStepPanic(e.name, rec)
			signal, err = SignalFail, &StepPanicError{Value: rec, Stack: stack}
		}
	}()

	if t.step == nil {
		return SignalFail, fmt.Errorf("task %q has no step: %w", t.name, ErrStepFailed)
	}

	ctx := &StepContext{
		TaskID:    t.id,
		Name:      t.name,
		DeltaTime: dt,
		Elapsed:   t.elapsed,
		Steps:     t.steps,
		task:      t,
	}
	signal, err = t.step.Step(ctx)
	if err != nil {
		return SignalFail, err
	}

	switch signal {
	case SignalContinue, SignalComplete:
		return signal, nil
	case SignalFail:
		return signal, ErrStepFailed
	default:
		return SignalFail, fmt.Errorf("unknown signal %d: %w", int(signal), ErrStepFailed)
	}
}
