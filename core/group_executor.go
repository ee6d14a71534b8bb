package core

import "fmt"

// GroupExecutor advances a group by one tick and resolves its aggregate
// state. Members are advanced through the Schedulable contract, so nested
// groups recurse through Advance and tasks go to the TaskExecutor.
type GroupExecutor struct {
	tasks  *TaskExecutor
	logger Logger
}

// NewGroupExecutor creates a GroupExecutor that delegates tasks to tasks.
func NewGroupExecutor(tasks *TaskExecutor) *GroupExecutor {
	if tasks == nil {
		tasks = NewTaskExecutor(nil)
	}
	return &GroupExecutor{tasks: tasks, logger: tasks.logger}
}

// Tasks returns the TaskExecutor members are delegated to.
func (e *GroupExecutor) Tasks() *TaskExecutor { return e.tasks }

// AdvanceEntry advances any Schedulable through the matching executor.
func (e *GroupExecutor) AdvanceEntry(s Schedulable, dt float64) State {
	return s.advance(e, dt)
}

// Advance advances g by dt seconds and returns its resulting state.
func (e *GroupExecutor) Advance(g *Group, dt float64) State {
	switch {
	case g.state == StatePaused, g.state.IsTerminal():
		return g.state
	case g.state == StateCreated:
		g.state = StateRunning
		e.logger.Debug("group started", F("group", g.traits.Name), F("mode", g.traits.Mode), F("members", len(g.members)))
	}

	if len(g.members) == 0 {
		// an empty group has nothing to wait for, deadline or not
		g.finish(StateSucceeded, nil)
		return g.state
	}

	if d := g.traits.Deadline; d > 0 && g.elapsed >= d {
		e.expire(g)
		return g.state
	}
	g.elapsed += dt

	if g.traits.Mode == Parallel {
		e.advanceParallel(g, dt)
	} else {
		e.advanceSequential(g, dt)
	}

	if g.state.IsTerminal() {
		e.logger.Debug("group finished", F("group", g.traits.Name), F("state", g.state))
	}
	return g.state
}

// advanceSequential ticks the member at the cursor. Members that finished
// before their turn are settled without a tick.
func (e *GroupExecutor) advanceSequential(g *Group, dt float64) {
	for g.cursor < len(g.members) {
		m := g.members[g.cursor]
		ticked := false

		if !m.State().IsTerminal() {
			m.advance(e, dt)
			ticked = true
			if g.state.IsTerminal() || !m.State().IsTerminal() {
				return
			}
		}

		if !e.moveCursor(g, m) {
			return
		}
		if ticked {
			break
		}
	}

	if g.cursor >= len(g.members) {
		g.finish(StateSucceeded, nil)
	}
}

// moveCursor applies a terminal member's outcome. It returns false when the
// group was resolved by it.
func (e *GroupExecutor) moveCursor(g *Group, m Schedulable) bool {
	g.settle()

	if m.State() == StateSucceeded || g.traits.ContinueOnFailure {
		if m.State() != StateSucceeded {
			e.logger.Info("group skipped member", F("group", g.traits.Name), F("member", m.Name()), F("state", m.State()))
		}
		g.cursor++
		return true
	}

	g.cancelMembers()
	g.finish(m.State(), memberError(m))
	return false
}

func (e *GroupExecutor) advanceParallel(g *Group, dt float64) {
	for _, m := range g.members {
		if m.State().IsTerminal() {
			continue
		}
		m.advance(e, dt)
		if g.state.IsTerminal() {
			return
		}
	}

	var failed Schedulable
	canceled, done := false, true
	for _, m := range g.members {
		switch m.State() {
		case StateFailed:
			if failed == nil {
				failed = m
			}
		case StateCanceled:
			canceled = true
		case StateSucceeded:
		default:
			done = false
		}
	}

	if failed != nil && !g.traits.ContinueOnFailure {
		g.cancelMembers()
		if g.traits.CancelOnFailure {
			g.finish(StateCanceled, memberError(failed))
		} else {
			g.finish(StateFailed, memberError(failed))
		}
		return
	}

	g.settle()
	if !done {
		return
	}

	switch {
	case failed != nil:
		g.finish(StateFailed, memberError(failed))
	case canceled:
		g.finish(StateCanceled, nil)
	default:
		g.finish(StateSucceeded, nil)
	}
}

func (e *GroupExecutor) expire(g *Group) {
	g.cancelMembers()
	if g.traits.TimeoutPolicy == TimeoutFail {
		g.finish(StateFailed, fmt.Errorf("group %q after %.3fs: %w", g.traits.Name, g.elapsed, ErrDeadlineExceeded))
		e.logger.Warn("group deadline exceeded", F("group", g.traits.Name), F("deadline", g.traits.Deadline))
		return
	}
	g.finish(StateSucceeded, nil)
}
