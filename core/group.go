package core

import (
	"fmt"
)

// GroupMode is how a group combines its members.
type GroupMode int

const (
	// Sequential runs members one at a time in insertion order
	Sequential GroupMode = iota

	// Parallel ticks every unfinished member within the same tick
	Parallel
)

func (m GroupMode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// GroupTraits configures a group.
type GroupTraits struct {
	Name string
	Mode GroupMode

	// ContinueOnFailure: a sequential group skips failed or canceled members
	// instead of aborting; a parallel group lets siblings of a failed member
	// run to completion before resolving Failed.
	ContinueOnFailure bool

	// CancelOnFailure makes a parallel group resolve Canceled instead of
	// Failed when a member fails.
	CancelOnFailure bool

	// Deadline caps the group's Running time in seconds. Zero means no deadline.
	Deadline      float64
	TimeoutPolicy TimeoutPolicy
}

// Outcome is the recorded terminal result of one member.
type Outcome struct {
	ID    TaskID
	Name  string
	Kind  Kind
	State State
	Err   error
}

// Group is an ordered collection of tasks and groups with sequential or
// parallel semantics. Its state is derived from its members on every
// advance; clients can only Start, Pause, Resume or Cancel it.
type Group struct {
	id     TaskID
	traits GroupTraits

	members []Schedulable
	settled []bool
	cursor  int

	outcomes []Outcome

	state   State
	err     error
	elapsed float64

	groupID   TaskID
	submitted bool
	hooks     finishHooks
}

var _ Schedulable = (*Group)(nil)

// NewGroup creates a group in Created state with the given members.
func NewGroup(traits GroupTraits, members ...Schedulable) (*Group, error) {
	g := &Group{}
	g.init(traits)
	if err := g.Add(members...); err != nil {
		return nil, err
	}
	return g, nil
}

// NewSequence creates an unnamed sequential group.
func NewSequence(members ...Schedulable) (*Group, error) {
	return NewGroup(GroupTraits{Mode: Sequential}, members...)
}

// NewParallel creates an unnamed parallel group.
func NewParallel(members ...Schedulable) (*Group, error) {
	return NewGroup(GroupTraits{Mode: Parallel}, members...)
}

func (g *Group) init(traits GroupTraits) {
	*g = Group{
		id:     GenerateTaskID(),
		traits: traits,
	}
	if g.traits.Name == "" {
		g.traits.Name = traits.Mode.String() + "-" + g.id.String()[:8]
	}
}

func (g *Group) reset() {
	*g = Group{}
}

// Add appends members while the group and every member are still Created.
// Either all members are added or none.
func (g *Group) Add(members ...Schedulable) error {
	if g.state != StateCreated {
		return fmt.Errorf("add to group %q: %w", g.traits.Name, ErrNotCreated)
	}

	seen := make(map[TaskID]struct{}, len(members))
	for _, m := range members {
		if err := g.checkMember(m); err != nil {
			return err
		}
		if _, dup := seen[m.ID()]; dup {
			return fmt.Errorf("add %q to group %q twice: %w", m.Name(), g.traits.Name, ErrAlreadyOwned)
		}
		seen[m.ID()] = struct{}{}
	}

	for _, m := range members {
		m.attach(g.id)
		g.members = append(g.members, m)
		g.settled = append(g.settled, false)
	}
	return nil
}

func (g *Group) checkMember(m Schedulable) error {
	if isNilSchedulable(m) {
		return fmt.Errorf("add to group %q: %w", g.traits.Name, ErrNilSchedulable)
	}
	if m.contains(g.id) {
		return fmt.Errorf("add %q to group %q: %w", m.Name(), g.traits.Name, ErrCycle)
	}
	if m.owned() {
		return fmt.Errorf("add %q to group %q: %w", m.Name(), g.traits.Name, ErrAlreadyOwned)
	}
	if m.State() != StateCreated {
		return fmt.Errorf("add %q to group %q: %w", m.Name(), g.traits.Name, ErrNotCreated)
	}
	return nil
}

func (g *Group) ID() TaskID          { return g.id }
func (g *Group) Name() string        { return g.traits.Name }
func (g *Group) Kind() Kind          { return KindGroup }
func (g *Group) State() State        { return g.state }
func (g *Group) Err() error          { return g.err }
func (g *Group) Elapsed() float64    { return g.elapsed }
func (g *Group) GroupID() TaskID     { return g.groupID }
func (g *Group) Traits() GroupTraits { return g.traits }
func (g *Group) Mode() GroupMode     { return g.traits.Mode }
func (g *Group) Len() int            { return len(g.members) }

// Members returns a copy of the member list in insertion order.
func (g *Group) Members() []Schedulable {
	return append([]Schedulable(nil), g.members...)
}

// Cursor returns the index of the active member of a sequential group.
func (g *Group) Cursor() int { return g.cursor }

// Outcomes returns the members' terminal results in the order the group observed them.
func (g *Group) Outcomes() []Outcome {
	return append([]Outcome(nil), g.outcomes...)
}

// Start moves the group from Created to Running. Members start when advanced.
func (g *Group) Start() error {
	if g.state != StateCreated {
		return transitionError("start group "+g.traits.Name, g.state)
	}
	g.state = StateRunning
	return nil
}

// Pause pauses the group and every Running member.
func (g *Group) Pause() bool {
	if g.state != StateRunning {
		return false
	}
	for _, m := range g.members {
		if !m.State().IsTerminal() {
			m.Pause()
		}
	}
	g.state = StatePaused
	return true
}

// Resume resumes the group and every Paused member. That includes members
// paused individually before the group was paused; re-pause them after
// Resume to keep them held.
func (g *Group) Resume() bool {
	if g.state != StatePaused {
		return false
	}
	for _, m := range g.members {
		if !m.State().IsTerminal() {
			m.Resume()
		}
	}
	g.state = StateRunning
	return true
}

// Cancel cancels every unfinished member, recursively, then the group.
// Propagation is complete when Cancel returns.
func (g *Group) Cancel() bool {
	if g.state.IsTerminal() {
		return false
	}
	g.cancelMembers()
	g.finish(StateCanceled, nil)
	return true
}

func (g *Group) OnFinish(fn func(Schedulable)) {
	if fn == nil {
		return
	}
	if g.state.IsTerminal() {
		fn(g)
		return
	}
	g.hooks = append(g.hooks, fn)
}

func (g *Group) String() string {
	return fmt.Sprintf("%s group %q (%s, %d members)", g.traits.Mode, g.traits.Name, g.state, len(g.members))
}

func (g *Group) cancelMembers() {
	for _, m := range g.members {
		if !m.State().IsTerminal() {
			m.Cancel()
		}
	}
}

// settle records outcomes for members that became terminal, in member order.
func (g *Group) settle() {
	for i, m := range g.members {
		if g.settled[i] || !m.State().IsTerminal() {
			continue
		}
		g.settled[i] = true
		g.outcomes = append(g.outcomes, Outcome{
			ID:    m.ID(),
			Name:  m.Name(),
			Kind:  m.Kind(),
			State: m.State(),
			Err:   m.Err(),
		})
	}
}

func (g *Group) finish(state State, err error) {
	g.settle()
	g.state = state
	g.err = err
	g.hooks.fire(g)
}

// memberError wraps a member's failure for the group's Err.
func memberError(m Schedulable) error {
	if m.Err() == nil {
		return nil
	}
	return fmt.Errorf("member %q: %w", m.Name(), m.Err())
}

func (g *Group) advance(e *GroupExecutor, dt float64) State {
	return e.Advance(g, dt)
}

func (g *Group) attach(group TaskID) { g.groupID = group }
func (g *Group) markSubmitted()      { g.submitted = true }
func (g *Group) owned() bool         { return g.submitted || !g.groupID.IsZero() }
func (g *Group) isNil() bool         { return g == nil }

func (g *Group) contains(id TaskID) bool {
	if g.id == id {
		return true
	}
	for _, m := range g.members {
		if m.contains(id) {
			return true
		}
	}
	return false
}

func (g *Group) release(tasks Pool[*Task], groups Pool[*Group]) {
	for _, m := range g.members {
		m.release(tasks, groups)
	}
	if groups == nil {
		return
	}
	g.reset()
	groups.Release(g)
}
