package core

// Kind distinguishes the two Schedulable variants.
type Kind int

const (
	KindTask Kind = iota
	KindGroup
)

func (k Kind) String() string {
	if k == KindGroup {
		return "group"
	}
	return "task"
}

// Schedulable is implemented by *Task and *Group only. Executors and the
// Dispatcher treat both uniformly through it; nested groups recurse through
// the same advance contract.
type Schedulable interface {
	ID() TaskID
	Name() string
	Kind() Kind
	State() State

	// Err returns the captured failure, if any.
	Err() error

	// Elapsed returns the seconds spent Running.
	Elapsed() float64

	// GroupID returns the owning group's ID, or the zero TaskID for roots.
	GroupID() TaskID

	Start() error
	Pause() bool
	Resume() bool
	Cancel() bool

	// OnFinish registers fn to be called once when the entry becomes terminal.
	OnFinish(fn func(Schedulable))

	advance(e *GroupExecutor, dt float64) State
	attach(group TaskID)
	markSubmitted()
	owned() bool
	contains(id TaskID) bool
	release(tasks Pool[*Task], groups Pool[*Group])
	isNil() bool
}

// isNilSchedulable also catches typed nil pointers stored in the interface.
func isNilSchedulable(s Schedulable) bool {
	return s == nil || s.isNil()
}

// finishHooks holds OnFinish callbacks; they are fired once and dropped.
type finishHooks []func(Schedulable)

func (h *finishHooks) fire(s Schedulable) {
	hooks := *h
	*h = nil
	for _, fn := range hooks {
		func() {
			defer func() { recover() }()
			fn(s)
		}()
	}
}
