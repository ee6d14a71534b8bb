package core

import "sync"

// Pool supplies and reclaims instances. The dispatcher calls Release
// synchronously from inside Tick, so implementations must not block.
type Pool[T any] interface {
	Acquire() T
	Release(item T)
}

// SyncPool is a Pool on top of sync.Pool with an optional reset hook run on Release.
type SyncPool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

func NewSyncPool[T any](newFn func() T, reset func(T)) *SyncPool[T] {
	p := &SyncPool[T]{reset: reset}
	p.pool.New = func() any { return newFn() }
	return p
}

func (p *SyncPool[T]) Acquire() T {
	return p.pool.Get().(T)
}

func (p *SyncPool[T]) Release(item T) {
	if p.reset != nil {
		p.reset(item)
	}
	p.pool.Put(item)
}

// NewTaskPool returns a pool of zeroed tasks.
func NewTaskPool() *SyncPool[*Task] {
	return NewSyncPool(func() *Task { return &Task{} }, (*Task).reset)
}

// NewGroupPool returns a pool of zeroed groups.
func NewGroupPool() *SyncPool[*Group] {
	return NewSyncPool(func() *Group { return &Group{} }, (*Group).reset)
}

// AcquireTask takes a task from pool and initializes it like NewTask.
func AcquireTask(pool Pool[*Task], step Step, traits TaskTraits) *Task {
	t := pool.Acquire()
	t.init(step, traits)
	return t
}

// AcquireGroup takes a group from pool and initializes it like NewGroup.
func AcquireGroup(pool Pool[*Group], traits GroupTraits, members ...Schedulable) (*Group, error) {
	g := pool.Acquire()
	g.init(traits)
	if err := g.Add(members...); err != nil {
		pool.Release(g)
		return nil, err
	}
	return g, nil
}

// ReleaseTree resets s and every member below it and hands them to the
// pools. A nil pool skips its kind. Only use it on trees that were never
// submitted; the dispatcher releases the trees it retires.
func ReleaseTree(s Schedulable, tasks Pool[*Task], groups Pool[*Group]) {
	if isNilSchedulable(s) {
		return
	}
	s.release(tasks, groups)
}
