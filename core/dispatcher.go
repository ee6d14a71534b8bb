package core

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Dispatcher owns the active root entries and drives them once per host tick.
//
// The registry is single-threaded: Submit, Cancel, Pause, Resume, Tick and
// Shutdown must all be called from the host's update goroutine. Use a
// HostLoop to serialize calls coming from other goroutines. Stats and
// RecentCompletions are safe from any goroutine.
type Dispatcher struct {
	name string

	entries []*entry
	index   map[TaskID]*entry

	groups    *GroupExecutor
	observers []CompletionObserver

	logger          Logger
	metrics         Metrics
	rejectedHandler RejectedHandler
	taskPool        Pool[*Task]
	groupPool       Pool[*Group]

	history completionHistory
	ticking bool

	// Observability, readable from other goroutines
	closed       atomic.Bool
	ticks        atomic.Uint64
	active       atomic.Int32
	rejected     atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	canceled     atomic.Int64
	lastTickNano atomic.Int64
}

type entry struct {
	item          Schedulable
	handle        Handle
	submittedTick uint64
}

// NewDispatcher creates a Dispatcher. A nil config uses DefaultDispatcherConfig.
func NewDispatcher(config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = DefaultDispatcherConfig()
	}

	d := &Dispatcher{
		name:            config.Name,
		index:           make(map[TaskID]*entry),
		logger:          config.Logger,
		metrics:         config.Metrics,
		rejectedHandler: config.RejectedHandler,
		taskPool:        config.TaskPool,
		groupPool:       config.GroupPool,
		history:         newCompletionHistory(config.HistoryCapacity),
	}

	// Use defaults if not provided
	if d.name == "" {
		d.name = "dispatcher"
	}
	if d.logger == nil {
		d.logger = NewNoOpLogger()
	}
	if d.metrics == nil {
		d.metrics = &NilMetrics{}
	}
	if d.rejectedHandler == nil {
		d.rejectedHandler = &DefaultRejectedHandler{}
	}

	tasks := NewTaskExecutor(&ExecutorConfig{
		Name:         d.name,
		Logger:       d.logger,
		PanicHandler: config.PanicHandler,
		Metrics:      d.metrics,
	})
	d.groups = NewGroupExecutor(tasks)

	return d
}

// Name returns the dispatcher's name.
func (d *Dispatcher) Name() string { return d.name }

// AddObserver registers an observer for retired root entries.
func (d *Dispatcher) AddObserver(observer CompletionObserver) {
	if observer == nil {
		return
	}
	d.observers = append(d.observers, observer)
}

// Submit registers s as a root entry. It starts on the next Tick.
func (d *Dispatcher) Submit(s Schedulable) (Handle, error) {
	if isNilSchedulable(s) {
		return Handle{}, ErrNilSchedulable
	}
	if d.closed.Load() {
		d.reject(s, "shutdown")
		return Handle{}, fmt.Errorf("submit %q: %w", s.Name(), ErrDispatcherClosed)
	}
	if s.owned() {
		d.reject(s, "already owned")
		return Handle{}, fmt.Errorf("submit %q: %w", s.Name(), ErrAlreadyOwned)
	}
	if s.State() != StateCreated {
		d.reject(s, "not created")
		return Handle{}, fmt.Errorf("submit %q (%s): %w", s.Name(), s.State(), ErrNotCreated)
	}

	s.markSubmitted()
	e := &entry{
		item:          s,
		handle:        Handle(s.ID()),
		submittedTick: d.ticks.Load(),
	}
	d.entries = append(d.entries, e)
	d.index[s.ID()] = e
	d.active.Store(int32(len(d.entries)))

	d.logger.Debug("entry submitted", F("name", s.Name()), F("kind", s.Kind()), F("handle", e.handle))
	return e.handle, nil
}

func (d *Dispatcher) reject(s Schedulable, reason string) {
	d.rejected.Add(1)
	d.rejectedHandler.HandleRejected(d.name, s.Name(), reason)
	d.metrics.RecordSubmissionRejected(d.name, reason)
}

// Cancel cancels the entry behind h. It returns false for unknown or
// already terminal entries. The entry is retired on the next Tick.
func (d *Dispatcher) Cancel(h Handle) bool {
	e, ok := d.index[h.ID()]
	if !ok {
		return false
	}
	return e.item.Cancel()
}

// Pause pauses the entry behind h.
func (d *Dispatcher) Pause(h Handle) bool {
	e, ok := d.index[h.ID()]
	if !ok {
		return false
	}
	return e.item.Pause()
}

// Resume resumes the entry behind h.
func (d *Dispatcher) Resume(h Handle) bool {
	e, ok := d.index[h.ID()]
	if !ok {
		return false
	}
	return e.item.Resume()
}

// Lookup returns the active entry behind h.
func (d *Dispatcher) Lookup(h Handle) (Schedulable, bool) {
	e, ok := d.index[h.ID()]
	if !ok {
		return nil, false
	}
	return e.item, true
}

// State returns the state of the active entry behind h.
func (d *Dispatcher) State(h Handle) (State, error) {
	e, ok := d.index[h.ID()]
	if !ok {
		return 0, fmt.Errorf("state of %s: %w", h, ErrUnknownHandle)
	}
	return e.item.State(), nil
}

// Len returns the number of active root entries.
func (d *Dispatcher) Len() int { return len(d.entries) }

// IsClosed returns true after Shutdown.
func (d *Dispatcher) IsClosed() bool { return d.closed.Load() }

// Tick advances every active root entry once, in submission order, then
// retires the entries that reached a terminal state. Entries submitted
// during the tick start on the next one. Individual task failures never
// surface here; only misuse of the dispatcher does.
func (d *Dispatcher) Tick(dt float64) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("tick with delta %v: %w", dt, ErrInvalidDeltaTime)
	}
	if d.ticking {
		return ErrReentrantTick
	}
	d.ticking = true
	defer func() { d.ticking = false }()

	startedAt := time.Now()
	tick := d.ticks.Add(1)

	n := len(d.entries)
	for i := 0; i < n && !d.closed.Load(); i++ {
		d.groups.AdvanceEntry(d.entries[i].item, dt)
	}
	d.retire(tick)
	if d.closed.Load() {
		// Shutdown from an observer leaves canceled entries behind
		d.retire(tick)
	}

	elapsed := time.Since(startedAt)
	d.lastTickNano.Store(int64(elapsed))
	d.metrics.RecordTickDuration(d.name, elapsed)
	d.metrics.RecordActiveEntries(d.name, len(d.entries))
	return nil
}

// retire removes terminal entries, keeping submission order for the rest.
func (d *Dispatcher) retire(tick uint64) {
	var done []*entry
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.item.State().IsTerminal() {
			done = append(done, e)
			delete(d.index, e.handle.ID())
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(d.entries); i++ {
		d.entries[i] = nil
	}
	d.entries = kept
	d.active.Store(int32(len(d.entries)))

	for _, e := range done {
		d.complete(e, tick)
	}
}

func (d *Dispatcher) complete(e *entry, tick uint64) {
	s := e.item
	record := CompletionRecord{
		Handle:        e.handle,
		Name:          s.Name(),
		Kind:          s.Kind(),
		State:         s.State(),
		Err:           s.Err(),
		SubmittedTick: e.submittedTick,
		FinishedTick:  tick,
		Elapsed:       s.Elapsed(),
		FinishedAt:    time.Now(),
	}
	d.history.Add(record)

	switch record.State {
	case StateSucceeded:
		d.succeeded.Add(1)
	case StateFailed:
		d.failed.Add(1)
	case StateCanceled:
		d.canceled.Add(1)
	}
	d.metrics.RecordCompletion(d.name, record.Kind, record.State)

	if record.State == StateFailed {
		d.logger.Warn("entry failed", F("name", record.Name), F("kind", record.Kind), F("error", record.Err))
	} else {
		d.logger.Debug("entry finished", F("name", record.Name), F("kind", record.Kind), F("state", record.State))
	}

	for _, observer := range d.observers {
		d.notify(observer, record)
	}

	s.release(d.taskPool, d.groupPool)
}

func (d *Dispatcher) notify(observer CompletionObserver, record CompletionRecord) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("completion observer panicked", F("name", record.Name), F("panic", rec))
		}
	}()
	observer.OnCompletion(record)
}

// Shutdown cancels and retires every active entry, notifying observers,
// and rejects later Submit and Tick calls. It is idempotent.
//
// Called from a step or observer during Tick, it only cancels; the running
// Tick retires the entries and releases them to the pools once the current
// advance has unwound.
func (d *Dispatcher) Shutdown() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}

	for _, e := range d.entries {
		e.item.Cancel()
	}
	if d.ticking {
		d.logger.Info("dispatcher shutting down during tick", F("dispatcher", d.name), F("ticks", d.ticks.Load()))
		return
	}
	d.retire(d.ticks.Load())
	d.entries = nil
	d.index = make(map[TaskID]*entry)
	d.active.Store(0)

	d.logger.Info("dispatcher shut down", F("dispatcher", d.name), F("ticks", d.ticks.Load()))
}

// RecentCompletions returns up to limit completion records, newest first.
func (d *Dispatcher) RecentCompletions(limit int) []CompletionRecord {
	return d.history.Recent(limit)
}

// Stats returns a snapshot of the dispatcher's counters.
func (d *Dispatcher) Stats() DispatcherStats {
	stats := DispatcherStats{
		Name:             d.name,
		Active:           int(d.active.Load()),
		Ticks:            d.ticks.Load(),
		Rejected:         d.rejected.Load(),
		Closed:           d.closed.Load(),
		Succeeded:        d.succeeded.Load(),
		Failed:           d.failed.Load(),
		Canceled:         d.canceled.Load(),
		LastTickDuration: time.Duration(d.lastTickNano.Load()),
	}
	if last, ok := d.history.Last(); ok {
		stats.LastCompletion = last.Name
		stats.LastCompletionAt = last.FinishedAt
	}
	return stats
}
