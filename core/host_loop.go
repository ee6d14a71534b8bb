package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const defaultHostLoopQueue = 100

// HostLoop binds a Dispatcher to a dedicated goroutine that ticks it at a
// fixed interval with the measured wall-clock delta.
//
// The Dispatcher itself is not safe for concurrent use. HostLoop is the
// serialization point: work posted from any goroutine runs on the loop
// goroutine between ticks, so it never overlaps a Tick.
type HostLoop struct {
	dispatcher *Dispatcher
	interval   time.Duration

	// Work queue: closures applied on the loop goroutine
	workQueue chan func(*Dispatcher)

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	// For graceful shutdown
	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	ticks      atomic.Uint64
	tickErrors atomic.Int64

	name   string
	logger Logger
	mu     sync.Mutex
}

// NewHostLoop creates and starts a HostLoop for d.
// It immediately spawns the goroutine that owns d from now on.
func NewHostLoop(d *Dispatcher, interval time.Duration) *HostLoop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &HostLoop{
		dispatcher:   d,
		interval:     interval,
		workQueue:    make(chan func(*Dispatcher), defaultHostLoopQueue),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		shutdownChan: make(chan struct{}),
		name:         d.Name(),
		logger:       d.logger,
	}

	go l.runLoop()

	return l
}

// Name returns the name of the host loop
func (l *HostLoop) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// SetName sets the name of the host loop
func (l *HostLoop) SetName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.name = name
}

// Post queues fn to run on the loop goroutine before the next tick.
func (l *HostLoop) Post(fn func(*Dispatcher)) error {
	if l.closed.Load() {
		return ErrLoopClosed
	}

	select {
	case <-l.ctx.Done():
		return ErrLoopClosed
	case l.workQueue <- fn:
		return nil
	}
}

// Submit submits s on the loop goroutine and waits for the handle.
func (l *HostLoop) Submit(ctx context.Context, s Schedulable) (Handle, error) {
	type result struct {
		handle Handle
		err    error
	}

	resultChan := make(chan result, 1)
	if err := l.Post(func(d *Dispatcher) {
		h, err := d.Submit(s)
		resultChan <- result{handle: h, err: err}
	}); err != nil {
		return Handle{}, err
	}

	select {
	case r := <-resultChan:
		return r.handle, r.err
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	case <-l.stopped:
		return Handle{}, ErrLoopClosed
	}
}

// Cancel cancels h on the loop goroutine and waits for the outcome.
func (l *HostLoop) Cancel(ctx context.Context, h Handle) (bool, error) {
	resultChan := make(chan bool, 1)
	if err := l.Post(func(d *Dispatcher) {
		resultChan <- d.Cancel(h)
	}); err != nil {
		return false, err
	}

	select {
	case ok := <-resultChan:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-l.stopped:
		return false, ErrLoopClosed
	}
}

// Shutdown marks the loop as closed and signals shutdown waiters. The loop
// goroutine exits and shuts the dispatcher down. Safe to call from inside a step.
func (l *HostLoop) Shutdown() {
	l.shutdownOnce.Do(func() {
		l.closed.Store(true)
		l.cancel()
		close(l.shutdownChan)
	})
}

// IsClosed returns true if the loop has been shut down or stopped
func (l *HostLoop) IsClosed() bool {
	return l.closed.Load()
}

// Stop shuts the loop down and waits for the loop goroutine to exit.
// Must not be called from the loop goroutine.
func (l *HostLoop) Stop() {
	l.once.Do(func() {
		l.Shutdown()
		<-l.stopped
	})
}

// runLoop is the core of this loop, it occupies a dedicated goroutine
func (l *HostLoop) runLoop() {
	defer close(l.stopped)
	defer l.dispatcher.Shutdown()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case fn := <-l.workQueue:
			l.run(fn)

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := l.dispatcher.Tick(dt); err != nil {
				l.tickErrors.Add(1)
				l.logger.Error("tick failed", F("loop", l.Name()), F("error", err))
			}
			l.ticks.Add(1)

		case <-l.ctx.Done():
			return
		}
	}
}

func (l *HostLoop) run(fn func(*Dispatcher)) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("posted work panicked", F("loop", l.Name()), F("panic", rec))
		}
	}()
	fn(l.dispatcher)
}

// WaitIdle blocks until all work posted before the call has been applied.
//
// Returns error if:
// - Context is cancelled or deadline exceeded
// - Loop is closed when WaitIdle is called
func (l *HostLoop) WaitIdle(ctx context.Context) error {
	if l.IsClosed() {
		return fmt.Errorf("wait idle: %w", ErrLoopClosed)
	}

	done := make(chan struct{})
	if err := l.Post(func(*Dispatcher) { close(done) }); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopClosed
	}
}

// WaitShutdown blocks until Shutdown() is called on this loop.
func (l *HostLoop) WaitShutdown(ctx context.Context) error {
	select {
	case <-l.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the loop's counters.
func (l *HostLoop) Stats() HostLoopStats {
	return HostLoopStats{
		Name:       l.Name(),
		Interval:   l.interval,
		Pending:    len(l.workQueue),
		Ticks:      l.ticks.Load(),
		TickErrors: l.tickErrors.Load(),
		Closed:     l.closed.Load(),
	}
}
