package core

import "time"

// DispatcherStats represents runtime observability state for a dispatcher.
// It is safe to request from any goroutine.
type DispatcherStats struct {
	Name     string
	Active   int
	Ticks    uint64
	Rejected int64
	Closed   bool

	Succeeded int64
	Failed    int64
	Canceled  int64

	LastTickDuration time.Duration
	LastCompletion   string
	LastCompletionAt time.Time
}

// HostLoopStats represents runtime observability state for a host loop.
type HostLoopStats struct {
	Name       string
	Interval   time.Duration
	Pending    int
	Ticks      uint64
	TickErrors int64
	Closed     bool
}
