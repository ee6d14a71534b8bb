package core

import (
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling step panics
// =============================================================================

// PanicHandler is called when a step panics during a tick. The panic has
// already been recovered and the task is about to be marked Failed.
type PanicHandler interface {
	// HandlePanic is called when a step panics.
	//
	// Parameters:
	// - dispatcher: The name of the dispatcher driving the tick
	// - taskID: The ID of the task whose step panicked
	// - taskName: The task's display name
	// - panicInfo: The panic value recovered from the step
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(dispatcher string, taskID TaskID, taskName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(dispatcher string, taskID TaskID, taskName string, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Dispatcher %s] Task %s (%s) panic: %v\nStack trace:\n%s",
		dispatcher, taskName, taskID, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduling metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called from inside Tick and should be fast and non-blocking.
type Metrics interface {
	// RecordTickDuration records how long one Dispatcher.Tick took.
	RecordTickDuration(dispatcher string, duration time.Duration)

	// RecordCompletion records a root entry retiring in a terminal state.
	RecordCompletion(dispatcher string, kind Kind, state State)

	// RecordStepPanic records that a step panicked.
	RecordStepPanic(dispatcher string, panicInfo any)

	// RecordActiveEntries records the number of active root entries.
	RecordActiveEntries(dispatcher string, count int)

	// RecordSubmissionRejected records that Submit refused an entry.
	//
	// Parameters:
	// - dispatcher: The name of the dispatcher
	// - reason: Why the entry was rejected
	RecordSubmissionRejected(dispatcher string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTickDuration(dispatcher string, duration time.Duration) {}
func (m *NilMetrics) RecordCompletion(dispatcher string, kind Kind, state State)   {}
func (m *NilMetrics) RecordStepPanic(dispatcher string, panicInfo any)             {}
func (m *NilMetrics) RecordActiveEntries(dispatcher string, count int)             {}
func (m *NilMetrics) RecordSubmissionRejected(dispatcher string, reason string)    {}

// =============================================================================
// RejectedHandler: Interface for handling rejected submissions
// =============================================================================

// RejectedHandler is called when Dispatcher.Submit refuses an entry:
// - The dispatcher has been shut down
// - The entry is already owned by a group or dispatcher
// - The entry has already left Created
type RejectedHandler interface {
	HandleRejected(dispatcher string, name string, reason string)
}

// DefaultRejectedHandler provides a basic handler that logs rejected submissions.
type DefaultRejectedHandler struct{}

// HandleRejected logs the rejected submission.
func (h *DefaultRejectedHandler) HandleRejected(dispatcher string, name string, reason string) {
	fmt.Printf("[Dispatcher %s] Submission of %s rejected: %s\n", dispatcher, name, reason)
}

// =============================================================================
// CompletionObserver: notified once per retired root entry
// =============================================================================

// CompletionObserver is notified when a root entry reaches a terminal state
// and is removed from the dispatcher.
type CompletionObserver interface {
	OnCompletion(record CompletionRecord)
}

// CompletionObserverFunc adapts a function to CompletionObserver.
type CompletionObserverFunc func(record CompletionRecord)

func (f CompletionObserverFunc) OnCompletion(record CompletionRecord) {
	f(record)
}

// =============================================================================
// DispatcherConfig: Configuration for Dispatcher
// =============================================================================

// DispatcherConfig holds configuration options for Dispatcher.
// All handlers are optional; if not provided, default implementations will be used.
type DispatcherConfig struct {
	// Name labels logs and metrics. Defaults to "dispatcher".
	Name string

	// Logger defaults to NoOpLogger.
	Logger Logger

	// PanicHandler is called when a step panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics defaults to NilMetrics.
	Metrics Metrics

	// RejectedHandler is called when Submit refuses an entry. Defaults to DefaultRejectedHandler.
	RejectedHandler RejectedHandler

	// HistoryCapacity bounds the completion ring buffer. Defaults to 100.
	HistoryCapacity int

	// TaskPool and GroupPool receive retired instances. Nil disables pooling.
	TaskPool  Pool[*Task]
	GroupPool Pool[*Group]
}

// DefaultDispatcherConfig returns a config with default handlers.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		Name:            "dispatcher",
		Logger:          NewNoOpLogger(),
		PanicHandler:    &DefaultPanicHandler{},
		Metrics:         &NilMetrics{},
		RejectedHandler: &DefaultRejectedHandler{},
		HistoryCapacity: defaultHistoryCapacity,
	}
}
