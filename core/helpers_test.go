package core

import (
	"errors"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

// countingStep completes or fails once its call count reaches a threshold.
type countingStep struct {
	calls      int
	completeAt int
	failAt     int
	err        error
}

func (s *countingStep) Step(ctx *StepContext) (Signal, error) {
	s.calls++
	if s.failAt > 0 && s.calls >= s.failAt {
		return SignalFail, s.err
	}
	if s.completeAt > 0 && s.calls >= s.completeAt {
		return SignalComplete, nil
	}
	return SignalContinue, nil
}

// durationTask succeeds after n steps.
func durationTask(name string, n int) (*Task, *countingStep) {
	step := &countingStep{completeAt: n}
	return NewTask(step, TaskTraits{Name: name}), step
}

// failingTask fails on step n with err.
func failingTask(name string, n int, err error) (*Task, *countingStep) {
	step := &countingStep{failAt: n, err: err}
	return NewTask(step, TaskTraits{Name: name}), step
}

// foreverTask never finishes on its own.
func foreverTask(name string) (*Task, *countingStep) {
	step := &countingStep{}
	return NewTask(step, TaskTraits{Name: name}), step
}

func mustGroup(t interface{ Fatalf(string, ...any) }, traits GroupTraits, members ...Schedulable) *Group {
	g, err := NewGroup(traits, members...)
	if err != nil {
		t.Fatalf("NewGroup(%q) failed: %v", traits.Name, err)
	}
	return g
}

// recordingPanicHandler captures HandlePanic calls.
type recordingPanicHandler struct {
	mu     sync.Mutex
	panics []any
	names  []string
}

func (h *recordingPanicHandler) HandlePanic(dispatcher string, taskID TaskID, taskName string, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panics = append(h.panics, panicInfo)
	h.names = append(h.names, taskName)
}

// recordingRejectedHandler captures rejected submissions.
type recordingRejectedHandler struct {
	mu      sync.Mutex
	reasons []string
}

func (h *recordingRejectedHandler) HandleRejected(dispatcher string, name string, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reasons = append(h.reasons, reason)
}

// recordingMetrics counts metric calls.
type recordingMetrics struct {
	mu          sync.Mutex
	ticks       int
	completions map[State]int
	panics      int
	active      int
	rejected    []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{completions: make(map[State]int)}
}

func (m *recordingMetrics) RecordTickDuration(dispatcher string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
}

func (m *recordingMetrics) RecordCompletion(dispatcher string, kind Kind, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions[state]++
}

func (m *recordingMetrics) RecordStepPanic(dispatcher string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordActiveEntries(dispatcher string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = count
}

func (m *recordingMetrics) RecordSubmissionRejected(dispatcher string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, reason)
}

// newTestDispatcher returns a dispatcher with quiet handlers.
func newTestDispatcher() (*Dispatcher, *recordingRejectedHandler) {
	rejected := &recordingRejectedHandler{}
	config := DefaultDispatcherConfig()
	config.Name = "test"
	config.RejectedHandler = rejected
	config.PanicHandler = &recordingPanicHandler{}
	return NewDispatcher(config), rejected
}
