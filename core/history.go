package core

import (
	"sync"
	"time"
)

const defaultHistoryCapacity = 100

// CompletionRecord describes a root entry retired by the dispatcher.
type CompletionRecord struct {
	Handle Handle
	Name   string
	Kind   Kind
	State  State

	// Err is the captured failure for Failed entries.
	Err error

	SubmittedTick uint64
	FinishedTick  uint64

	// Elapsed is the Running time in seconds.
	Elapsed    float64
	FinishedAt time.Time
}

// completionHistory is a fixed-size ring buffer of the most recent records.
// Stats readers may run on other goroutines, so it is locked.
type completionHistory struct {
	mu    sync.Mutex
	items []CompletionRecord
	head  int
	count int
}

func newCompletionHistory(capacity int) completionHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return completionHistory{items: make([]CompletionRecord, capacity)}
}

func (h *completionHistory) Add(record CompletionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (h *completionHistory) Recent(limit int) []CompletionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]CompletionRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *completionHistory) Last() (CompletionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return CompletionRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}
