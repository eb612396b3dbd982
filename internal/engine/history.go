package engine

import (
	"sync"
	"time"
)

const (
	// DefaultHistoryCapacity bounds the in-memory history when the
	// configuration does not.
	DefaultHistoryCapacity = 1000

	// DefaultHistoryLimit is the query limit applied when a caller
	// asks for recent entries without one.
	DefaultHistoryLimit = 50
)

// History is the bounded, append-only record of execution results.
// When the capacity is reached the oldest entries are evicted, but the
// lifetime run counters keep counting so statistics stay accurate.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []*ExecutionResult

	total     int
	succeeded int
	lastRun   time.Time
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Append records one result, evicting the oldest entry once the
// capacity is exceeded. Safe for concurrent use.
func (h *History) Append(res *ExecutionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, res)
	if len(h.entries) > h.capacity {
		overflow := len(h.entries) - h.capacity
		h.entries = append(h.entries[:0], h.entries[overflow:]...)
	}

	h.total++
	if res.Success {
		h.succeeded++
	}
	if res.Timestamp.After(h.lastRun) {
		h.lastRun = res.Timestamp
	}
}

// Recent returns up to limit retained entries, newest first. A
// non-positive limit applies the default.
func (h *History) Recent(limit int) []*ExecutionResult {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.entries)
	if limit > n {
		limit = n
	}
	out := make([]*ExecutionResult, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.entries[i])
	}
	return out
}

// ByHook returns up to limit retained entries for one hook, newest
// first.
func (h *History) ByHook(hookID string, limit int) []*ExecutionResult {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*ExecutionResult, 0, limit)
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if h.entries[i].HookID == hookID {
			out = append(out, h.entries[i])
		}
	}
	return out
}

// Len reports how many entries are currently retained.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// TotalRuns reports the lifetime number of recorded runs, evicted
// entries included.
func (h *History) TotalRuns() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// SucceededRuns reports the lifetime number of successful runs.
func (h *History) SucceededRuns() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.succeeded
}

// LastRun reports the timestamp of the most recent run, zero when no
// run has been recorded.
func (h *History) LastRun() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastRun
}
