package service

import "sync"

const defaultRunLogCapacity = 50

// RunLog keeps the most recent run results in memory so operators can
// inspect what the scheduler has been doing without querying the audit
// trail. It is a bounded ring: the oldest entry falls off once capacity is
// reached.
type RunLog struct {
	mu      sync.Mutex
	entries []*RunResult
	cap     int
}

// NewRunLog creates a run log holding up to capacity results.
func NewRunLog(capacity int) *RunLog {
	if capacity <= 0 {
		capacity = defaultRunLogCapacity
	}
	return &RunLog{cap: capacity}
}

// Record appends a run result, evicting the oldest when full.
func (l *RunLog) Record(result *RunResult) {
	if result == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, result)
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Recent returns the recorded results, newest first.
func (l *RunLog) Recent() []*RunResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*RunResult, len(l.entries))
	for i, entry := range l.entries {
		out[len(l.entries)-1-i] = entry
	}
	return out
}
