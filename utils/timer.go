package utils

import (
	"sync"
	"time"
)

// Timer measures the elapsed time between consecutive stages of an operation.
type Timer struct {
	mu    sync.Mutex
	start time.Time
	last  time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	now := time.Now()
	return &Timer{start: now, last: now}
}

// Lap returns the time elapsed since the previous lap (or the start) and begins a new lap.
func (t *Timer) Lap() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	return d
}

// Total returns the time elapsed since the timer was started.
func (t *Timer) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return time.Since(t.start)
}
