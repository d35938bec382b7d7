package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// Memory is a fixed-window counter keyed by client fingerprint. State is
// process-local, so it is only a correct guard for a single instance; use
// RedisLimiter when running more than one.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time

	// sweepEvery bounds how often the expired-entry sweep runs.
	sweepEvery time.Duration
	lastSweep  time.Time
}

// NewMemory creates an in-process limiter using the wall clock.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock creates an in-process limiter with an injectable clock,
// so tests can drive window expiry deterministically.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries:    make(map[string]*windowEntry),
		now:        now,
		sweepEvery: time.Minute,
	}
}

// Check counts the request against the key's current window. The first
// request of a window (or of an expired one) resets the counter; once the
// count exceeds the limit the request is rejected with the seconds left
// until the window resets.
func (m *Memory) Check(_ context.Context, key string, limit int, window time.Duration) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.maybeSweep(now)

	entry, ok := m.entries[key]
	if !ok || now.After(entry.resetAt) {
		m.entries[key] = &windowEntry{count: 1, resetAt: now.Add(window)}
		return Result{Allowed: true, Remaining: limit - 1}
	}

	entry.count++
	if entry.count > limit {
		retry := entry.resetAt.Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Result{Allowed: false, RetryAfter: retry}
	}

	return Result{Allowed: true, Remaining: limit - entry.count}
}

func (m *Memory) maybeSweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.sweepEvery {
		return
	}
	m.lastSweep = now
	for key, entry := range m.entries {
		if now.After(entry.resetAt) {
			delete(m.entries, key)
		}
	}
}

var _ Limiter = (*Memory)(nil)
