// Package ratelimit bounds how often one caller may ask questions. It is
// shared by the HTTP API (keyed by remote address) and the Matrix gateway
// (keyed by sender MXID), since every question costs an embedding and a
// chat-completion call.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of calls allowed per caller per window
	// when no explicit limit is configured.
	DefaultLimit = 20

	defaultWindow = time.Minute
)

// Limiter enforces a per-key sliding-window rate limit.
//
// It holds the call timestamps for each key within the current window and
// prunes stale entries on every Allow call, so memory stays bounded to
// O(limit) entries per active key. Keys idle for a full window are swept
// at most once per window.
//
// A nil *Limiter allows everything. Limiter is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string][]time.Time
	swept    time.Time
	now      func() time.Time
}

// New returns a Limiter that allows at most limit calls per key within
// window. limit <= 0 uses DefaultLimit; window <= 0 uses one minute.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{
		limit:    limit,
		window:   window,
		counters: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether key may make another call and, if so, records it.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	valid := l.prune(key, now)
	if len(valid) >= l.limit {
		l.counters[key] = valid
		return false
	}
	l.counters[key] = append(valid, now)
	return true
}

// Remaining returns how many calls key can still make in the current
// window.
func (l *Limiter) Remaining(key string) int {
	if l == nil {
		return DefaultLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	valid := l.prune(key, l.now())
	if len(valid) == 0 {
		delete(l.counters, key)
	} else {
		l.counters[key] = valid
	}
	rem := l.limit - len(valid)
	if rem < 0 {
		return 0
	}
	return rem
}

// Limit returns the configured calls per window.
func (l *Limiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.limit
}

// sweep deletes keys with no call inside the window. Callers hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.swept) < l.window {
		return
	}
	l.swept = now
	cutoff := now.Add(-l.window)
	for key, times := range l.counters {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.counters, key)
		}
	}
}

// prune drops timestamps outside the window, reusing the backing array.
// Callers hold l.mu.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	existing := l.counters[key]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
