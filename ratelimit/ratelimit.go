// Package ratelimit bounds per-caller request rates with a fixed-window
// counter. The limiter is local to one process instance; cross-instance
// consistency is out of scope and a deployment behind a balancer gets
// instances-times the configured budget. The interface stays the same if a
// shared counter store ever backs it.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed      bool
	Remaining    int
	ResetSeconds int
}

// Limiter admits or rejects a request for a caller key.
type Limiter interface {
	Allow(key string) Decision
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a concurrency-safe in-memory fixed-window Limiter.
type MemoryLimiter struct {
	windowLen time.Duration
	max       int
	now       func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLimiter(windowLen time.Duration, maxRequests int) *MemoryLimiter {
	return &MemoryLimiter{
		windowLen: windowLen,
		max:       maxRequests,
		now:       time.Now,
		windows:   make(map[string]*window),
	}
}

// Allow counts one request for key. The first request for a key, or the
// first after the window expired, resets the count to 1 and opens a new
// window. The increment happens exactly once, before any downstream work.
func (l *MemoryLimiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(l.windowLen)}
		l.windows[key] = w
	} else {
		w.count++
	}

	remaining := l.max - w.count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:      w.count <= l.max,
		Remaining:    remaining,
		ResetSeconds: resetSeconds(w.resetAt, now),
	}
}

// Sweep drops expired windows and reports how many were removed. Entries
// are otherwise never deleted, so the periodic sweep is what bounds memory.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0

	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}

	return removed
}

// Start runs a background sweep every interval until ctx is done.
func (l *MemoryLimiter) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

func resetSeconds(resetAt, now time.Time) int {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	return seconds
}
