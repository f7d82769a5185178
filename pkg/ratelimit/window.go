// Package ratelimit holds an in-process fixed window limiter, used when no
// shared store is configured.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int64
	ttl   time.Duration
}

// WindowLimiter counts hits per key in fixed windows. Counts are local to the
// process.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	cleanup  *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWindowLimiter creates a limiter that evicts expired windows every
// cleanupEvery
func NewWindowLimiter(cleanupEvery time.Duration) *WindowLimiter {
	if cleanupEvery <= 0 {
		cleanupEvery = 10 * time.Minute
	}

	l := &WindowLimiter{
		windows:  make(map[string]*window),
		now:      time.Now,
		cleanup:  time.NewTicker(cleanupEvery),
		stopChan: make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// FixedWindowAllow counts a hit for scope and reports whether it is within
// limit for the current window, along with the count so far.
func (l *WindowLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, ttl time.Duration) (bool, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[scope]
	if !ok || now.Sub(w.start) >= w.ttl {
		w = &window{start: now, ttl: ttl}
		l.windows[scope] = w
	}
	w.count++

	return w.count <= limit, w.count, nil
}

// Len returns the number of live windows
func (l *WindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *WindowLimiter) evictExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for scope, w := range l.windows {
		if now.Sub(w.start) >= w.ttl {
			delete(l.windows, scope)
		}
	}
}

func (l *WindowLimiter) cleanupLoop() {
	for {
		select {
		case <-l.cleanup.C:
			l.evictExpired()
		case <-l.stopChan:
			l.cleanup.Stop()
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (l *WindowLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}
