package pubcompose

import (
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter keyed by an arbitrary string:
// the client IP for logins, the draft id for remote actions.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewLimiter creates a Limiter that allows max hits per window.
func NewLimiter(max int, window time.Duration) *Limiter {
	l := &Limiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}
		cutoff := l.now().Add(-l.window)
		l.mu.Lock()
		for key, hits := range l.attempts {
			kept := prune(hits, cutoff)
			if len(kept) == 0 {
				delete(l.attempts, key)
			} else {
				l.attempts[key] = kept
			}
		}
		l.mu.Unlock()
	}
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// Allow checks that key has not exceeded the limit and records the hit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.pruneLocked(key)
	if len(kept) >= l.max {
		return false
	}
	l.attempts[key] = append(kept, l.now())
	return true
}

// Check returns true if key has not exceeded the limit.
// It does not record a hit; call Record separately on failure.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(key)) < l.max
}

// Record registers a hit for key.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	l.attempts[key] = append(l.attempts[key], l.now())
	l.mu.Unlock()
}

// Forget drops the history of key.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.attempts, key)
	l.mu.Unlock()
}

func (l *Limiter) pruneLocked(key string) []time.Time {
	kept := prune(l.attempts[key], l.now().Add(-l.window))
	l.attempts[key] = kept
	return kept
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
