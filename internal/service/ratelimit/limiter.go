package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim        *rate.Limiter
	lastAccess time.Time
}

// Limiter keeps one token bucket per key. Each key starts with capacity
// tokens and regains capacity per window.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*entry
	every     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// New returns a limiter allowing capacity requests per window for each key.
// A non-positive capacity disables limiting.
func New(capacity int, window time.Duration) *Limiter {
	l := &Limiter{m: make(map[string]*entry), burst: capacity, ttl: window, now: time.Now}
	if capacity > 0 && window > 0 {
		l.every = rate.Every(window / time.Duration(capacity))
	}
	return l
}

func (l *Limiter) disabled() bool {
	return l == nil || l.burst <= 0 || l.every == 0
}

// Allow reports whether key may proceed now and consumes one token if so.
func (l *Limiter) Allow(key string) bool {
	if l.disabled() {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.every, l.burst)}
		l.m[key] = e
	}
	e.lastAccess = now
	return e.lim.AllowN(now, 1)
}

// RetryAfter reports how long key must wait for its next token.
func (l *Limiter) RetryAfter(key string) time.Duration {
	if l.disabled() {
		return 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.m[key]
	if !ok {
		return 0
	}
	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// sweep drops keys idle for a full window; their buckets are full again and
// a fresh limiter behaves the same. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.ttl {
		return
	}
	l.lastSweep = now
	for key, e := range l.m {
		if now.Sub(e.lastAccess) >= l.ttl {
			delete(l.m, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
