// Package ratelimiter keeps one token bucket per caller.
//
// Buckets are created on first use and swept once they have been idle for
// the configured TTL. A nil *MapLimiter admits everything.
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const anonymous = "anonymous"

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// MapLimiter is a set of per-key token buckets.
type MapLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	nextSweep time.Time
	buckets   map[string]*bucket
}

// New returns a limiter refilling rps tokens per second up to burst. It
// returns nil, which allows everything, unless both are positive.
func New(rps float64, burst int, idleTTL time.Duration) *MapLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MapLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether key may make one request at now.
func (l *MapLimiter) Allow(key string, now time.Time) bool {
	ok, _ := l.Take(key, now)
	return ok
}

// Take consumes one token for key. When the bucket is empty nothing is
// consumed and the wait until the next token is returned.
func (l *MapLimiter) Take(key string, now time.Time) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	if key = strings.TrimSpace(key); key == "" {
		key = anonymous
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now

	r := b.lim.ReserveN(now, 1)
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// Len returns the number of tracked keys.
func (l *MapLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MapLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
	l.nextSweep = now.Add(l.idleTTL)
}
