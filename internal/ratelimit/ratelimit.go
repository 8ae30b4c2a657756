// Package ratelimit throttles calls to external providers: the market
// data client's minimum gap between calls and the AI commentary client's
// shared cooldown.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate with the handful of named,
// per-provider limiters the digest pipeline needs, keyed by provider name
// so callers don't need to plumb a *rate.Limiter through every layer.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds an empty named limiter registry.
func New() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// Register creates (or replaces) the limiter for name, allowing burst
// requests immediately and then refilling at minGap events per second
// (rate.Every(d) gives one call every d).
func (l *Limiter) Register(name string, minGap rate.Limit, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[name] = rate.NewLimiter(minGap, burst)
}

// Wait blocks until the named limiter admits one call, or ctx is done. A
// name with no registered limiter is treated as unthrottled.
func (l *Limiter) Wait(ctx context.Context, name string) error {
	l.mu.Lock()
	lim, ok := l.limiters[name]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

// Allow reports whether the named limiter admits a call right now,
// without blocking; when it does, one token is consumed.
func (l *Limiter) Allow(name string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[name]
	l.mu.Unlock()
	if !ok {
		return true
	}
	return lim.Allow()
}
