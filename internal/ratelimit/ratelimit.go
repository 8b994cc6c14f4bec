// Package ratelimit provides a wrapper around golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with a per-minute budget.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new rate limiter.
// requestsPerMinute specifies how many requests are allowed per minute; <= 0 means unlimited.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10 // Allow burst of 10% of rate limit
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Tokens returns the current number of available tokens.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// Set hands out one Limiter per key, all with the same budget.
// The scheduler keys it by price source so one slow upstream cannot starve the others.
type Set struct {
	rpm      int
	limiters map[string]*Limiter
	mu       sync.Mutex
}

// NewSet creates a keyed limiter set.
func NewSet(requestsPerMinute int) *Set {
	return &Set{
		rpm:      requestsPerMinute,
		limiters: make(map[string]*Limiter),
	}
}

// For returns the limiter for key, creating it on first use.
func (s *Set) For(key string) *Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[key]
	if !ok {
		l = New(s.rpm)
		s.limiters[key] = l
	}
	return l
}
