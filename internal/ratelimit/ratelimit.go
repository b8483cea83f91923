// Package ratelimit spaces out requests to each site independently.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the spacing applied to sites without their own setting
const DefaultInterval = time.Second

// Limiter enforces a minimum interval between acquisitions per key. Keys
// never block one another.
type Limiter struct {
	def       time.Duration
	intervals map[string]time.Duration

	mu    sync.Mutex
	sites map[string]*siteLimiter
}

type siteLimiter struct {
	interval time.Duration
	limiter  *rate.Limiter
	// sem serializes waiters so spacing holds between actual grants
	sem chan struct{}

	mu   sync.Mutex
	last time.Time
}

func (s *siteLimiter) lastGrant() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// New creates a Limiter. intervals overrides def per key; a zero interval
// disables limiting for that key.
func New(def time.Duration, intervals map[string]time.Duration) *Limiter {
	copied := make(map[string]time.Duration, len(intervals))
	for k, v := range intervals {
		copied[k] = v
	}
	return &Limiter{
		def:       def,
		intervals: copied,
		sites:     make(map[string]*siteLimiter),
	}
}

// Interval returns the spacing applied to key
func (l *Limiter) Interval(key string) time.Duration {
	if d, ok := l.intervals[key]; ok {
		return d
	}
	return l.def
}

func (l *Limiter) site(key string) *siteLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sites[key]
	if !ok {
		interval := l.Interval(key)
		s = &siteLimiter{
			interval: interval,
			limiter:  rate.NewLimiter(rate.Every(interval), 1),
			sem:      make(chan struct{}, 1),
		}
		l.sites[key] = s
	}
	return s
}

// Acquire blocks until key may make its next request or ctx is done
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	s := l.site(key)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The wait would outlast the deadline
		return fmt.Errorf("rate limit %s: %w", key, context.DeadlineExceeded)
	}

	// rate schedules from reservation times; top up against the last real
	// grant so slow wakeups never shorten the gap
	if last := s.lastGrant(); !last.IsZero() {
		if d := s.interval - time.Since(last); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}

	s.mu.Lock()
	s.last = time.Now()
	s.mu.Unlock()
	return nil
}

// LastGrant returns when key was last allowed through, zero if never
func (l *Limiter) LastGrant(key string) time.Time {
	return l.site(key).lastGrant()
}

// Wait returns a function that acquires key, for wiring into components
// that accept a plain wait hook
func (l *Limiter) Wait(key string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return l.Acquire(ctx, key)
	}
}
