package geo

import (
	"context"
	"strings"
	"sync"
)

// Cached memoizes successful lookups of an underlying Geocoder and gates
// every upstream call through wait, typically a rate limiter.
type Cached struct {
	next Geocoder
	wait func(ctx context.Context) error

	mu   sync.RWMutex
	seen map[string]Coordinates
}

// NewCached wraps next. wait may be nil.
func NewCached(next Geocoder, wait func(ctx context.Context) error) *Cached {
	return &Cached{next: next, wait: wait, seen: make(map[string]Coordinates)}
}

// Geocode returns a memoized result or asks the wrapped geocoder
func (c *Cached) Geocode(ctx context.Context, address string) (Coordinates, error) {
	key := strings.ToLower(strings.Join(strings.Fields(address), " "))

	c.mu.RLock()
	coords, ok := c.seen[key]
	c.mu.RUnlock()
	if ok {
		return coords, nil
	}

	if c.wait != nil {
		if err := c.wait(ctx); err != nil {
			return Coordinates{}, err
		}
	}

	coords, err := c.next.Geocode(ctx, address)
	if err != nil {
		return Coordinates{}, err
	}

	c.mu.Lock()
	c.seen[key] = coords
	c.mu.Unlock()
	return coords, nil
}
