// Package cache remembers which detail page each site resolved an address
// to, so repeated lookups skip search and resolution.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"house-prices/internal/models"
)

// DefaultTTL is how long a resolved URL is trusted
const DefaultTTL = 24 * time.Hour

// ErrMiss is returned for absent or expired entries
var ErrMiss = errors.New("cache miss")

// Store persists cache entries across runs
type Store interface {
	UpsertResolvedEntry(ctx context.Context, e models.ResolvedEntry) error
	ListResolvedEntries(ctx context.Context) ([]models.ResolvedEntry, error)
	DeleteResolvedEntry(ctx context.Context, site, addressKey string) error
}

type key struct {
	site    string
	address string
}

// URLCache maps (site, normalized address) to a resolved detail-page URL.
// It is safe for concurrent use; writes are last-writer-wins per key.
type URLCache struct {
	ttl   time.Duration
	now   func() time.Time
	store Store

	mu      sync.RWMutex
	entries map[key]models.ResolvedEntry
}

// Option configures a URLCache
type Option func(*URLCache)

// WithStore writes every Put through to s
func WithStore(s Store) Option {
	return func(c *URLCache) { c.store = s }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *URLCache) { c.now = now }
}

// New creates an empty cache. A non-positive ttl uses DefaultTTL.
func New(ttl time.Duration, opts ...Option) *URLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &URLCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[key]models.ResolvedEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the entry lifetime
func (c *URLCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the live entry for site and addressKey, or ErrMiss
func (c *URLCache) Get(site, addressKey string) (models.ResolvedEntry, error) {
	c.mu.RLock()
	e, ok := c.entries[key{site, addressKey}]
	c.mu.RUnlock()

	if !ok || e.Expired(c.now(), c.ttl) {
		return models.ResolvedEntry{}, ErrMiss
	}
	return e, nil
}

// Put records url for site and addressKey, superseding any older entry.
// The in-memory entry is kept even if the store write fails.
func (c *URLCache) Put(ctx context.Context, site, addressKey, url string) (models.ResolvedEntry, error) {
	e := models.ResolvedEntry{
		Site:       site,
		AddressKey: addressKey,
		URL:        url,
		ResolvedAt: c.now().UTC(),
	}

	c.mu.Lock()
	c.entries[key{site, addressKey}] = e
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.UpsertResolvedEntry(ctx, e); err != nil {
			return e, fmt.Errorf("persist %s entry: %w", site, err)
		}
	}
	return e, nil
}

// Invalidate drops the entry for site and addressKey
func (c *URLCache) Invalidate(ctx context.Context, site, addressKey string) error {
	c.mu.Lock()
	delete(c.entries, key{site, addressKey})
	c.mu.Unlock()

	if c.store != nil {
		return c.store.DeleteResolvedEntry(ctx, site, addressKey)
	}
	return nil
}

// Load fills the cache from its store, skipping expired entries, and
// returns how many were loaded
func (c *URLCache) Load(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	stored, err := c.store.ListResolvedEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cache: %w", err)
	}

	now := c.now()
	loaded := 0

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range stored {
		if e.Expired(now, c.ttl) {
			continue
		}
		k := key{e.Site, e.AddressKey}
		if cur, ok := c.entries[k]; ok && cur.ResolvedAt.After(e.ResolvedAt) {
			continue
		}
		c.entries[k] = e
		loaded++
	}
	return loaded, nil
}

// Prune removes expired entries from memory and returns how many went
func (c *URLCache) Prune() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.Expired(now, c.ttl) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Entries returns a snapshot of live entries ordered by site then address
func (c *URLCache) Entries() []models.ResolvedEntry {
	now := c.now()

	c.mu.RLock()
	out := make([]models.ResolvedEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.Expired(now, c.ttl) {
			out = append(out, e)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].AddressKey < out[j].AddressKey
	})
	return out
}
