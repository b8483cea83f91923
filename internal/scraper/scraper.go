// Package scraper runs one address through every configured site and
// assembles the per-site outcomes into a report.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"house-prices/internal/address"
	"house-prices/internal/geo"
	"house-prices/internal/models"
	"house-prices/internal/resolve"
	"house-prices/internal/retry"
	"house-prices/internal/sites"
)

const (
	// DefaultSiteTimeout bounds one site's unit of work
	DefaultSiteTimeout = 30 * time.Second
	// maxDefaultConcurrency caps fan-out when none is configured
	maxDefaultConcurrency = 4
)

// ErrEmptyAddress is returned for input with nothing to look up
var ErrEmptyAddress = errors.New("empty address")

// Config holds orchestrator settings
type Config struct {
	SiteTimeout time.Duration
	// MaxConcurrency bounds sites in flight; zero means one per site up to 4
	MaxConcurrency int
}

// DefaultConfig returns default orchestrator settings
func DefaultConfig() Config {
	return Config{SiteTimeout: DefaultSiteTimeout}
}

// Resolver picks the candidate that is the target property
type Resolver interface {
	Locate(ctx context.Context, addr address.Address) (geo.Coordinates, error)
	Resolve(ctx context.Context, target geo.Coordinates, addr address.Address, candidates []models.Candidate) (resolve.Match, error)
}

// Cache remembers resolved detail-page URLs
type Cache interface {
	Get(site, addressKey string) (models.ResolvedEntry, error)
	Put(ctx context.Context, site, addressKey, url string) (models.ResolvedEntry, error)
	Invalidate(ctx context.Context, site, addressKey string) error
}

// Limiter spaces requests to each site
type Limiter interface {
	Acquire(ctx context.Context, site string) error
}

// Orchestrator composes search, resolution and extraction per site
type Orchestrator struct {
	sites    []sites.Site
	browser  sites.Browser
	resolver Resolver
	cache    Cache
	limiter  Limiter
	retry    retry.Policy
	config   Config
}

// New creates an Orchestrator over sites in the given order
func New(ss []sites.Site, b sites.Browser, r Resolver, c Cache, l Limiter, p retry.Policy, cfg Config) *Orchestrator {
	if cfg.SiteTimeout <= 0 {
		cfg.SiteTimeout = DefaultSiteTimeout
	}
	return &Orchestrator{
		sites:    ss,
		browser:  b,
		resolver: r,
		cache:    c,
		limiter:  l,
		retry:    p,
		config:   cfg,
	}
}

// Sites lists the configured site names in order
func (o *Orchestrator) Sites() []string {
	names := make([]string, len(o.sites))
	for i, s := range o.sites {
		names[i] = s.Name()
	}
	return names
}

func (o *Orchestrator) concurrency() int {
	if o.config.MaxConcurrency > 0 {
		return o.config.MaxConcurrency
	}
	return max(1, min(len(o.sites), maxDefaultConcurrency))
}

// Lookup processes raw against every site. The report always holds one
// result per configured site in configured order; failures are recorded
// on their result rather than returned.
func (o *Orchestrator) Lookup(ctx context.Context, raw string) (*models.Report, error) {
	addr := address.New(raw)
	if addr.Key() == "" {
		return nil, ErrEmptyAddress
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	report := &models.Report{
		Address:   raw,
		Key:       addr.Key(),
		Results:   make([]models.SiteResult, len(o.sites)),
		StartedAt: time.Now(),
	}
	log.Printf("Looking up %q across %d sites", addr.Key(), len(o.sites))

	tgt := &target{done: make(chan struct{})}
	locate := func() (geo.Coordinates, error) {
		return retry.Do(ctx, o.retry, func(ctx context.Context, attempt int) (geo.Coordinates, error) {
			if attempt > 1 {
				log.Printf("Retrying geocode of %q (attempt %d)", addr.Key(), attempt)
			}
			return o.resolver.Locate(ctx, addr)
		})
	}

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency())
	for i, site := range o.sites {
		g.Go(func() error {
			report.Results[i] = o.process(ctx, site, addr, func(ctx context.Context) (geo.Coordinates, error) {
				return tgt.get(ctx, locate)
			})
			return nil
		})
	}
	g.Wait()

	report.Duration = time.Since(report.StartedAt)
	report.Summary = models.Summarize(report.Results)
	log.Printf("Lookup of %q finished in %s: %d/%d sites succeeded, %d from cache",
		addr.Key(), report.Duration.Round(time.Millisecond), report.Summary.Succeeded, report.Summary.Sites, report.Summary.CacheHits)
	for kind, n := range report.Summary.Failures {
		log.Printf("  %s: %d", kind, n)
	}
	return report, nil
}

// target geocodes the input address at most once per lookup, and only if
// some site needs it
type target struct {
	once   sync.Once
	done   chan struct{}
	coords geo.Coordinates
	err    error
}

func (t *target) get(ctx context.Context, locate func() (geo.Coordinates, error)) (geo.Coordinates, error) {
	t.once.Do(func() {
		go func() {
			t.coords, t.err = locate()
			close(t.done)
		}()
	})
	select {
	case <-t.done:
		return t.coords, t.err
	case <-ctx.Done():
		return geo.Coordinates{}, ctx.Err()
	}
}

func (o *Orchestrator) process(ctx context.Context, site sites.Site, addr address.Address, locate func(context.Context) (geo.Coordinates, error)) (res models.SiteResult) {
	start := time.Now()
	res = models.SiteResult{Site: site.Name(), State: models.StatePending}
	defer func() { res.Elapsed = time.Since(start) }()

	siteCtx, cancel := context.WithTimeout(ctx, o.config.SiteTimeout)
	defer cancel()

	o.transition(&res, addr, models.StateResolving)
	url, fromCache, err := o.resolveURL(siteCtx, site, addr, locate)
	if err != nil {
		o.fail(ctx, siteCtx, &res, addr, models.StateResolutionFailed, err)
		return res
	}
	res.URL, res.FromCache = url, fromCache
	o.transition(&res, addr, models.StateResolved)

	o.transition(&res, addr, models.StateExtracting)
	est, err := o.extract(siteCtx, site, url)
	if err != nil {
		if fromCache && models.KindOf(err) == models.KindPropertyNotFound {
			// The site moved the property; resolve afresh next time
			if ierr := o.cache.Invalidate(ctx, site.Name(), addr.Key()); ierr != nil {
				log.Printf("[%s] Failed to invalidate stale URL %s: %v", site.Name(), url, ierr)
			}
		}
		o.fail(ctx, siteCtx, &res, addr, models.StateExtractionFailed, err)
		return res
	}
	res.Estimate = &est
	o.transition(&res, addr, models.StateDone)
	return res
}

func (o *Orchestrator) resolveURL(ctx context.Context, site sites.Site, addr address.Address, locate func(context.Context) (geo.Coordinates, error)) (string, bool, error) {
	name := site.Name()
	if entry, err := o.cache.Get(name, addr.Key()); err == nil {
		log.Printf("[%s] Using cached URL %s (resolved %s)", name, entry.URL, entry.ResolvedAt.Format(time.RFC3339))
		return entry.URL, true, nil
	}

	candidates, err := retry.Do(ctx, o.retry, func(ctx context.Context, attempt int) ([]models.Candidate, error) {
		if attempt > 1 {
			log.Printf("[%s] Retrying search (attempt %d)", name, attempt)
		}
		if err := o.limiter.Acquire(ctx, name); err != nil {
			return nil, err
		}
		return site.Search(ctx, o.browser, addr)
	})
	if err != nil {
		return "", false, fmt.Errorf("search: %w", err)
	}
	log.Printf("[%s] Search returned %d candidates", name, len(candidates))

	coords, err := locate(ctx)
	if err != nil {
		return "", false, err
	}

	match, err := retry.Do(ctx, o.retry, func(ctx context.Context, attempt int) (resolve.Match, error) {
		return o.resolver.Resolve(ctx, coords, addr, candidates)
	})
	if err != nil {
		return "", false, err
	}
	log.Printf("[%s] Matched %q at %.2f km: %s", name, match.Candidate.Text, match.DistanceKm, match.Candidate.URL)

	if _, err := o.cache.Put(ctx, name, addr.Key(), match.Candidate.URL); err != nil {
		log.Printf("[%s] Failed to persist resolved URL: %v", name, err)
	}
	return match.Candidate.URL, false, nil
}

func (o *Orchestrator) extract(ctx context.Context, site sites.Site, url string) (models.PriceEstimate, error) {
	name := site.Name()
	page, err := retry.Do(ctx, o.retry, func(ctx context.Context, attempt int) (sites.Page, error) {
		if attempt > 1 {
			log.Printf("[%s] Retrying render of %s (attempt %d)", name, url, attempt)
		}
		if err := o.limiter.Acquire(ctx, name); err != nil {
			return sites.Page{}, err
		}
		return o.browser.Render(ctx, url, site.Ready())
	})
	if err != nil {
		return models.PriceEstimate{}, fmt.Errorf("render: %w", err)
	}
	return site.Extract(page)
}

func (o *Orchestrator) transition(res *models.SiteResult, addr address.Address, to models.State) {
	log.Printf("[%s] %s: %s -> %s", res.Site, addr.Key(), res.State, to)
	res.State = to
}

// fail records err on res, attributing context expiry to the whole request
// or to the site deadline
func (o *Orchestrator) fail(ctx, siteCtx context.Context, res *models.SiteResult, addr address.Address, state models.State, err error) {
	switch {
	case ctx.Err() != nil:
		err = models.Wrap(models.KindCanceled, err, "lookup canceled")
	case siteCtx.Err() != nil:
		err = models.Wrap(models.KindTimeout, err, fmt.Sprintf("site deadline of %s exceeded", o.config.SiteTimeout))
	}

	log.Printf("[%s] %s: %s -> %s", res.Site, addr.Key(), res.State, state)
	res.Fail(state, err)
	if res.Kind == models.KindParse {
		log.Printf("[%s] Could not parse estimate at %s, markup may have changed: %v", res.Site, res.URL, err)
	} else {
		log.Printf("[%s] %s", res.Site, res.Reason)
	}
}
