package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"house-prices/internal/browser"
	"house-prices/internal/cache"
	"house-prices/internal/config"
	"house-prices/internal/db"
	"house-prices/internal/geo"
	"house-prices/internal/ratelimit"
	"house-prices/internal/resolve"
	"house-prices/internal/sites"
)

// GeocoderKey is the limiter key shared by every geocoding request
const GeocoderKey = "geocoder"

// Runtime is an orchestrator wired from configuration together with the
// resources it holds open
type Runtime struct {
	Orchestrator *Orchestrator
	Cache        *cache.URLCache
	Geocoder     geo.Geocoder
	DB           *db.DB

	closers []func()
}

// Close releases the browser and database
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// Setup builds a Runtime from cfg. Persisted cache entries are loaded and
// expired rows pruned before it returns.
func Setup(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	siteList, err := sites.New(cfg.Sites, sites.Options{Bounds: cfg.Bounds(), Now: time.Now})
	if err != nil {
		return nil, err
	}

	intervals := cfg.Intervals()
	intervals[GeocoderKey] = cfg.GeocoderInterval
	limiter := ratelimit.New(cfg.DefaultInterval, intervals)

	nominatim := geo.NewNominatim(
		geo.WithBaseURL(cfg.Geocoder.BaseURL),
		geo.WithUserAgent(cfg.Geocoder.UserAgent),
		geo.WithCountry(cfg.Geocoder.Country),
	)
	rt.Geocoder = geo.NewCached(nominatim, limiter.Wait(GeocoderKey))
	resolver := resolve.New(rt.Geocoder,
		resolve.WithMaxDistance(cfg.Resolve.MaxDistanceKm),
		resolve.WithTieEpsilon(cfg.Resolve.TieEpsilonKm),
	)

	var cacheOpts []cache.Option
	if cfg.Cache.Persist {
		database, err := db.New(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		rt.DB = database
		rt.closers = append(rt.closers, func() { database.Close() })
		cacheOpts = append(cacheOpts, cache.WithStore(database))

		pruned, err := database.DeleteExpired(ctx, time.Now().Add(-cfg.Cache.TTL))
		if err != nil {
			rt.Close()
			return nil, err
		}
		if pruned > 0 {
			log.Printf("Pruned %d expired cache entries", pruned)
		}
	}
	rt.Cache = cache.New(cfg.Cache.TTL, cacheOpts...)
	if n, err := rt.Cache.Load(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("loading url cache: %w", err)
	} else if n > 0 {
		log.Printf("Loaded %d cached URLs from %s", n, cfg.Cache.Path)
	}

	var b sites.Browser
	switch cfg.Browser.Mode {
	case "scrapingbee":
		b = browser.NewScrapingBee(cfg.Browser.ScrapingBeeKey, browser.WithRenderTimeout(cfg.Browser.RenderTimeout))
		log.Println("Rendering through ScrapingBee")
	default:
		chrome := browser.NewChrome(cfg.Browser.Headless, cfg.Browser.RenderTimeout)
		if err := chrome.Start(); err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, chrome.Stop)
		b = chrome
		log.Printf("Rendering with Chrome (headless=%v)", cfg.Browser.Headless)
	}

	rt.Orchestrator = New(siteList, b, resolver, rt.Cache, limiter, cfg.RetryPolicy(), Config{
		SiteTimeout:    cfg.Scraper.SiteTimeout,
		MaxConcurrency: cfg.Scraper.MaxConcurrency,
	})
	return rt, nil
}
