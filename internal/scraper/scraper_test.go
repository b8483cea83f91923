package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-prices/internal/address"
	"house-prices/internal/cache"
	"house-prices/internal/geo"
	"house-prices/internal/models"
	"house-prices/internal/ratelimit"
	"house-prices/internal/resolve"
	"house-prices/internal/retry"
	"house-prices/internal/sites"
)

var (
	lakeHayes = geo.Coordinates{Lat: -44.9806, Lng: 168.8036}
	dalefield = geo.Coordinates{Lat: -44.9833, Lng: 168.8040} // ~0.3 km away
	auckland  = geo.Coordinates{Lat: -36.8485, Lng: 174.7633}
)

type fakeGeocoder struct {
	calls atomic.Int32
	err   error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, q string) (geo.Coordinates, error) {
	f.calls.Add(1)
	if f.err != nil {
		return geo.Coordinates{}, f.err
	}
	return lakeHayes, nil
}

type fakeSite struct {
	name       string
	candidates []models.Candidate
	searchErr  error
	searchWait time.Duration
	estimate   models.PriceEstimate
	extractErr error
	searches   atomic.Int32
}

func (s *fakeSite) Name() string { return s.name }

func (s *fakeSite) Search(ctx context.Context, b sites.Browser, addr address.Address) ([]models.Candidate, error) {
	s.searches.Add(1)
	if s.searchWait > 0 {
		select {
		case <-time.After(s.searchWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.candidates, s.searchErr
}

func (s *fakeSite) Extract(page sites.Page) (models.PriceEstimate, error) {
	if s.extractErr != nil {
		return models.PriceEstimate{}, s.extractErr
	}
	est := s.estimate
	est.Site = s.name
	return est, nil
}

func (s *fakeSite) Ready() sites.Wait { return sites.Wait{Selector: "main"} }

type fakeBrowser struct {
	mu      sync.Mutex
	renders map[string]int
	fail    map[string]error
	hang    map[string]bool
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{renders: map[string]int{}, fail: map[string]error{}, hang: map[string]bool{}}
}

func (b *fakeBrowser) Render(ctx context.Context, url string, wait sites.Wait) (sites.Page, error) {
	b.mu.Lock()
	b.renders[url]++
	err, hang := b.fail[url], b.hang[url]
	b.mu.Unlock()

	if hang {
		<-ctx.Done()
		return sites.Page{}, ctx.Err()
	}
	if err != nil {
		return sites.Page{}, err
	}
	return sites.Page{URL: url, HTML: "<main></main>"}, nil
}

func (b *fakeBrowser) Type(ctx context.Context, req sites.TypeRequest) (sites.Page, error) {
	return b.Render(ctx, req.URL, req.Wait)
}

func (b *fakeBrowser) count(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renders[url]
}

func candidate(text, url string, c geo.Coordinates) models.Candidate {
	return models.Candidate{Text: text, URL: url, Coords: &c}
}

func estimate(lower, mid, upper int64) models.PriceEstimate {
	return models.PriceEstimate{Lower: models.Amount(lower), Midpoint: models.Amount(mid), Upper: models.Amount(upper)}
}

type harness struct {
	geocoder *fakeGeocoder
	browser  *fakeBrowser
	cache    *cache.URLCache
}

func newHarness() *harness {
	return &harness{
		geocoder: &fakeGeocoder{},
		browser:  newFakeBrowser(),
		cache:    cache.New(time.Hour),
	}
}

func (h *harness) orchestrator(cfg Config, ss ...sites.Site) *Orchestrator {
	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	return New(ss, h.browser, resolve.New(h.geocoder), h.cache, ratelimit.New(0, nil), policy, cfg)
}

const onslow = "21 Onslow Road, Lake Hayes Estate"

func TestLookupPicksNearestCandidateDespiteSuburbMismatch(t *testing.T) {
	h := newHarness()
	site := &fakeSite{
		name: "homes",
		candidates: []models.Candidate{
			candidate("21 Onslow Road, Dalefield", "https://homes.test/dalefield/21-onslow", dalefield),
			candidate("21 Hayes Road, Auckland", "https://homes.test/auckland/21-hayes", auckland),
		},
		estimate: estimate(750000, 785000, 820000),
	}

	report, err := h.orchestrator(DefaultConfig(), site).Lookup(context.Background(), onslow)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, models.StateDone, res.State)
	assert.Equal(t, "https://homes.test/dalefield/21-onslow", res.URL)
	assert.False(t, res.FromCache)
	assert.Equal(t, int64(785000), *res.Estimate.Midpoint)

	entry, err := h.cache.Get("homes", address.New(onslow).Key())
	require.NoError(t, err)
	assert.Equal(t, res.URL, entry.URL)

	assert.Equal(t, 1, report.Summary.Succeeded)
	assert.Equal(t, 1.0, report.Summary.SuccessRate)
}

func TestLookupUnreachableSiteDoesNotBlockOthers(t *testing.T) {
	h := newHarness()
	down := &fakeSite{name: "qv", searchErr: models.Errorf(models.KindNavigation, "net::ERR_CONNECTION_REFUSED")}
	up := &fakeSite{
		name:       "homes",
		candidates: []models.Candidate{candidate("21 Onslow Road", "https://homes.test/21-onslow", dalefield)},
		estimate:   estimate(750000, 785000, 820000),
	}

	report, err := h.orchestrator(DefaultConfig(), down, up).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	qv, ok := report.Result("qv")
	require.True(t, ok)
	assert.Equal(t, models.StateResolutionFailed, qv.State)
	assert.Equal(t, models.KindNavigation, qv.Kind)
	assert.NotEmpty(t, qv.Reason)
	assert.EqualValues(t, 3, down.searches.Load())

	homes, ok := report.Result("homes")
	require.True(t, ok)
	assert.True(t, homes.OK())

	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, map[string]int{"NavigationError": 1}, report.Summary.Failures)
}

func TestLookupRetriesRenderThenFails(t *testing.T) {
	h := newHarness()
	const url = "https://qv.test/property-details/1"
	h.browser.fail[url] = models.Errorf(models.KindRenderTimeout, "waiting for main")
	site := &fakeSite{name: "qv", candidates: []models.Candidate{candidate("21 Onslow Road", url, dalefield)}}

	report, err := h.orchestrator(DefaultConfig(), site).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, models.StateExtractionFailed, res.State)
	assert.Equal(t, models.KindRenderTimeout, res.Kind)
	assert.Equal(t, 3, h.browser.count(url))
}

func TestLookupUsesCachedURL(t *testing.T) {
	h := newHarness()
	key := address.New(onslow).Key()
	_, err := h.cache.Put(context.Background(), "homes", key, "https://homes.test/cached")
	require.NoError(t, err)
	site := &fakeSite{name: "homes", estimate: estimate(1, 2, 3)}

	report, err := h.orchestrator(DefaultConfig(), site).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	res := report.Results[0]
	assert.True(t, res.OK())
	assert.True(t, res.FromCache)
	assert.Equal(t, "https://homes.test/cached", res.URL)
	assert.Zero(t, site.searches.Load())
	assert.Zero(t, h.geocoder.calls.Load())
	assert.Equal(t, 1, report.Summary.CacheHits)
}

func TestLookupDoesNotCacheFailedResolution(t *testing.T) {
	h := newHarness()
	site := &fakeSite{
		name:       "oneroof",
		candidates: []models.Candidate{candidate("21 Hayes Road, Auckland", "https://oneroof.test/auckland", auckland)},
	}

	report, err := h.orchestrator(DefaultConfig(), site).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, models.StateResolutionFailed, res.State)
	assert.Equal(t, models.KindNoMatch, res.Kind)
	assert.EqualValues(t, 1, site.searches.Load())

	_, err = h.cache.Get("oneroof", address.New(onslow).Key())
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestLookupTargetGeocodeFailure(t *testing.T) {
	h := newHarness()
	h.geocoder.err = geo.ErrServiceUnavailable
	site := &fakeSite{name: "qv", candidates: []models.Candidate{candidate("21 Onslow Road", "https://qv.test/1", dalefield)}}

	report, err := h.orchestrator(DefaultConfig(), site).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, models.KindGeocodeUnavailable, res.Kind)
	assert.EqualValues(t, 3, h.geocoder.calls.Load())
}

func TestLookupGeocodesTargetOnce(t *testing.T) {
	h := newHarness()
	var ss []sites.Site
	for _, name := range []string{"homes", "qv", "oneroof"} {
		ss = append(ss, &fakeSite{
			name:       name,
			candidates: []models.Candidate{candidate("21 Onslow Road", "https://"+name+".test/1", dalefield)},
			estimate:   estimate(1, 2, 3),
		})
	}

	report, err := h.orchestrator(DefaultConfig(), ss...).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.Succeeded)
	assert.EqualValues(t, 1, h.geocoder.calls.Load())
}

func TestLookupSiteTimeout(t *testing.T) {
	h := newHarness()
	const slowURL = "https://slow.test/1"
	h.browser.hang[slowURL] = true
	slow := &fakeSite{name: "realestate", candidates: []models.Candidate{candidate("21 Onslow Road", slowURL, dalefield)}}
	fast := &fakeSite{
		name:       "homes",
		candidates: []models.Candidate{candidate("21 Onslow Road", "https://homes.test/1", dalefield)},
		estimate:   estimate(1, 2, 3),
	}

	cfg := Config{SiteTimeout: 50 * time.Millisecond}
	report, err := h.orchestrator(cfg, slow, fast).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, models.StateExtractionFailed, res.State)
	assert.Equal(t, models.KindTimeout, res.Kind)
	assert.True(t, report.Results[1].OK())
}

func TestLookupPreservesConfiguredOrder(t *testing.T) {
	h := newHarness()
	names := []string{"homes", "qv", "propertyvalue", "realestate", "oneroof"}
	var ss []sites.Site
	for i, name := range names {
		ss = append(ss, &fakeSite{
			name:       name,
			candidates: []models.Candidate{candidate("21 Onslow Road", "https://"+name+".test/1", dalefield)},
			searchWait: time.Duration(len(names)-i) * 10 * time.Millisecond,
			estimate:   estimate(1, 2, 3),
		})
	}

	report, err := h.orchestrator(Config{MaxConcurrency: 5}, ss...).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	var got []string
	for _, r := range report.Results {
		got = append(got, r.Site)
	}
	assert.Equal(t, names, got)
}

func TestLookupCanceled(t *testing.T) {
	h := newHarness()
	site := &fakeSite{name: "qv", candidates: []models.Candidate{candidate("21 Onslow Road", "https://qv.test/1", dalefield)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.orchestrator(DefaultConfig(), site).Lookup(ctx, onslow)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.KindCanceled, report.Results[0].Kind)
	assert.Zero(t, site.searches.Load())
}

func TestLookupInvalidatesStaleCachedURL(t *testing.T) {
	h := newHarness()
	key := address.New(onslow).Key()
	_, err := h.cache.Put(context.Background(), "qv", key, "https://qv.test/gone")
	require.NoError(t, err)
	site := &fakeSite{name: "qv", extractErr: models.Errorf(models.KindPropertyNotFound, "page not found")}

	report, err := h.orchestrator(DefaultConfig(), site).Lookup(context.Background(), onslow)
	require.NoError(t, err)

	assert.Equal(t, models.KindPropertyNotFound, report.Results[0].Kind)
	_, err = h.cache.Get("qv", key)
	assert.ErrorIs(t, err, cache.ErrMiss)
}

// pageBrowser serves fixed markup and fails a required wait the way real
// renderers do when no selector in the list is on the page
type pageBrowser struct {
	html string
}

func (b pageBrowser) Render(ctx context.Context, url string, wait sites.Wait) (sites.Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.html))
	if err != nil {
		return sites.Page{}, err
	}
	if wait.Selector != "" && doc.Find(wait.Selector).Length() == 0 && !wait.Optional {
		return sites.Page{}, models.Errorf(models.KindRenderTimeout, "wait_for selector %s not found", wait.Selector)
	}
	return sites.Page{URL: url, HTML: b.html}, nil
}

func (b pageBrowser) Type(ctx context.Context, req sites.TypeRequest) (sites.Page, error) {
	return b.Render(ctx, req.URL, req.Wait)
}

func TestLookupRendersPagesWithoutPriceNodes(t *testing.T) {
	const url = "https://www.realestate.co.nz/property/21-onslow-road"
	tests := []struct {
		name      string
		html      string
		wantState models.State
		wantKind  models.Kind
		cached    bool
	}{
		{
			name:      "removed listing",
			html:      `<html><body><div data-test="not-found-page"><h1>Oops</h1></div></body></html>`,
			wantState: models.StateExtractionFailed,
			wantKind:  models.KindPropertyNotFound,
		},
		{
			name:      "no estimate published",
			html:      `<html><head><title>21 Onslow Road</title></head><body><h1>21 Onslow Road</h1></body></html>`,
			wantState: models.StateDone,
			cached:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := address.New(onslow).Key()
			c := cache.New(time.Hour)
			_, err := c.Put(context.Background(), "realestate", key, url)
			require.NoError(t, err)

			policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
			site := sites.NewRealEstate(sites.DefaultOptions())
			o := New([]sites.Site{site}, pageBrowser{html: tt.html}, resolve.New(&fakeGeocoder{}), c, ratelimit.New(0, nil), policy, DefaultConfig())

			report, err := o.Lookup(context.Background(), onslow)
			require.NoError(t, err)

			res := report.Results[0]
			assert.Equal(t, tt.wantState, res.State, res.Reason)
			assert.Equal(t, tt.wantKind, res.Kind)
			if tt.wantState == models.StateDone {
				require.NotNil(t, res.Estimate)
				assert.True(t, res.Estimate.Empty())
			}

			_, err = c.Get("realestate", key)
			if tt.cached {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, cache.ErrMiss)
			}
		})
	}
}

func TestLookupRejectsEmptyAddress(t *testing.T) {
	h := newHarness()
	_, err := h.orchestrator(DefaultConfig()).Lookup(context.Background(), "  ,, ")
	assert.True(t, errors.Is(err, ErrEmptyAddress))
}

func TestConcurrencyDefaults(t *testing.T) {
	h := newHarness()
	one := &fakeSite{name: "homes"}
	assert.Equal(t, 1, h.orchestrator(Config{}, one).concurrency())

	var many []sites.Site
	for i := 0; i < 6; i++ {
		many = append(many, &fakeSite{name: "s"})
	}
	assert.Equal(t, 4, h.orchestrator(Config{}, many...).concurrency())
	assert.Equal(t, 2, h.orchestrator(Config{MaxConcurrency: 2}, many...).concurrency())
}
