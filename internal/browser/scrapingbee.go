package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"house-prices/internal/models"
	"house-prices/internal/sites"
)

// DefaultScrapingBeeURL is the hosted API endpoint
const DefaultScrapingBeeURL = "https://app.scrapingbee.com/api/v1/"

const (
	// scrapingBeeLoadAllowance is request time granted for page load on top
	// of the wait timeout
	scrapingBeeLoadAllowance = 30 * time.Second
	scrapingBeeMaxTimeout    = 140 * time.Second
)

// ScrapingBee renders pages through ScrapingBee's API so requests leave
// from residential proxies instead of the local machine.
type ScrapingBee struct {
	apiKey     string
	baseURL    string
	country    string
	stealth    bool
	timeout    time.Duration
	httpClient *http.Client
}

// ScrapingBeeOption configures a ScrapingBee renderer
type ScrapingBeeOption func(*ScrapingBee)

// WithEndpoint points the renderer at another API base URL
func WithEndpoint(u string) ScrapingBeeOption {
	return func(s *ScrapingBee) { s.baseURL = u }
}

// WithClient replaces the HTTP client
func WithClient(c *http.Client) ScrapingBeeOption {
	return func(s *ScrapingBee) { s.httpClient = c }
}

// WithStealth routes requests through stealth proxies (75 credits each)
func WithStealth(on bool) ScrapingBeeOption {
	return func(s *ScrapingBee) { s.stealth = on }
}

// WithRenderTimeout bounds wait conditions
func WithRenderTimeout(d time.Duration) ScrapingBeeOption {
	return func(s *ScrapingBee) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScrapingBee creates a renderer using apiKey
func NewScrapingBee(apiKey string, opts ...ScrapingBeeOption) *ScrapingBee {
	s := &ScrapingBee{
		apiKey:  apiKey,
		baseURL: DefaultScrapingBeeURL,
		country: "nz",
		timeout: DefaultRenderTimeout,
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // stealth requests can take minutes
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchOptions configures a single API request
type FetchOptions struct {
	// RenderJS enables JavaScript rendering
	RenderJS bool
	// Premium uses residential proxies
	Premium bool
	// Stealth uses stealth proxies, overriding Premium
	Stealth bool
	// Country sets the proxy country code
	Country string
	// WaitForSelector waits for a CSS selector before returning
	WaitForSelector string
	// Wait adds a fixed delay after page load
	Wait time.Duration
	// Timeout caps the whole request on the API side
	Timeout time.Duration
	// Scenario is a JS scenario run after load
	Scenario *Scenario
}

// Scenario is a ScrapingBee js_scenario program
type Scenario struct {
	Instructions []map[string]any `json:"instructions"`
	Strict       bool             `json:"strict"`
}

// Fetch retrieves targetURL through the API
func (s *ScrapingBee) Fetch(ctx context.Context, targetURL string, opts FetchOptions) ([]byte, error) {
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("url", targetURL)

	if opts.RenderJS {
		params.Set("render_js", "true")
	}
	if opts.Stealth {
		params.Set("stealth_proxy", "true")
	} else if opts.Premium {
		params.Set("premium_proxy", "true")
	}
	if opts.Country != "" {
		params.Set("country_code", opts.Country)
	}
	if opts.WaitForSelector != "" {
		params.Set("wait_for", opts.WaitForSelector)
	}
	if opts.Wait > 0 {
		params.Set("wait", strconv.FormatInt(opts.Wait.Milliseconds(), 10))
	}
	if opts.Timeout > 0 {
		params.Set("timeout", strconv.FormatInt(opts.Timeout.Milliseconds(), 10))
	}
	if opts.Scenario != nil {
		b, err := json.Marshal(opts.Scenario)
		if err != nil {
			return nil, fmt.Errorf("encoding js scenario: %w", err)
		}
		params.Set("js_scenario", string(b))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err, models.KindNavigation, "fetching %s", targetURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, err, models.KindNavigation, "reading %s", targetURL)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body, targetURL)
	}

	if cost := resp.Header.Get("Spb-Cost"); cost != "" {
		log.Printf("ScrapingBee fetched %s for %s credits", targetURL, cost)
	}
	return body, nil
}

func statusError(status int, body []byte, targetURL string) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	kind := models.KindUnknown
	switch {
	case status == http.StatusNotFound:
		kind = models.KindPropertyNotFound
	case status == http.StatusInternalServerError && strings.Contains(strings.ToLower(detail), "wait_for"):
		kind = models.KindRenderTimeout
	case status == http.StatusTooManyRequests || status >= 500:
		kind = models.KindNavigation
	}
	return models.Errorf(kind, "ScrapingBee error (HTTP %d) for %s: %s", status, targetURL, detail)
}

func (s *ScrapingBee) baseOptions() FetchOptions {
	return FetchOptions{RenderJS: true, Stealth: s.stealth, Country: s.country}
}

// waitTimeout resolves a wait's bound against the configured render timeout
func (s *ScrapingBee) waitTimeout(wait sites.Wait) time.Duration {
	if wait.Timeout > 0 {
		return wait.Timeout
	}
	return s.timeout
}

// requestTimeout is the API-side cap for a request that waits up to d
func requestTimeout(d time.Duration) time.Duration {
	return min(d+scrapingBeeLoadAllowance, scrapingBeeMaxTimeout)
}

// Render implements sites.Browser
func (s *ScrapingBee) Render(ctx context.Context, target string, wait sites.Wait) (sites.Page, error) {
	opts := s.baseOptions()
	if wait.Selector != "" {
		opts.Timeout = requestTimeout(s.waitTimeout(wait))
	}
	switch {
	case wait.Selector == "":
	case wait.Optional:
		// wait_for fails the request when the selector is missing
		opts.Scenario = &Scenario{Instructions: []map[string]any{
			{"wait_for": wait.Selector},
		}}
	default:
		opts.WaitForSelector = wait.Selector
	}

	body, err := s.Fetch(ctx, target, opts)
	if err != nil {
		return sites.Page{}, err
	}
	return sites.Page{URL: target, HTML: string(body)}, nil
}

// Type fills the search input with a js_scenario and captures the result
func (s *ScrapingBee) Type(ctx context.Context, req sites.TypeRequest) (sites.Page, error) {
	timeout := s.waitTimeout(req.Wait)
	steps := []map[string]any{
		{"wait_for": req.Input},
		{"click": req.Input},
		{"fill": []string{req.Input, req.Text}},
	}
	if req.Wait.Selector != "" {
		steps = append(steps, map[string]any{"wait_for": req.Wait.Selector})
	} else {
		steps = append(steps, map[string]any{"wait": timeout.Milliseconds()})
	}

	opts := s.baseOptions()
	opts.Timeout = requestTimeout(timeout)
	opts.Scenario = &Scenario{Instructions: steps, Strict: !req.Wait.Optional}

	body, err := s.Fetch(ctx, req.URL, opts)
	if err != nil {
		return sites.Page{}, err
	}
	return sites.Page{URL: req.URL, HTML: string(body)}, nil
}
