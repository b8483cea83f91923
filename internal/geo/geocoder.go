package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

//go:generate mockgen -package=resolve_test -destination=../resolve/mock_geocoder_test.go -source=geocoder.go Geocoder

var (
	// ErrNotFound means the service knows no location for the address
	ErrNotFound = errors.New("address not found")
	// ErrServiceUnavailable means the service could not answer
	ErrServiceUnavailable = errors.New("geocoding service unavailable")
)

// Geocoder resolves a postal address to coordinates
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// HTTPClient is the subset of *http.Client used by Nominatim
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Nominatim geocodes addresses with the OpenStreetMap Nominatim API
type Nominatim struct {
	client      HTTPClient
	userAgent   string
	baseURL     string
	countryCode string
}

// NominatimResult represents a geocoding result from Nominatim
type NominatimResult struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// Option configures a Nominatim client
type Option func(*Nominatim)

// WithBaseURL points the client at another Nominatim instance
func WithBaseURL(u string) Option {
	return func(n *Nominatim) { n.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c HTTPClient) Option {
	return func(n *Nominatim) { n.client = c }
}

// WithUserAgent sets the User-Agent header Nominatim requires
func WithUserAgent(ua string) Option {
	return func(n *Nominatim) { n.userAgent = ua }
}

// WithCountry restricts results to an ISO 3166-1 country code; empty disables it
func WithCountry(code string) Option {
	return func(n *Nominatim) { n.countryCode = code }
}

// NewNominatim creates a geocoder restricted to New Zealand by default
func NewNominatim(opts ...Option) *Nominatim {
	n := &Nominatim{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent:   "HousePrices/1.0 (property estimate lookup)",
		baseURL:     "https://nominatim.openstreetmap.org",
		countryCode: "nz",
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Geocode converts an address to coordinates
func (g *Nominatim) Geocode(ctx context.Context, address string) (Coordinates, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")
	if g.countryCode != "" {
		params.Set("countrycodes", g.countryCode)
	}

	reqURL := fmt.Sprintf("%s/search?%s", g.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to create request: %w", err)
	}

	// Nominatim requires a valid User-Agent
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Coordinates{}, ctx.Err()
		}
		return Coordinates{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return Coordinates{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: failed to read response: %v", ErrServiceUnavailable, err)
	}

	var results []NominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Coordinates{}, fmt.Errorf("%w: failed to parse response: %v", ErrServiceUnavailable, err)
	}

	if len(results) == 0 {
		return Coordinates{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to parse longitude: %w", err)
	}

	return NewCoordinates(lat, lng)
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrServiceUnavailable, code)
	default:
		return fmt.Errorf("geocoder returned HTTP %d", code)
	}
}
