// Package sites holds one adapter per real-estate data source. Each adapter
// knows how to search its site for an address and how to read the price
// estimate off a rendered property page.
package sites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"house-prices/internal/address"
	"house-prices/internal/models"
	"house-prices/internal/price"
)

// ErrUnknownSite is returned for identifiers without an adapter
var ErrUnknownSite = errors.New("unknown site")

// Wait describes when a rendered page is ready to read
type Wait struct {
	// Selector must be visible before the page is captured
	Selector string
	// Timeout bounds the wait; zero uses the renderer default
	Timeout time.Duration
	// Optional pages are captured as-is when Selector never appears
	Optional bool
}

// Page is rendered DOM content
type Page struct {
	URL  string
	HTML string
}

// Document parses the page for selector queries
func (p Page) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
}

// TypeRequest enters text into a search box and captures the result
type TypeRequest struct {
	URL   string
	Input string
	Text  string
	Wait  Wait
}

// Browser renders pages. Implementations report failures as
// models.KindNavigation or models.KindRenderTimeout errors.
type Browser interface {
	Render(ctx context.Context, url string, wait Wait) (Page, error)
	Type(ctx context.Context, req TypeRequest) (Page, error)
}

// Site is the capability set every data source implements
type Site interface {
	// Name is the identifier used in configuration and output
	Name() string
	// Search returns candidate property pages for an address
	Search(ctx context.Context, b Browser, addr address.Address) ([]models.Candidate, error)
	// Extract reads the estimate from a rendered property page
	Extract(page Page) (models.PriceEstimate, error)
	// Ready is the condition a property page must meet before extraction
	Ready() Wait
}

// Options tune adapter behaviour
type Options struct {
	Bounds price.Bounds
	Now    func() time.Time
}

// DefaultOptions returns the production settings
func DefaultOptions() Options {
	return Options{Bounds: price.DefaultBounds(), Now: time.Now}
}

var constructors = []struct {
	name string
	new  func(Options) Site
}{
	{"homes", func(o Options) Site { return NewHomes(o) }},
	{"qv", func(o Options) Site { return NewQV(o) }},
	{"propertyvalue", func(o Options) Site { return NewPropertyValue(o) }},
	{"realestate", func(o Options) Site { return NewRealEstate(o) }},
	{"oneroof", func(o Options) Site { return NewOneRoof(o) }},
}

// Names lists every supported site in default order
func Names() []string {
	names := make([]string, len(constructors))
	for i, c := range constructors {
		names[i] = c.name
	}
	return names
}

// Known reports whether name has an adapter
func Known(name string) bool {
	for _, c := range constructors {
		if c.name == name {
			return true
		}
	}
	return false
}

// Lookup builds the adapter for name
func Lookup(name string, opts Options) (Site, error) {
	for _, c := range constructors {
		if c.name == name {
			return c.new(opts), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSite, name)
}

// New builds adapters for names, preserving order
func New(names []string, opts Options) ([]Site, error) {
	out := make([]Site, 0, len(names))
	for _, name := range names {
		s, err := Lookup(name, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
