package sites

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"house-prices/internal/address"
	"house-prices/internal/geo"
	"house-prices/internal/models"
)

const (
	homesBase         = "https://homes.co.nz"
	homesAutocomplete = "https://gateway.homes.co.nz/address/search"
)

// Homes reads the HomesEstimate on homes.co.nz. Its address search is a JSON
// endpoint that returns coordinates inline.
type Homes struct {
	opts   Options
	layout layout
}

// homesSuggestion is one entry from the address search endpoint
type homesSuggestion struct {
	Title string  `json:"Title"`
	URL   string  `json:"Url"`
	Lat   float64 `json:"Lat"`
	Long  float64 `json:"Long"`
}

// NewHomes creates the homes.co.nz adapter
func NewHomes(opts Options) *Homes {
	return &Homes{
		opts: opts,
		layout: layout{
			midpoint: field{
				selectors: []string{
					"[data-testid='price-estimate-main']",
					"homes-hestimate-tab > div:nth-of-type(1) homes-price-tag-simple span:nth-of-type(2)",
					"span.price-main",
				},
				labels: []string{"estimate"},
			},
			upper: field{
				selectors: []string{
					"[data-testid='price-estimate-upper']",
					"homes-hestimate-tab > div:nth-of-type(2) homes-price-tag-simple:nth-of-type(2) span:nth-of-type(2)",
					"span.price-upper",
				},
				labels: []string{"upper"},
			},
			lower: field{
				selectors: []string{
					"[data-testid='price-estimate-lower']",
					"homes-hestimate-tab > div:nth-of-type(2) homes-price-tag-simple:nth-of-type(1) span:nth-of-type(2)",
					"span.price-lower",
				},
				labels: []string{"lower"},
			},
			ranges:   []string{"[data-testid='price-estimate-range']"},
			notFound: []string{"address not found"},
		},
	}
}

func (h *Homes) Name() string { return "homes" }

func (h *Homes) Ready() Wait {
	return h.layout.ready("homes-hestimate-tab", "[data-testid='price-estimate-main']", "[data-testid='price-estimate-range']")
}

func (h *Homes) Search(ctx context.Context, b Browser, addr address.Address) ([]models.Candidate, error) {
	return searchQueries(ctx, addr, func(ctx context.Context, q string) ([]models.Candidate, error) {
		page, err := b.Render(ctx, homesAutocomplete+"?Address="+url.QueryEscape(q), Wait{Selector: "body", Optional: true})
		if err != nil {
			return nil, err
		}
		return h.parseSuggestions(page)
	})
}

func (h *Homes) parseSuggestions(page Page) ([]models.Candidate, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, models.Errorf(models.KindParse, "parse homes suggestions: %w", err)
	}
	body := strings.TrimSpace(doc.Find("body").Text())
	if body == "" {
		return nil, nil
	}

	var resp struct {
		Results []homesSuggestion `json:"Results"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, models.Errorf(models.KindParse, "decode homes suggestions: %w", err)
	}

	base, _ := url.Parse(homesBase + "/address/")
	out := make([]models.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		ref, err := url.Parse(r.URL)
		if err != nil {
			continue
		}
		c := models.Candidate{Text: r.Title, URL: base.ResolveReference(ref).String()}
		if coords, err := geo.NewCoordinates(r.Lat, r.Long); err == nil && (r.Lat != 0 || r.Long != 0) {
			c.Coords = &coords
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *Homes) Extract(page Page) (models.PriceEstimate, error) {
	return extract(h.Name(), h.layout, h.opts, page)
}
