package sites

import (
	"context"
	"time"

	"house-prices/internal/address"
	"house-prices/internal/models"
)

const propertyValueBase = "https://www.propertyvalue.co.nz"

// PropertyValue reads the estimate range on propertyvalue.co.nz. The site
// publishes a low and a high figure; the midpoint is their mean.
type PropertyValue struct {
	opts   Options
	layout layout
}

// NewPropertyValue creates the propertyvalue.co.nz adapter
func NewPropertyValue(opts Options) *PropertyValue {
	const overview = "#PropertyOverview > div > div:nth-of-type(2) > div:nth-of-type(4) > div:nth-of-type(1) > div:nth-of-type(2) > div:nth-of-type(2)"
	return &PropertyValue{
		opts: opts,
		layout: layout{
			upper: field{selectors: []string{
				"[data-testid='highEstimate']",
				"[testid='highEstimate']",
				overview + " > div:nth-of-type(2)",
				"[data-testid='pv-upper']",
				"[testid='pv-upper']",
				"div.property-value-upper",
			}},
			lower: field{selectors: []string{
				"[data-testid='lowEstimate']",
				"[testid='lowEstimate']",
				overview + " > div:nth-of-type(1)",
				"[data-testid='pv-lower']",
				"[testid='pv-lower']",
				"div.property-value-lower",
			}},
			ranges:         []string{"[data-testid='pv-range']", "div.property-value-range"},
			deriveMidpoint: true,
		},
	}
}

func (p *PropertyValue) Name() string { return "propertyvalue" }

func (p *PropertyValue) Ready() Wait {
	return p.layout.ready("[data-testid='highEstimate']", "[testid='highEstimate']", "#PropertyOverview", "[data-testid='pv-range']")
}

func (p *PropertyValue) Search(ctx context.Context, b Browser, addr address.Address) ([]models.Candidate, error) {
	const results = "a[href*='/property/']"
	return searchQueries(ctx, addr, func(ctx context.Context, text string) ([]models.Candidate, error) {
		page, err := b.Type(ctx, TypeRequest{
			URL:   propertyValueBase,
			Input: "input[type='search'], input[name='search']",
			Text:  text,
			Wait:  Wait{Selector: results, Timeout: 8 * time.Second, Optional: true},
		})
		if err != nil {
			return nil, err
		}
		return linkCandidates(page, propertyValueBase, results)
	})
}

func (p *PropertyValue) Extract(page Page) (models.PriceEstimate, error) {
	return extract(p.Name(), p.layout, p.opts, page)
}
