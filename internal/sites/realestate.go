package sites

import (
	"context"
	"time"

	"house-prices/internal/address"
	"house-prices/internal/models"
)

const realEstateBase = "https://www.realestate.co.nz"

// RealEstate reads the REINZ valuation range on realestate.co.nz
type RealEstate struct {
	opts   Options
	layout layout
}

// NewRealEstate creates the realestate.co.nz adapter
func NewRealEstate(opts Options) *RealEstate {
	const priceRange = "[data-test='reinz-valuation__price-range']"
	return &RealEstate{
		opts: opts,
		layout: layout{
			lower: field{selectors: []string{
				priceRange + " div:nth-child(1) h4",
				"[data-testid='reinz-price-lower']",
			}},
			midpoint: field{selectors: []string{
				priceRange + " div:nth-child(2) h4",
				"[data-testid='reinz-price-mid']",
			}},
			upper: field{selectors: []string{
				priceRange + " div:nth-child(3) h4",
				"[data-testid='reinz-price-upper']",
			}},
			ranges:            []string{"[data-testid='reinz-price-range']"},
			notFoundSelectors: []string{"[data-test='not-found-page']"},
		},
	}
}

func (r *RealEstate) Name() string { return "realestate" }

func (r *RealEstate) Ready() Wait {
	return r.layout.ready("[data-test='reinz-valuation__price-range']", "[data-test='reinz-valuation']", "[data-testid='reinz-price-range']")
}

func (r *RealEstate) Search(ctx context.Context, b Browser, addr address.Address) ([]models.Candidate, error) {
	const results = "[data-test='autocomplete-suggestion'] a, a[href*='/property/']"
	return searchQueries(ctx, addr, func(ctx context.Context, text string) ([]models.Candidate, error) {
		page, err := b.Type(ctx, TypeRequest{
			URL:   realEstateBase,
			Input: "input[data-test='search-input'], input[type='search']",
			Text:  text,
			Wait:  Wait{Selector: results, Timeout: 8 * time.Second, Optional: true},
		})
		if err != nil {
			return nil, err
		}
		return linkCandidates(page, realEstateBase, results)
	})
}

func (r *RealEstate) Extract(page Page) (models.PriceEstimate, error) {
	return extract(r.Name(), r.layout, r.opts, page)
}
