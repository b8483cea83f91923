package sites

import (
	"context"
	"time"

	"house-prices/internal/address"
	"house-prices/internal/models"
)

const oneRoofBase = "https://www.oneroof.co.nz"

// OneRoof reads the estimate on oneroof.co.nz, found through the home page
// search autocomplete
type OneRoof struct {
	opts   Options
	layout layout
}

// NewOneRoof creates the oneroof.co.nz adapter
func NewOneRoof(opts Options) *OneRoof {
	return &OneRoof{
		opts: opts,
		layout: layout{
			midpoint: field{
				selectors: []string{
					"div.text-3xl.font-bold.text-secondary.-mt-60.pb-22",
					"[data-testid='estimate-mid']",
				},
				labels: []string{"estimated value"},
			},
			upper: field{selectors: []string{
				`div.text-center.font-medium.absolute.top-0.pt-10.right-0 > div.text-base.md\:text-xl`,
				"[data-testid='estimate-high']",
			}},
			lower: field{selectors: []string{
				`div.text-center.font-medium.absolute.top-0.pt-10.left-0 > div.text-base.md\:text-xl`,
				"[data-testid='estimate-low']",
			}},
			ranges: []string{"[data-testid='estimate-range']"},
		},
	}
}

func (o *OneRoof) Name() string { return "oneroof" }

func (o *OneRoof) Ready() Wait {
	return o.layout.ready("div.text-3xl.font-bold", "[data-testid='estimate-mid']", "[data-testid='estimate-range']")
}

func (o *OneRoof) Search(ctx context.Context, b Browser, addr address.Address) ([]models.Candidate, error) {
	const results = "a[href*='/property/']"
	return searchQueries(ctx, addr, func(ctx context.Context, text string) ([]models.Candidate, error) {
		page, err := b.Type(ctx, TypeRequest{
			URL:   oneRoofBase,
			Input: "input[type='search'], input[placeholder*='address' i]",
			Text:  text,
			Wait:  Wait{Selector: results, Timeout: 8 * time.Second, Optional: true},
		})
		if err != nil {
			return nil, err
		}
		return linkCandidates(page, oneRoofBase, results)
	})
}

func (o *OneRoof) Extract(page Page) (models.PriceEstimate, error) {
	return extract(o.Name(), o.layout, o.opts, page)
}
