package sites

import (
	"context"
	"net/url"
	"time"

	"house-prices/internal/address"
	"house-prices/internal/models"
)

const qvBase = "https://www.qv.co.nz"

// QV reads the QV e-valuation on qv.co.nz
type QV struct {
	opts   Options
	layout layout
}

// NewQV creates the qv.co.nz adapter
func NewQV(opts Options) *QV {
	return &QV{
		opts: opts,
		layout: layout{
			midpoint: field{
				selectors: []string{
					"[data-testid='qv-price']",
					"div.qv-valuation",
					"#content .qv-estimate",
				},
				labels: []string{"QV:", "QV estimate"},
			},
			upper:  field{selectors: []string{"[data-testid='qv-price-upper']", "div.qv-upper"}},
			lower:  field{selectors: []string{"[data-testid='qv-price-lower']", "div.qv-lower"}},
			ranges: []string{"[data-testid='qv-price-range']", "div.qv-range"},
		},
	}
}

func (q *QV) Name() string { return "qv" }

func (q *QV) Ready() Wait {
	return q.layout.ready("[data-testid='qv-price']", "div.qv-valuation", "[data-testid='qv-price-range']")
}

func (q *QV) Search(ctx context.Context, b Browser, addr address.Address) ([]models.Candidate, error) {
	const results = "a[href*='/property-details/']"
	return searchQueries(ctx, addr, func(ctx context.Context, text string) ([]models.Candidate, error) {
		page, err := b.Render(ctx, qvBase+"/property-search/?search="+url.QueryEscape(text),
			Wait{Selector: results, Timeout: 10 * time.Second, Optional: true})
		if err != nil {
			return nil, err
		}
		return linkCandidates(page, qvBase, results)
	})
}

func (q *QV) Extract(page Page) (models.PriceEstimate, error) {
	return extract(q.Name(), q.layout, q.opts, page)
}
