package sites

import (
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"house-prices/internal/models"
	"house-prices/internal/price"
)

// field lists the places one figure has been published, newest layout first
type field struct {
	selectors []string
	labels    []string
}

// layout is everything a site's property page parser needs
type layout struct {
	midpoint field
	upper    field
	lower    field
	// ranges hold "lower - upper" text in a single node
	ranges []string
	// notFound phrases in the title or headline mean the page has no property
	notFound []string
	// notFoundSelectors are nodes only present on missing-property pages
	notFoundSelectors []string
	// deriveMidpoint fills a missing midpoint with the mean of lower and upper
	deriveMidpoint bool
}

var commonNotFound = []string{
	"page not found",
	"property not found",
	"error 404",
	"404 not found",
	"we couldn't find",
	"we can't find",
	"no longer available",
}

// ready waits for the price nodes or a missing-property marker. The wait is
// optional so a page showing neither still reaches extract, which reports it
// as not found or as an empty estimate. A zero timeout defers to the
// renderer's configured default.
func (l layout) ready(priceSelectors ...string) Wait {
	sel := strings.Join(append(append([]string{}, priceSelectors...), l.notFoundSelectors...), ", ")
	return Wait{Selector: sel, Optional: true}
}

// extract runs a layout over a page
func extract(site string, l layout, opts Options, page Page) (models.PriceEstimate, error) {
	est := models.PriceEstimate{Site: site, ExtractedAt: opts.Now()}

	doc, err := page.Document()
	if err != nil {
		return est, models.Errorf(models.KindParse, "parse html: %w", err)
	}

	if missing(doc, l) {
		return est, models.Errorf(models.KindPropertyNotFound, "%s reports no property at %s", site, page.URL)
	}

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")

	figures := []struct {
		name string
		fld  field
		dst  **int64
	}{
		{"midpoint", l.midpoint, &est.Midpoint},
		{"upper", l.upper, &est.Upper},
		{"lower", l.lower, &est.Lower},
	}
	keep := func(name string, v *int64) *int64 {
		if v != nil && !opts.Bounds.Contains(*v) {
			log.Printf("Discarding implausible %s %s of %d at %s", site, name, *v, page.URL)
			return nil
		}
		return v
	}

	// Dedicated nodes win, then a range node, then labelled body text.
	for _, f := range figures {
		v, err := readSelectors(doc, f.fld.selectors)
		if err != nil {
			return est, models.Errorf(models.KindParse, "%s %s: %w", site, f.name, err)
		}
		*f.dst = keep(f.name, v)
	}

	if est.Lower == nil || est.Upper == nil || est.Midpoint == nil {
		for _, sel := range l.ranges {
			raw := nodeText(doc, sel)
			if raw == "" {
				continue
			}
			r, err := price.ParseRange(raw)
			if err != nil {
				return est, models.Errorf(models.KindParse, "%s range %q: %w", site, raw, err)
			}
			if est.Lower == nil {
				est.Lower = keep("lower", models.Amount(r.Lower))
			}
			if est.Upper == nil {
				est.Upper = keep("upper", models.Amount(r.Upper))
			}
			if est.Midpoint == nil {
				est.Midpoint = keep("midpoint", models.Amount(r.Midpoint))
			}
			break
		}
	}

	for _, f := range figures {
		if *f.dst == nil {
			*f.dst = keep(f.name, readLabels(text, f.fld.labels))
		}
	}

	if l.deriveMidpoint && est.Midpoint == nil && est.Lower != nil && est.Upper != nil {
		est.Midpoint = models.Amount(price.Mean(*est.Lower, *est.Upper))
	}

	if err := est.CheckOrder(); err != nil {
		return est, models.Errorf(models.KindParse, "%s figures out of order: %w", site, err)
	}
	return est, nil
}

// readSelectors returns nil when no selector holds a figure
func readSelectors(doc *goquery.Document, selectors []string) (*int64, error) {
	for _, sel := range selectors {
		raw := nodeText(doc, sel)
		if raw == "" {
			continue
		}
		if !strings.ContainsAny(raw, "0123456789") {
			// Placeholders like "Not available" or "-"
			continue
		}
		v, err := price.ParseAmount(raw)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
	return nil, nil
}

func readLabels(text string, labels []string) *int64 {
	for _, label := range labels {
		if v, ok := price.FindLabelled(text, label); ok {
			return &v
		}
	}
	return nil
}

func nodeText(doc *goquery.Document, sel string) string {
	return strings.Join(strings.Fields(doc.Find(sel).First().Text()), " ")
}

func missing(doc *goquery.Document, l layout) bool {
	for _, sel := range l.notFoundSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	headline := strings.ToLower(doc.Find("title").First().Text() + " " + doc.Find("h1").First().Text())
	for _, phrase := range append(append([]string{}, commonNotFound...), l.notFound...) {
		if strings.Contains(headline, phrase) {
			return true
		}
	}
	return false
}
