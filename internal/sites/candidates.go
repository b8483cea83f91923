package sites

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"house-prices/internal/address"
	"house-prices/internal/geo"
	"house-prices/internal/models"
)

// searchQueries runs query over addr's search texts, most specific first,
// and returns the first non-empty candidate set
func searchQueries(ctx context.Context, addr address.Address, query func(ctx context.Context, q string) ([]models.Candidate, error)) ([]models.Candidate, error) {
	for _, q := range addr.Queries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := query(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}

// linkCandidates reads anchors matching sel, resolving relative hrefs
// against base. Coordinates come from data-lat/data-lng on the anchor or an
// ancestor when the site exposes them.
func linkCandidates(page Page, base, sel string) ([]models.Candidate, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, models.Errorf(models.KindParse, "parse search results: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	var out []models.Candidate
	seen := make(map[string]bool)
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref).String()
		if seen[abs] {
			return
		}

		text := firstNonEmpty(s.AttrOr("data-address", ""), s.AttrOr("title", ""), linkText(s))
		if text == "" {
			return
		}
		seen[abs] = true
		out = append(out, models.Candidate{Text: text, URL: abs, Coords: attrCoords(s)})
	})
	return out, nil
}

// linkText is the first text line of an anchor, skipping badges and metadata
func linkText(s *goquery.Selection) string {
	if first := s.Find("[data-address], .address, strong").First(); first.Length() > 0 {
		return strings.Join(strings.Fields(first.Text()), " ")
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

func attrCoords(s *goquery.Selection) *geo.Coordinates {
	holder := s
	if _, ok := s.Attr("data-lat"); !ok {
		holder = s.Closest("[data-lat]")
	}
	lat, err1 := strconv.ParseFloat(holder.AttrOr("data-lat", ""), 64)
	lng, err2 := strconv.ParseFloat(holder.AttrOr("data-lng", ""), 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	c, err := geo.NewCoordinates(lat, lng)
	if err != nil {
		return nil
	}
	return &c
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
