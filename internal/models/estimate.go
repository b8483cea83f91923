package models

import (
	"fmt"
	"time"

	"house-prices/internal/geo"
)

// Candidate is one search or autocomplete result that may denote the target property
type Candidate struct {
	Text   string           `json:"text"`
	URL    string           `json:"url"`
	Coords *geo.Coordinates `json:"coords,omitempty"`
	// Query is an address usable for secondary geocoding when Coords is nil.
	// Falls back to Text when empty.
	Query string `json:"query,omitempty"`
}

// GeocodeQuery returns the text to geocode for a candidate without coordinates
func (c Candidate) GeocodeQuery() string {
	if c.Query != "" {
		return c.Query
	}
	return c.Text
}

// ResolvedEntry records a confirmed detail-page URL for a site and normalized address
type ResolvedEntry struct {
	Site       string    `json:"site"`
	AddressKey string    `json:"address_key"`
	URL        string    `json:"url"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Expired reports whether the entry is older than ttl at now
func (e ResolvedEntry) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(e.ResolvedAt.Add(ttl))
}

// PriceEstimate holds the figures one site publishes for a property.
// A nil amount means the site does not expose it.
type PriceEstimate struct {
	Site        string    `json:"site"`
	Midpoint    *int64    `json:"midpoint"`
	Upper       *int64    `json:"upper"`
	Lower       *int64    `json:"lower"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Empty reports whether no figure was found
func (p PriceEstimate) Empty() bool {
	return p.Midpoint == nil && p.Upper == nil && p.Lower == nil
}

// CheckOrder verifies lower <= midpoint <= upper across the figures present
func (p PriceEstimate) CheckOrder() error {
	var prev *int64
	var prevName string
	for _, f := range []struct {
		name string
		v    *int64
	}{{"lower", p.Lower}, {"midpoint", p.Midpoint}, {"upper", p.Upper}} {
		if f.v == nil {
			continue
		}
		if prev != nil && *prev > *f.v {
			return fmt.Errorf("%s %d exceeds %s %d", prevName, *prev, f.name, *f.v)
		}
		prev, prevName = f.v, f.name
	}
	return nil
}

// Amount returns a pointer to v, for building estimates
func Amount(v int64) *int64 {
	return &v
}

// State is a step of the per-site lifecycle
type State string

const (
	StatePending          State = "Pending"
	StateResolving        State = "Resolving"
	StateResolved         State = "Resolved"
	StateResolutionFailed State = "ResolutionFailed"
	StateExtracting       State = "Extracting"
	StateDone             State = "Done"
	StateExtractionFailed State = "ExtractionFailed"
)

// SiteResult is the outcome of processing one site for one address:
// an Estimate on success, otherwise Err with its Kind and Reason.
type SiteResult struct {
	Site      string         `json:"site"`
	State     State          `json:"state"`
	URL       string         `json:"url,omitempty"`
	FromCache bool           `json:"from_cache"`
	Estimate  *PriceEstimate `json:"estimate,omitempty"`
	Kind      Kind           `json:"kind,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Err       error          `json:"-"`
	Elapsed   time.Duration  `json:"elapsed_ns"`
}

// OK reports whether the site produced an estimate
func (r SiteResult) OK() bool {
	return r.Err == nil && r.Estimate != nil
}

// Fail records err as the terminal outcome in state
func (r *SiteResult) Fail(state State, err error) {
	e := Classify(err, KindUnknown)
	r.State = state
	r.Err = e
	r.Kind = e.Kind
	r.Reason = e.Error()
	r.Estimate = nil
}

// Row flattens a result for tabular sinks
type Row struct {
	Site     string `json:"site"`
	Midpoint *int64 `json:"midpoint"`
	Upper    *int64 `json:"upper"`
	Lower    *int64 `json:"lower"`
	Reason   string `json:"reason,omitempty"`
}

// Row returns the sink view of the result
func (r SiteResult) Row() Row {
	row := Row{Site: r.Site, Reason: r.Reason}
	if r.Estimate != nil {
		row.Midpoint = r.Estimate.Midpoint
		row.Upper = r.Estimate.Upper
		row.Lower = r.Estimate.Lower
	}
	return row
}

// Report is the per-address output: one result per configured site, in configured order
type Report struct {
	Address   string        `json:"address"`
	Key       string        `json:"key"`
	Results   []SiteResult  `json:"results"`
	Summary   Summary       `json:"summary"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Result looks up the outcome for a site
func (r *Report) Result(site string) (SiteResult, bool) {
	for _, res := range r.Results {
		if res.Site == site {
			return res, true
		}
	}
	return SiteResult{}, false
}

// Rows flattens every result
func (r *Report) Rows() []Row {
	rows := make([]Row, len(r.Results))
	for i, res := range r.Results {
		rows[i] = res.Row()
	}
	return rows
}

// Summary aggregates the outcome of a lookup
type Summary struct {
	Sites       int            `json:"sites"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	CacheHits   int            `json:"cache_hits"`
	SuccessRate float64        `json:"success_rate"`
	Failures    map[string]int `json:"failures,omitempty"`
}

// Summarize computes the summary for a set of results
func Summarize(results []SiteResult) Summary {
	s := Summary{Sites: len(results)}
	for _, r := range results {
		if r.FromCache {
			s.CacheHits++
		}
		if r.OK() {
			s.Succeeded++
			continue
		}
		s.Failed++
		if s.Failures == nil {
			s.Failures = make(map[string]int)
		}
		s.Failures[r.Kind.String()]++
	}
	if s.Sites > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Sites)
	}
	return s
}
