// Package resolve picks which of a site's search results is the target
// property by geographic distance rather than by name, so sources that
// disagree on suburb names still resolve to the same place.
package resolve

import (
	"context"
	"math"

	"house-prices/internal/address"
	"house-prices/internal/geo"
	"house-prices/internal/models"
)

const (
	DefaultMaxDistanceKm = 5.0
	DefaultTieEpsilonKm  = 0.01
)

// Resolver selects the best candidate for a target location
type Resolver struct {
	geocoder      geo.Geocoder
	maxDistanceKm float64
	tieEpsilonKm  float64
}

// Option configures a Resolver
type Option func(*Resolver)

// WithMaxDistance sets the acceptance radius
func WithMaxDistance(km float64) Option {
	return func(r *Resolver) { r.maxDistanceKm = km }
}

// WithTieEpsilon sets how close two distances must be to count as a tie
func WithTieEpsilon(km float64) Option {
	return func(r *Resolver) { r.tieEpsilonKm = km }
}

// New creates a Resolver that geocodes candidates lacking coordinates with g
func New(g geo.Geocoder, opts ...Option) *Resolver {
	r := &Resolver{
		geocoder:      g,
		maxDistanceKm: DefaultMaxDistanceKm,
		tieEpsilonKm:  DefaultTieEpsilonKm,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxDistanceKm returns the acceptance radius
func (r *Resolver) MaxDistanceKm() float64 {
	return r.maxDistanceKm
}

// Match is the selected candidate and its distance from the target
type Match struct {
	Candidate  models.Candidate
	DistanceKm float64
}

// Locate geocodes the target address. Any failure other than cancellation
// is reported as GeocodeUnavailable.
func (r *Resolver) Locate(ctx context.Context, addr address.Address) (geo.Coordinates, error) {
	coords, err := r.geocoder.Geocode(ctx, addr.String())
	if err != nil {
		if ctx.Err() != nil {
			return geo.Coordinates{}, ctx.Err()
		}
		return geo.Coordinates{}, models.Wrap(models.KindGeocodeUnavailable, err, "geocode "+addr.String())
	}
	return coords, nil
}

// Resolve returns the candidate nearest target. Candidates naming a
// different unit than addr are ignored. NoMatch is returned when nothing
// lies within the acceptance radius.
func (r *Resolver) Resolve(ctx context.Context, target geo.Coordinates, addr address.Address, candidates []models.Candidate) (Match, error) {
	if len(candidates) == 0 {
		return Match{}, models.Errorf(models.KindNoMatch, "search returned no candidates")
	}

	var eligible []models.Candidate
	for _, c := range candidates {
		if addr.UnitCompatible(c.Text) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return Match{}, models.Errorf(models.KindNoMatch, "no candidate for unit %s", addr.Parts().Unit)
	}

	best := Match{DistanceKm: math.Inf(1)}
	bestPrefix := -1
	located := 0
	var lastErr error

	for _, c := range eligible {
		coords, err := r.locate(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return Match{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		located++

		d := geo.DistanceKm(target, coords)
		switch {
		case d < best.DistanceKm-r.tieEpsilonKm:
			best = Match{Candidate: c, DistanceKm: d}
			bestPrefix = -1
		case math.Abs(d-best.DistanceKm) <= r.tieEpsilonKm:
			if bestPrefix < 0 {
				bestPrefix = addr.CommonPrefixLen(best.Candidate.Text)
			}
			if p := addr.CommonPrefixLen(c.Text); p > bestPrefix {
				best = Match{Candidate: c, DistanceKm: d}
				bestPrefix = p
			}
		}
	}

	if located == 0 {
		return Match{}, models.Wrap(models.KindGeocodeUnavailable, lastErr, "no candidate could be geocoded")
	}
	if best.DistanceKm > r.maxDistanceKm {
		return Match{}, models.Errorf(models.KindNoMatch, "nearest candidate %q is %.1f km away, limit %.1f km",
			best.Candidate.Text, best.DistanceKm, r.maxDistanceKm)
	}
	return best, nil
}

func (r *Resolver) locate(ctx context.Context, c models.Candidate) (geo.Coordinates, error) {
	if c.Coords != nil && c.Coords.Valid() {
		return *c.Coords, nil
	}
	return r.geocoder.Geocode(ctx, c.GeocodeQuery())
}
