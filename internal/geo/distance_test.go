package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	christchurch = Coordinates{Lat: -43.5321, Lng: 172.6362}
	auckland     = Coordinates{Lat: -36.8485, Lng: 174.7633}
	queenstown   = Coordinates{Lat: -45.0312, Lng: 168.6626}
)

func TestDistanceKmIdentical(t *testing.T) {
	for _, c := range []Coordinates{christchurch, auckland, {Lat: 90, Lng: 0}, {Lat: -90, Lng: 180}, {}} {
		assert.Equal(t, 0.0, DistanceKm(c, c), c.String())
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	pairs := [][2]Coordinates{
		{christchurch, auckland},
		{auckland, queenstown},
		{{Lat: 10, Lng: 179.9}, {Lat: -10, Lng: -179.9}},
		{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 180}},
	}
	for _, p := range pairs {
		assert.Equal(t, DistanceKm(p[0], p[1]), DistanceKm(p[1], p[0]))
	}
}

func TestDistanceKmKnownPairs(t *testing.T) {
	// Christchurch to Auckland is roughly 765 km
	assert.InDelta(t, 765, DistanceKm(christchurch, auckland), 5)
}

func TestDistanceKmWrapsAntimeridian(t *testing.T) {
	a := Coordinates{Lat: 0, Lng: 179.95}
	b := Coordinates{Lat: 0, Lng: -179.95}

	// 0.1 degree of longitude at the equator
	assert.InDelta(t, 11.12, DistanceKm(a, b), 0.05)
}

func TestDistanceKmAntipodal(t *testing.T) {
	d := DistanceKm(Coordinates{Lat: 0, Lng: 0}, Coordinates{Lat: 0, Lng: 180})
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 0.01)

	d = DistanceKm(Coordinates{Lat: 45, Lng: 10}, Coordinates{Lat: -45, Lng: -170})
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 0.01)
}

func TestCoordinatesValid(t *testing.T) {
	tests := []struct {
		c    Coordinates
		want bool
	}{
		{christchurch, true},
		{Coordinates{Lat: 90, Lng: 180}, true},
		{Coordinates{Lat: 90.1, Lng: 0}, false},
		{Coordinates{Lat: 0, Lng: -180.5}, false},
		{Coordinates{Lat: math.NaN(), Lng: 0}, false},
		{Coordinates{Lat: 0, Lng: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.c.Valid(), "%v", tt.c)
	}

	_, err := NewCoordinates(91, 0)
	assert.Error(t, err)
}
