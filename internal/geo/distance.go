package geo

import (
	"fmt"
	"math"
)

const (
	// Mean Earth radius in kilometers
	EarthRadiusKm = 6371.0
)

// Coordinates is a point in decimal degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewCoordinates validates and builds a point
func NewCoordinates(lat, lng float64) (Coordinates, error) {
	c := Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinates{}, fmt.Errorf("invalid coordinates %v,%v", lat, lng)
	}
	return c, nil
}

// Valid reports whether both values are finite and within geographic range
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// DistanceKm returns the great-circle distance between two points
func DistanceKm(a, b Coordinates) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Haversine calculates the great-circle distance between two points
// Returns distance in kilometers
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	sinLat := math.Sin(deltaLat / 2)
	sinLng := math.Sin(deltaLng / 2)
	a := sinLat*sinLat + math.Cos(lat1Rad)*math.Cos(lat2Rad)*sinLng*sinLng

	// Rounding can push a just outside [0,1] near antipodes
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}
