package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

const (
	EarthRadiusKm = 6371.0
	// KmPerDegree converts map radii to the degree radii FDSN services take.
	KmPerDegree = 111.32
)

type Point struct {
	Latitude  float64
	Longitude float64
}

func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Geom returns the point as a 2D go-geom point in lon/lat order.
func (p Point) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude})
}

// Distance is the haversine great-circle distance in kilometers. Invalid
// points are infinitely far from everything.
func Distance(a, b Point) float64 {
	if !a.Valid() || !b.Valid() {
		return math.Inf(1)
	}

	lat1 := a.Latitude * math.Pi / 180.0
	lon1 := a.Longitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	lon2 := b.Longitude * math.Pi / 180.0

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// NormalizeLongitude wraps a longitude into [-180, 180).
func NormalizeLongitude(lng float64) float64 {
	return math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
}

func KmToDegrees(km float64) float64 {
	return km / KmPerDegree
}
