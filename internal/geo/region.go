package geo

import (
	"github.com/mmcloughlin/geohash"
)

// approximate geohash cell widths in km by precision
var cellWidthKm = []float64{
	1: 5000,
	2: 1250,
	3: 156,
	4: 39.1,
	5: 4.89,
	6: 1.22,
	7: 0.153,
	8: 0.0382,
}

// RegionPrecision picks the coarsest geohash precision whose cells are at
// most a tenth of the search radius, so nearby centers share a key.
func RegionPrecision(radiusKm float64) uint {
	for p := 1; p < len(cellWidthKm); p++ {
		if cellWidthKm[p] <= radiusKm/10 {
			return uint(p)
		}
	}
	return uint(len(cellWidthKm) - 1)
}

// RegionKey is the geohash of a search center at a radius-dependent precision.
func RegionKey(center Point, radiusKm float64) string {
	return geohash.EncodeWithPrecision(center.Latitude, NormalizeLongitude(center.Longitude), RegionPrecision(radiusKm))
}
