// Package geo provides great-circle distance and territory clustering
// relative to the service hub.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used for haversine distance.
const EarthRadiusMiles = 3959.0

// Point is a WGS-84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" mapstructure:"lat"`
	Lng float64 `json:"lng" mapstructure:"lng"`
}

// DistanceMiles returns the haversine great-circle distance in miles
// between two points given in decimal degrees. The result is symmetric and
// never negative.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	// Canonical argument order keeps d(a,b) bit-identical to d(b,a).
	if lat1 > lat2 || (lat1 == lat2 && lng1 > lng2) {
		lat1, lng1, lat2, lng2 = lat2, lng2, lat1, lng1
	}

	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*sinLng*sinLng
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// Distance returns DistanceMiles between two points.
func (p Point) Distance(q Point) float64 {
	return DistanceMiles(p.Lat, p.Lng, q.Lat, q.Lng)
}

// RoundMiles rounds a distance to two decimal places.
func RoundMiles(d float64) float64 {
	return math.Round(d*100) / 100
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
