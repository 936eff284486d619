package geo

import (
	"math"

	"github.com/mr1hm/go-triage-queue/internal/models"
)

const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometers between a and b
// using the Haversine formula.
func Distance(a, b models.Location) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	// rounding can push h just past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Valid reports whether loc holds finite coordinates inside the lat/lng range.
func Valid(loc models.Location) bool {
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lng) || math.IsInf(loc.Lat, 0) || math.IsInf(loc.Lng, 0) {
		return false
	}
	return loc.Lat >= -90 && loc.Lat <= 90 && loc.Lng >= -180 && loc.Lng <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
