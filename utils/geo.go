package utils

import (
	"fmt"
	"math"

	"venuePresenceAPI/internal/types/venue"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between a and b.
// ok is false when either point is missing or not a finite, in-range
// coordinate; callers must treat that as "unknown", never as zero.
func DistanceKm(a, b *venue.Coordinate) (km float64, ok bool) {
	if !usable(a) || !usable(b) {
		return 0, false
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c, true
}

// FormatDistance renders meters under 1 km and one decimal km otherwise.
// An unknown distance (nil) renders as the empty string.
func FormatDistance(km *float64) string {
	if km == nil || math.IsNaN(*km) || math.IsInf(*km, 0) {
		return ""
	}
	if *km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(*km*1000)))
	}
	return fmt.Sprintf("%.1fkm", *km)
}

func usable(c *venue.Coordinate) bool {
	if c == nil {
		return false
	}
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) || math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Valid()
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
