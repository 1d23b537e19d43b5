package geo

import (
	"math"

	"github.com/hiketracker/hiketracker/pkg/types"
)

const earthRadiusM = 6371008.8

// DistanceM returns the great-circle distance between two samples in meters.
func DistanceM(a, b types.LocationSample) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}
