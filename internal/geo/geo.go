package geo

import (
	"math"

	"github.com/pkg/errors"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between two points
// in kilometers. Coordinates outside the valid domain are rejected.
func DistanceKm(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := Validate(lat1, lon1); err != nil {
		return 0, err
	}
	if err := Validate(lat2, lon2); err != nil {
		return 0, err
	}

	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c, nil
}

// Validate checks latitude ∈ [-90,90] and longitude ∈ [-180,180].
func Validate(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return errors.Errorf("latitude out of range: %v", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return errors.Errorf("longitude out of range: %v", lon)
	}
	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
