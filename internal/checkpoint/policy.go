package checkpoint

import (
	"livetrack/internal/geo"
	"livetrack/internal/models"
)

// DefaultDistanceKm is the minimum travel between persisted checkpoints.
// Raw GPS samples arrive far more often than is worth showing a customer;
// the gate bounds checkpoint volume to roughly one per 100 m regardless of
// the feed frequency.
const DefaultDistanceKm = 0.1

// Policy decides whether a location sample is worth persisting as a
// checkpoint.
type Policy struct {
	thresholdKm float64
}

func NewPolicy(thresholdKm float64) *Policy {
	if thresholdKm <= 0 {
		thresholdKm = DefaultDistanceKm
	}
	return &Policy{thresholdKm: thresholdKm}
}

// ShouldCheckpoint returns true for the first fix of a delivery, and after
// that whenever the sample is farther than the threshold from the last
// recorded position. Samples with an invalid coordinate never checkpoint.
func (p *Policy) ShouldCheckpoint(prev *models.Coordinate, lat, lon float64) bool {
	if prev == nil {
		return true
	}
	d, err := geo.DistanceKm(prev.Latitude, prev.Longitude, lat, lon)
	if err != nil {
		return false
	}
	return d > p.thresholdKm
}
