package checkpoint

import (
	"testing"

	"livetrack/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPolicy_FirstFixAlwaysCheckpoints(t *testing.T) {
	p := NewPolicy(0)
	require.True(t, p.ShouldCheckpoint(nil, 40.7128, -74.0060))
}

func TestPolicy_DistanceGate(t *testing.T) {
	p := NewPolicy(0) // default 100 m
	prev := &models.Coordinate{Latitude: 0, Longitude: 0}

	// ~55 m: below the gate.
	require.False(t, p.ShouldCheckpoint(prev, 0, 0.0005))

	// ~222 m: above the gate.
	require.True(t, p.ShouldCheckpoint(prev, 0, 0.002))
}

func TestPolicy_ConfiguredThreshold(t *testing.T) {
	p := NewPolicy(0.5)
	prev := &models.Coordinate{Latitude: 0, Longitude: 0}

	// ~222 m is below a 500 m gate.
	require.False(t, p.ShouldCheckpoint(prev, 0, 0.002))
	// ~1.1 km is above it.
	require.True(t, p.ShouldCheckpoint(prev, 0, 0.01))
}

func TestPolicy_InvalidSampleNeverCheckpoints(t *testing.T) {
	p := NewPolicy(0)
	prev := &models.Coordinate{Latitude: 0, Longitude: 0}
	require.False(t, p.ShouldCheckpoint(prev, 91, 0))
}
