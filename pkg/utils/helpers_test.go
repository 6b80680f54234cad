package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMeters(t *testing.T) {
	// Calgary Tower to the Saddledome, roughly 1.1 km
	d := HaversineMeters(51.0448, -114.0630, 51.0374, -114.0519)
	assert.InDelta(t, 1140, d, 60)

	assert.Zero(t, HaversineMeters(51.0447, -114.0719, 51.0447, -114.0719))

	// one degree of latitude on the haversine sphere
	assert.InDelta(t, 111195, HaversineMeters(0, 0, 1, 0), 1)
}

func TestMetersDegreesRoundTrip(t *testing.T) {
	assert.InDelta(t, 0.0045045, MetersToDegrees(500), 1e-7)
	assert.InDelta(t, 500, DegreesToMeters(MetersToDegrees(500)), 1e-9)
	assert.Equal(t, 1.0, MetersToDegrees(111000))
}

func TestClampAndRound(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3, 0, 100))
	assert.Equal(t, 100.0, Clamp(130, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
	assert.Equal(t, 3.14, RoundTo(3.14159, 2))
	assert.Equal(t, 5.0, Lerp(0, 10, 0.5))
}

func TestNormalizeCoordinate(t *testing.T) {
	lat, lon := NormalizeCoordinate(90.05, 180.02)
	assert.Equal(t, 90.0, lat)
	assert.InDelta(t, -179.98, lon, 1e-9)

	lat, lon = NormalizeCoordinate(-91, -180.5)
	assert.Equal(t, -90.0, lat)
	assert.InDelta(t, 179.5, lon, 1e-9)

	lat, lon = NormalizeCoordinate(51.0447, -114.0719)
	assert.Equal(t, 51.0447, lat)
	assert.Equal(t, -114.0719, lon)

	assert.Equal(t, 180.0, WrapLongitude(180))
	assert.Equal(t, -180.0, WrapLongitude(-180))
	assert.InDelta(t, 10, WrapLongitude(730), 1e-9)
}
