package utils

import (
	"math"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by HaversineMeters
	EarthRadiusMeters = 6371000

	// MetersPerDegree is the flat conversion used for every radius and
	// sensitivity parameter. It ignores latitude on purpose so published
	// formulas can be reproduced exactly.
	MetersPerDegree = 111000
)

// HaversineMeters calculates the great-circle distance between two points in meters
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// MetersToDegrees converts a distance to degrees with the flat 111 km convention
func MetersToDegrees(meters float64) float64 {
	return meters / MetersPerDegree
}

// DegreesToMeters is the inverse of MetersToDegrees
func DegreesToMeters(degrees float64) float64 {
	return degrees * MetersPerDegree
}

// Clamp limits a value between min and max
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// RoundTo rounds a float to specified decimal places
func RoundTo(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}

// Lerp performs linear interpolation between two values
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// NormalizeCoordinate clamps latitude to [-90, 90] and wraps longitude
// into [-180, 180]
func NormalizeCoordinate(lat, lon float64) (float64, float64) {
	return Clamp(lat, -90, 90), WrapLongitude(lon)
}

// WrapLongitude maps any longitude onto the same meridian in [-180, 180]
func WrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	wrapped := math.Mod(lon+180, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped - 180
}
