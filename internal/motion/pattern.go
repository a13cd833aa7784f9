// Package motion implements the kinematic models that drive synthetic
// aircraft. Every pattern is immutable after construction and is a pure
// function of elapsed time t (seconds since the pattern's start epoch).
// Negative t is valid and extrapolates the governing equations backwards.
package motion

import (
	"errors"
	"math"
)

// Flat-earth conversion constants shared by all patterns
const (
	MetersPerDegree = 111320.0 // 1 degree of latitude
	MSToKnots       = 1.94384
	KnotsToMS       = 0.514444
	SpeedOfSoundMS  = 343.0 // Mach 1
)

// Construction errors
var (
	ErrEmptyProfile        = errors.New("speed profile is empty")
	ErrNonPositiveDuration = errors.New("segment duration must be positive")
	ErrNegativeSpeed       = errors.New("segment speed must not be negative")
	ErrInvalidParameter    = errors.New("invalid motion parameter")
)

// Point is a latitude/longitude pair in degrees
type Point struct {
	Lat float64
	Lon float64
}

// Pattern is the contract every motion model satisfies. The set of
// implementations is closed: Circular, SupersonicLinear,
// InstantDirectionChange and InstantAcceleration.
type Pattern interface {
	// Position returns latitude and longitude in degrees
	Position(t float64) (lat, lon float64)

	// GroundSpeed returns ground speed in knots
	GroundSpeed(t float64) float64

	// Heading returns true heading in degrees, clockwise from north, in [0,360)
	Heading(t float64) float64

	pattern()
}

// NormalizeHeading maps any angle in degrees into [0,360)
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	// math.Mod of a tiny negative value plus 360 can round up to 360
	if h >= 360 {
		h = 0
	}
	return h
}

// displace moves a point distanceM meters along headingDeg using the
// flat-earth approximation. The longitude step uses the cosine of the
// destination latitude.
func displace(from Point, headingDeg, distanceM float64) Point {
	h := headingDeg * math.Pi / 180
	lat := from.Lat + (distanceM/MetersPerDegree)*math.Cos(h)
	lon := from.Lon + (distanceM/MetersPerDegree)*math.Sin(h)/math.Cos(lat*math.Pi/180)
	return Point{Lat: lat, Lon: lon}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
