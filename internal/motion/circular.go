package motion

import (
	"fmt"
	"math"
)

// Circular flies a circle of constant angular radius around a center point
type Circular struct {
	center       Point
	radiusDeg    float64
	angularSpeed float64 // rad/s
	phase        float64 // rad, angle at t=0
}

// NewCircular creates a circular pattern. A phase of zero puts the aircraft
// due north of the center at t=0.
func NewCircular(center Point, radiusDeg, angularSpeed, phase float64) (*Circular, error) {
	if !finite(radiusDeg) || radiusDeg < 0 {
		return nil, fmt.Errorf("%w: radius %v", ErrInvalidParameter, radiusDeg)
	}
	if !finite(angularSpeed) || !finite(phase) {
		return nil, fmt.Errorf("%w: angular speed %v, phase %v", ErrInvalidParameter, angularSpeed, phase)
	}
	return &Circular{
		center:       center,
		radiusDeg:    radiusDeg,
		angularSpeed: angularSpeed,
		phase:        phase,
	}, nil
}

// Center returns the circle center
func (c *Circular) Center() Point { return c.center }

// RadiusDeg returns the circle radius in degrees
func (c *Circular) RadiusDeg() float64 { return c.radiusDeg }

func (c *Circular) theta(t float64) float64 {
	return math.Mod(t*c.angularSpeed+c.phase, 2*math.Pi)
}

// Position implements Pattern
func (c *Circular) Position(t float64) (float64, float64) {
	theta := c.theta(t)
	return c.center.Lat + c.radiusDeg*math.Cos(theta),
		c.center.Lon + c.radiusDeg*math.Sin(theta)
}

// velocityMS returns the north and east velocity components in m/s
func (c *Circular) velocityMS(t float64) (north, east float64) {
	theta := c.theta(t)
	lat, _ := c.Position(t)

	dlat := -c.radiusDeg * c.angularSpeed * math.Sin(theta)
	dlon := c.radiusDeg * c.angularSpeed * math.Cos(theta)

	return dlat * MetersPerDegree, dlon * MetersPerDegree * math.Cos(lat*math.Pi/180)
}

// GroundSpeed implements Pattern
func (c *Circular) GroundSpeed(t float64) float64 {
	north, east := c.velocityMS(t)
	return math.Hypot(north, east) * MSToKnots
}

// Heading implements Pattern
func (c *Circular) Heading(t float64) float64 {
	north, east := c.velocityMS(t)
	return NormalizeHeading(math.Atan2(east, north) * 180 / math.Pi)
}

func (c *Circular) pattern() {}
