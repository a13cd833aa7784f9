package motion

import "fmt"

// SupersonicLinear flies a straight line at a constant Mach number
type SupersonicLinear struct {
	start      Point
	mach       float64
	headingDeg float64
	speedMS    float64
}

// NewSupersonicLinear creates a straight-line pattern from start along headingDeg
func NewSupersonicLinear(start Point, mach, headingDeg float64) (*SupersonicLinear, error) {
	if !finite(mach) || mach < 0 {
		return nil, fmt.Errorf("%w: mach %v", ErrInvalidParameter, mach)
	}
	if !finite(headingDeg) {
		return nil, fmt.Errorf("%w: heading %v", ErrInvalidParameter, headingDeg)
	}
	return &SupersonicLinear{
		start:      start,
		mach:       mach,
		headingDeg: NormalizeHeading(headingDeg),
		speedMS:    mach * SpeedOfSoundMS,
	}, nil
}

// Mach returns the configured Mach number
func (s *SupersonicLinear) Mach() float64 { return s.mach }

// Position implements Pattern
func (s *SupersonicLinear) Position(t float64) (float64, float64) {
	p := displace(s.start, s.headingDeg, s.speedMS*t)
	return p.Lat, p.Lon
}

// GroundSpeed implements Pattern
func (s *SupersonicLinear) GroundSpeed(float64) float64 {
	return s.speedMS * MSToKnots
}

// Heading implements Pattern
func (s *SupersonicLinear) Heading(float64) float64 {
	return s.headingDeg
}

func (s *SupersonicLinear) pattern() {}
