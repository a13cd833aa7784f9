package motion

import "fmt"

// SpeedStep is one entry of an InstantAcceleration speed profile
type SpeedStep struct {
	Duration   float64 // seconds
	SpeedKnots float64 // 0 holds position
}

// InstantAcceleration flies a fixed heading with piecewise-constant speed.
// The last step's speed continues for all time after the profile ends.
type InstantAcceleration struct {
	headingDeg float64
	segments   track
}

// NewInstantAcceleration precomputes the start position of every step
func NewInstantAcceleration(start Point, headingDeg float64, profile []SpeedStep) (*InstantAcceleration, error) {
	if len(profile) == 0 {
		return nil, ErrEmptyProfile
	}
	if !finite(headingDeg) {
		return nil, fmt.Errorf("%w: heading %v", ErrInvalidParameter, headingDeg)
	}

	segs := make(track, 0, len(profile))
	origin := start
	elapsed := 0.0
	for i, step := range profile {
		if !finite(step.Duration) || step.Duration <= 0 {
			return nil, fmt.Errorf("profile step %d duration %v: %w", i, step.Duration, ErrNonPositiveDuration)
		}
		if !finite(step.SpeedKnots) || step.SpeedKnots < 0 {
			return nil, fmt.Errorf("profile step %d speed %v: %w", i, step.SpeedKnots, ErrNegativeSpeed)
		}
		segs, origin = segs.appendLeg(origin, elapsed, step.Duration, headingDeg, step.SpeedKnots)
		elapsed = segs[i].End
	}

	return &InstantAcceleration{
		headingDeg: NormalizeHeading(headingDeg),
		segments:   segs.openTail(),
	}, nil
}

// Segments returns a copy of the precomputed steps
func (a *InstantAcceleration) Segments() []Segment { return a.segments.clone() }

// Position implements Pattern
func (a *InstantAcceleration) Position(t float64) (float64, float64) {
	return a.segments.position(t)
}

// GroundSpeed implements Pattern
func (a *InstantAcceleration) GroundSpeed(t float64) float64 {
	return a.segments.find(t).SpeedKnots
}

// Heading implements Pattern
func (a *InstantAcceleration) Heading(float64) float64 {
	return a.headingDeg
}

func (a *InstantAcceleration) pattern() {}
