package motion

import "fmt"

// DefaultDirectionChanges is the number of +90 degree turns precomputed
// before the pattern settles onto its final heading.
const DefaultDirectionChanges = 10

// InstantDirectionChange flies constant-speed legs of fixed duration and
// turns exactly +90 degrees at each leg boundary. After the last precomputed
// turn it keeps flying the final heading indefinitely.
type InstantDirectionChange struct {
	speedKnots float64
	interval   float64
	segments   track
}

// NewInstantDirectionChange precomputes changes+1 legs starting at start.
func NewInstantDirectionChange(start Point, speedKnots, initialHeadingDeg, interval float64, changes int) (*InstantDirectionChange, error) {
	if !finite(interval) || interval <= 0 {
		return nil, fmt.Errorf("direction change interval %v: %w", interval, ErrNonPositiveDuration)
	}
	if !finite(speedKnots) || speedKnots < 0 {
		return nil, fmt.Errorf("direction change speed %v: %w", speedKnots, ErrNegativeSpeed)
	}
	if !finite(initialHeadingDeg) || changes < 0 {
		return nil, fmt.Errorf("%w: heading %v, changes %d", ErrInvalidParameter, initialHeadingDeg, changes)
	}

	segs := make(track, 0, changes+1)
	origin := start
	heading := initialHeadingDeg
	elapsed := 0.0
	for i := 0; i <= changes; i++ {
		segs, origin = segs.appendLeg(origin, elapsed, interval, heading, speedKnots)
		elapsed = segs[i].End
		heading += 90
	}

	return &InstantDirectionChange{
		speedKnots: speedKnots,
		interval:   interval,
		segments:   segs.openTail(),
	}, nil
}

// Segments returns a copy of the precomputed legs
func (d *InstantDirectionChange) Segments() []Segment { return d.segments.clone() }

// Interval returns the leg duration in seconds
func (d *InstantDirectionChange) Interval() float64 { return d.interval }

// Position implements Pattern
func (d *InstantDirectionChange) Position(t float64) (float64, float64) {
	return d.segments.position(t)
}

// GroundSpeed implements Pattern
func (d *InstantDirectionChange) GroundSpeed(float64) float64 {
	return d.speedKnots
}

// Heading implements Pattern
func (d *InstantDirectionChange) Heading(t float64) float64 {
	return d.segments.find(t).HeadingDeg
}

func (d *InstantDirectionChange) pattern() {}
