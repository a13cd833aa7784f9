package motion

import (
	"math"
	"sort"
)

// Segment is one constant-velocity leg of a piecewise pattern. A segment
// covers the half-open interval [Start, End); the final segment of a track
// is open-ended with End = +Inf.
type Segment struct {
	Start      float64
	End        float64
	Origin     Point // position at Start
	HeadingDeg float64
	SpeedKnots float64
}

func (s Segment) positionAt(t float64) Point {
	return displace(s.Origin, s.HeadingDeg, s.SpeedKnots*KnotsToMS*(t-s.Start))
}

// track is a time-ordered, contiguous list of segments whose last entry is
// open-ended. Lookup is total: times before the first segment resolve to the
// first segment (backward extrapolation).
type track []Segment

// appendLeg closes the previous leg (if any) and appends a new one that
// starts where the previous leg ends.
func (tr track) appendLeg(origin Point, start, duration, headingDeg, speedKnots float64) (track, Point) {
	seg := Segment{
		Start:      start,
		End:        start + duration,
		Origin:     origin,
		HeadingDeg: NormalizeHeading(headingDeg),
		SpeedKnots: speedKnots,
	}
	next := displace(origin, seg.HeadingDeg, speedKnots*KnotsToMS*duration)
	return append(tr, seg), next
}

func (tr track) openTail() track {
	tr[len(tr)-1].End = math.Inf(1)
	return tr
}

func (tr track) find(t float64) Segment {
	i := sort.Search(len(tr), func(i int) bool { return t < tr[i].End })
	if i == len(tr) {
		// only reachable for NaN queries; the tail is open
		i = len(tr) - 1
	}
	return tr[i]
}

func (tr track) position(t float64) (float64, float64) {
	p := tr.find(t).positionAt(t)
	return p.Lat, p.Lon
}

func (tr track) clone() []Segment {
	out := make([]Segment, len(tr))
	copy(out, tr)
	return out
}
