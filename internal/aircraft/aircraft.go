package aircraft

import (
	"fmt"

	"adsbsynth/internal/motion"
)

// GeomAltitudeOffsetFt is added to barometric altitude to produce the
// geometric altitude reported alongside it
const GeomAltitudeOffsetFt = 100

// Kind classifies how an aircraft was generated
type Kind int

const (
	KindNormal Kind = iota
	KindSupersonic
	KindDirectionChange
	KindAcceleration
)

func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindSupersonic:
		return "supersonic"
	case KindDirectionChange:
		return "direction-change"
	case KindAcceleration:
		return "acceleration"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Aircraft binds a motion pattern to transponder reporting metadata.
// Values are built once by the Manager and never modified afterwards.
type Aircraft struct {
	ICAO         string // six upper-case hex digits
	Flight       string
	Motion       motion.Pattern
	AltitudeFt   int // barometric
	Kind         Kind
	HasADSB      bool
	ADSBAccurate bool

	// Reported in place of the true values when ADSBAccurate is false
	GroundSpeedOverride *float64
	TrackOverride       *float64
}

// Report is one entry of the transponder feed
type Report struct {
	ICAO        string  `json:"hex"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AltBaroFt   int     `json:"alt_baro"`
	AltGeomFt   int     `json:"alt_geom"`
	GroundSpeed float64 `json:"gs"`    // knots
	Track       float64 `json:"track"` // degrees
	TrueHeading float64 `json:"true_heading"`
	Flight      string  `json:"flight"`
	SeenPos     float64 `json:"seen_pos"`
}

// State is the true kinematic state of an aircraft
type State struct {
	ICAO        string  `json:"hex"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AltGeomFt   int     `json:"alt_geom"`
	GroundSpeed float64 `json:"gs"`    // knots
	Track       float64 `json:"track"` // degrees
}

// True returns the physical state at t regardless of transponder status
func (a *Aircraft) True(t float64) State {
	lat, lon := a.Motion.Position(t)
	return State{
		ICAO:        a.ICAO,
		Lat:         lat,
		Lon:         lon,
		AltGeomFt:   a.AltitudeFt + GeomAltitudeOffsetFt,
		GroundSpeed: a.Motion.GroundSpeed(t),
		Track:       a.Motion.Heading(t),
	}
}

// Reported returns what the aircraft's transponder broadcasts at t. The
// second return value is false when the aircraft carries no transponder.
// Position and altitude are always truthful; a faulty transponder only
// misreports ground speed and track.
func (a *Aircraft) Reported(t float64) (Report, bool) {
	if !a.HasADSB {
		return Report{}, false
	}

	state := a.True(t)
	r := Report{
		ICAO:        a.ICAO,
		Lat:         state.Lat,
		Lon:         state.Lon,
		AltBaroFt:   a.AltitudeFt,
		AltGeomFt:   state.AltGeomFt,
		GroundSpeed: state.GroundSpeed,
		Track:       state.Track,
		TrueHeading: state.Track,
		Flight:      a.Flight,
	}

	if !a.ADSBAccurate {
		if a.GroundSpeedOverride != nil {
			r.GroundSpeed = *a.GroundSpeedOverride
		}
		if a.TrackOverride != nil {
			r.Track = *a.TrackOverride
		}
	}

	return r, true
}
