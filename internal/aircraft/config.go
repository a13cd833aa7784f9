package aircraft

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidConfig is wrapped by every Config validation failure
var ErrInvalidConfig = errors.New("invalid aircraft config")

// Range is a closed interval sampled uniformly
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// IntRange is a closed integer interval
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// SupersonicConfig parameterizes supersonic anomalies
type SupersonicConfig struct {
	Mach       Range `json:"mach"`
	AltitudeFt Range `json:"altitude_ft"`
}

// DirectionChangeConfig parameterizes direction-change anomalies
type DirectionChangeConfig struct {
	SpeedKnots  Range `json:"speed_knots"`
	IntervalSec Range `json:"interval_sec"`
	Changes     int   `json:"changes"`
	AltitudeFt  Range `json:"altitude_ft"`
}

// AccelerationConfig parameterizes acceleration anomalies
type AccelerationConfig struct {
	Steps           IntRange `json:"steps"`
	DurationSec     Range    `json:"duration_sec"`
	SpeedKnots      Range    `json:"speed_knots"`
	HoldProbability float64  `json:"hold_probability"`
	AltitudeFt      Range    `json:"altitude_ft"`
}

// AnomalyConfig holds the randomized generation ranges for anomalous aircraft
type AnomalyConfig struct {
	StartOffsetDeg       float64 `json:"start_offset_deg"`
	ADSBProbability      float64 `json:"adsb_probability"`
	MisreportProbability float64 `json:"misreport_probability"`
	MisreportSpeedKnots  Range   `json:"misreport_speed_knots"`
	MisreportTrackOffset Range   `json:"misreport_track_offset_deg"`

	Supersonic      SupersonicConfig      `json:"supersonic"`
	DirectionChange DirectionChangeConfig `json:"direction_change"`
	Acceleration    AccelerationConfig    `json:"acceleration"`
}

// Config describes the aircraft population
type Config struct {
	OriginLat      float64 `json:"origin_lat"`
	OriginLon      float64 `json:"origin_lon"`
	RadiusDeg      float64 `json:"radius_deg"`
	AngularSpeed   float64 `json:"angular_speed"` // rad/s
	BaseAltitudeFt int     `json:"alt_baro_ft"`
	AltitudeStepFt int     `json:"altitude_step_ft"`
	ICAOHex        string  `json:"icao_hex"`
	NormalCount    int     `json:"normal_count"`
	AnomalousCount int     `json:"anomalous_count"`
	Seed           int64   `json:"seed"`

	Anomaly AnomalyConfig `json:"anomaly"`
}

// DefaultConfig returns a single aircraft circling Mount Lofty plus a few anomalies
func DefaultConfig() Config {
	return Config{
		OriginLat:      -34.9810,
		OriginLon:      138.7081,
		RadiusDeg:      0.05,
		AngularSpeed:   0.01,
		BaseAltitudeFt: 5000,
		AltitudeStepFt: 1000,
		ICAOHex:        "7C6DB8",
		NormalCount:    1,
		AnomalousCount: 3,
		Anomaly: AnomalyConfig{
			StartOffsetDeg:       0.1,
			ADSBProbability:      0.7,
			MisreportProbability: 0.5,
			MisreportSpeedKnots:  Range{Min: 420, Max: 480},
			MisreportTrackOffset: Range{Min: 30, Max: 150},
			Supersonic: SupersonicConfig{
				Mach:       Range{Min: 2.0, Max: 5.0},
				AltitudeFt: Range{Min: 35000, Max: 50000},
			},
			DirectionChange: DirectionChangeConfig{
				SpeedKnots:  Range{Min: 200, Max: 500},
				IntervalSec: Range{Min: 3, Max: 10},
				Changes:     10,
				AltitudeFt:  Range{Min: 8000, Max: 25000},
			},
			Acceleration: AccelerationConfig{
				Steps:           IntRange{Min: 3, Max: 6},
				DurationSec:     Range{Min: 5, Max: 20},
				SpeedKnots:      Range{Min: 100, Max: 500},
				HoldProbability: 0.25,
				AltitudeFt:      Range{Min: 3000, Max: 15000},
			},
		},
	}
}

// ICAOBase parses ICAOHex as a 24-bit address
func (c Config) ICAOBase() (uint32, error) {
	if len(c.ICAOHex) != 6 {
		return 0, fmt.Errorf("%w: icao_hex %q must be six hex digits", ErrInvalidConfig, c.ICAOHex)
	}
	v, err := strconv.ParseUint(c.ICAOHex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: icao_hex %q: %v", ErrInvalidConfig, c.ICAOHex, err)
	}
	return uint32(v), nil
}

// Validate checks every parameter before any aircraft is generated
func (c Config) Validate() error {
	base, err := c.ICAOBase()
	if err != nil {
		return err
	}

	if c.NormalCount < 0 || c.AnomalousCount < 0 {
		return fmt.Errorf("%w: aircraft counts must not be negative (normal=%d, anomalous=%d)",
			ErrInvalidConfig, c.NormalCount, c.AnomalousCount)
	}
	if total := uint64(c.NormalCount + c.AnomalousCount); total > 0 && uint64(base)+total-1 > 0xFFFFFF {
		return fmt.Errorf("%w: %d aircraft starting at %s overflow the 24-bit address space",
			ErrInvalidConfig, total, c.ICAOHex)
	}

	if !isFinite(c.OriginLat) || math.Abs(c.OriginLat) > 90 || !isFinite(c.OriginLon) || math.Abs(c.OriginLon) > 180 {
		return fmt.Errorf("%w: origin (%v, %v) out of range", ErrInvalidConfig, c.OriginLat, c.OriginLon)
	}
	if !isFinite(c.RadiusDeg) || c.RadiusDeg < 0 {
		return fmt.Errorf("%w: radius_deg %v", ErrInvalidConfig, c.RadiusDeg)
	}
	if !isFinite(c.AngularSpeed) {
		return fmt.Errorf("%w: angular_speed %v", ErrInvalidConfig, c.AngularSpeed)
	}

	// Anomaly ranges only matter when anomalies are generated
	if c.AnomalousCount == 0 {
		return nil
	}
	return c.Anomaly.validate()
}

func (a AnomalyConfig) validate() error {
	probabilities := []struct {
		name string
		p    float64
	}{
		{"adsb_probability", a.ADSBProbability},
		{"misreport_probability", a.MisreportProbability},
		{"acceleration.hold_probability", a.Acceleration.HoldProbability},
	}
	for _, pr := range probabilities {
		if !isFinite(pr.p) || pr.p < 0 || pr.p > 1 {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidConfig, pr.name, pr.p)
		}
	}

	if !isFinite(a.StartOffsetDeg) || a.StartOffsetDeg < 0 {
		return fmt.Errorf("%w: start_offset_deg %v", ErrInvalidConfig, a.StartOffsetDeg)
	}

	ranges := []struct {
		name string
		r    Range
		lo   float64 // lowest allowed Min
		open bool    // Min must be strictly greater than lo
	}{
		{"misreport_speed_knots", a.MisreportSpeedKnots, 0, false},
		{"misreport_track_offset_deg", a.MisreportTrackOffset, -360, false},
		{"supersonic.mach", a.Supersonic.Mach, 0, true},
		{"supersonic.altitude_ft", a.Supersonic.AltitudeFt, 0, false},
		{"direction_change.speed_knots", a.DirectionChange.SpeedKnots, 0, false},
		{"direction_change.interval_sec", a.DirectionChange.IntervalSec, 0, true},
		{"direction_change.altitude_ft", a.DirectionChange.AltitudeFt, 0, false},
		{"acceleration.duration_sec", a.Acceleration.DurationSec, 0, true},
		{"acceleration.speed_knots", a.Acceleration.SpeedKnots, 0, false},
		{"acceleration.altitude_ft", a.Acceleration.AltitudeFt, 0, false},
	}
	for _, r := range ranges {
		if err := r.r.check(r.name, r.lo, r.open); err != nil {
			return err
		}
	}

	if a.DirectionChange.Changes < 0 {
		return fmt.Errorf("%w: direction_change.changes %d", ErrInvalidConfig, a.DirectionChange.Changes)
	}
	if s := a.Acceleration.Steps; s.Min < 1 || s.Max < s.Min {
		return fmt.Errorf("%w: acceleration.steps [%d,%d]", ErrInvalidConfig, s.Min, s.Max)
	}

	return nil
}

func (r Range) check(name string, lo float64, open bool) error {
	if !isFinite(r.Min) || !isFinite(r.Max) || r.Max < r.Min {
		return fmt.Errorf("%w: %s [%v,%v]", ErrInvalidConfig, name, r.Min, r.Max)
	}
	if r.Min < lo || (open && r.Min == lo) {
		return fmt.Errorf("%w: %s minimum %v out of range", ErrInvalidConfig, name, r.Min)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
