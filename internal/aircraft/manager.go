// Package aircraft owns the simulated population: normal aircraft flying
// circles around the scenario origin and randomly generated anomalies.
package aircraft

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"adsbsynth/internal/motion"
)

// Manager holds a fixed population built once at construction. All query
// methods are read-only and safe for concurrent use.
type Manager struct {
	aircraft []*Aircraft
	byICAO   map[string]*Aircraft
	logger   *logrus.Logger
}

// NewManager validates cfg and generates the population. Anomalous aircraft
// draw from src; when src is nil a PCG source seeded with cfg.Seed is used.
func NewManager(cfg Config, src Source, logger *logrus.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = NewSource(cfg.Seed)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	base, _ := cfg.ICAOBase()
	m := &Manager{
		aircraft: make([]*Aircraft, 0, cfg.NormalCount+cfg.AnomalousCount),
		byICAO:   make(map[string]*Aircraft, cfg.NormalCount+cfg.AnomalousCount),
		logger:   logger,
	}

	for i := 0; i < cfg.NormalCount; i++ {
		a, err := newNormal(cfg, i, icaoString(base+uint32(i)))
		if err != nil {
			return nil, fmt.Errorf("failed to build normal aircraft %d: %w", i, err)
		}
		m.add(a)
	}

	for i := 0; i < cfg.AnomalousCount; i++ {
		icao := icaoString(base + uint32(cfg.NormalCount+i))
		a, err := newAnomalous(cfg, src, i, icao)
		if err != nil {
			return nil, fmt.Errorf("failed to build anomalous aircraft %d: %w", i, err)
		}
		m.add(a)
	}

	m.logger.WithFields(logrus.Fields{
		"normal":    cfg.NormalCount,
		"anomalous": cfg.AnomalousCount,
		"seed":      cfg.Seed,
	}).Info("Generated aircraft population")

	return m, nil
}

func (m *Manager) add(a *Aircraft) {
	m.aircraft = append(m.aircraft, a)
	m.byICAO[a.ICAO] = a

	fields := logrus.Fields{
		"icao":     a.ICAO,
		"flight":   a.Flight,
		"kind":     a.Kind.String(),
		"alt_ft":   a.AltitudeFt,
		"has_adsb": a.HasADSB,
		"accurate": a.ADSBAccurate,
	}
	if a.GroundSpeedOverride != nil {
		fields["gs_override"] = *a.GroundSpeedOverride
	}
	if a.TrackOverride != nil {
		fields["track_override"] = *a.TrackOverride
	}
	m.logger.WithFields(fields).Debug("Aircraft created")
}

// Aircraft returns a copy of the population in creation order
func (m *Manager) Aircraft() []Aircraft {
	out := make([]Aircraft, len(m.aircraft))
	for i, a := range m.aircraft {
		out[i] = *a
	}
	return out
}

// Lookup finds an aircraft by ICAO hex (case-insensitive)
func (m *Manager) Lookup(icao string) (Aircraft, bool) {
	a, ok := m.byICAO[strings.ToUpper(icao)]
	if !ok {
		return Aircraft{}, false
	}
	return *a, true
}

// Len returns the population size
func (m *Manager) Len() int { return len(m.aircraft) }

// ReportedFeed returns the transponder view at t. Aircraft without a
// transponder are omitted.
func (m *Manager) ReportedFeed(t float64) []Report {
	out := make([]Report, 0, len(m.aircraft))
	for _, a := range m.aircraft {
		if r, ok := a.Reported(t); ok {
			out = append(out, r)
		}
	}
	return out
}

// TrueStates returns the physical state of every aircraft at t
func (m *Manager) TrueStates(t float64) []State {
	out := make([]State, len(m.aircraft))
	for i, a := range m.aircraft {
		out[i] = a.True(t)
	}
	return out
}

func icaoString(addr uint32) string {
	return fmt.Sprintf("%06X", addr&0xFFFFFF)
}

// newNormal builds the i-th circling aircraft. Aircraft are spread evenly
// around the circle and stacked in altitude.
func newNormal(cfg Config, i int, icao string) (*Aircraft, error) {
	phase := 0.0
	if cfg.NormalCount > 1 {
		phase = 2 * math.Pi * float64(i) / float64(cfg.NormalCount)
	}

	pattern, err := motion.NewCircular(
		motion.Point{Lat: cfg.OriginLat, Lon: cfg.OriginLon},
		cfg.RadiusDeg, cfg.AngularSpeed, phase)
	if err != nil {
		return nil, err
	}

	return &Aircraft{
		ICAO:         icao,
		Flight:       fmt.Sprintf("SYN%03d", i+1),
		Motion:       pattern,
		AltitudeFt:   cfg.BaseAltitudeFt + i*cfg.AltitudeStepFt,
		Kind:         KindNormal,
		HasADSB:      true,
		ADSBAccurate: true,
	}, nil
}

// newAnomalous draws one anomalous aircraft. The draw order is fixed so a
// given seed always reproduces the same population:
// offset lat, offset lon, heading, kind, kind parameters, altitude,
// transponder presence, then (supersonic only) misreport and overrides.
func newAnomalous(cfg Config, src Source, i int, icao string) (*Aircraft, error) {
	an := cfg.Anomaly
	offset := Range{Min: -an.StartOffsetDeg, Max: an.StartOffsetDeg}
	start := motion.Point{
		Lat: cfg.OriginLat + between(src, offset),
		Lon: cfg.OriginLon + between(src, offset),
	}
	heading := between(src, Range{Min: 0, Max: 360})

	a := &Aircraft{
		ICAO:         icao,
		Flight:       fmt.Sprintf("ANM%03d", i+1),
		ADSBAccurate: true,
	}

	var (
		altitude Range
		err      error
	)
	switch src.Intn(3) {
	case 0:
		a.Kind = KindSupersonic
		mach := between(src, an.Supersonic.Mach)
		a.Motion, err = motion.NewSupersonicLinear(start, mach, heading)
		altitude = an.Supersonic.AltitudeFt

	case 1:
		a.Kind = KindDirectionChange
		speed := between(src, an.DirectionChange.SpeedKnots)
		interval := between(src, an.DirectionChange.IntervalSec)
		a.Motion, err = motion.NewInstantDirectionChange(start, speed, heading, interval, an.DirectionChange.Changes)
		altitude = an.DirectionChange.AltitudeFt

	default:
		a.Kind = KindAcceleration
		a.Motion, err = motion.NewInstantAcceleration(start, heading, speedProfile(src, an.Acceleration))
		altitude = an.Acceleration.AltitudeFt
	}
	if err != nil {
		return nil, fmt.Errorf("%s pattern: %w", a.Kind, err)
	}

	a.AltitudeFt = int(math.Round(between(src, altitude)))
	a.HasADSB = chance(src, an.ADSBProbability)

	if a.Kind == KindSupersonic && a.HasADSB && chance(src, an.MisreportProbability) {
		gs := between(src, an.MisreportSpeedKnots)
		track := motion.NormalizeHeading(heading + between(src, an.MisreportTrackOffset))
		a.ADSBAccurate = false
		a.GroundSpeedOverride = &gs
		a.TrackOverride = &track
	}

	return a, nil
}

func speedProfile(src Source, cfg AccelerationConfig) []motion.SpeedStep {
	n := cfg.Steps.Min + src.Intn(cfg.Steps.Max-cfg.Steps.Min+1)
	profile := make([]motion.SpeedStep, n)
	for i := range profile {
		profile[i].Duration = between(src, cfg.DurationSec)
		if chance(src, cfg.HoldProbability) {
			continue
		}
		profile[i].SpeedKnots = between(src, cfg.SpeedKnots)
	}
	return profile
}
