// Package detection turns true aircraft states into passive bistatic radar
// detections for a configured transmitter and set of receivers.
package detection

import (
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/motion"
)

// Plausible bistatic range band for airborne targets; detections outside it
// are still produced but logged.
const (
	MinPlausibleRangeKm = 5.0
	MaxPlausibleRangeKm = 300.0
)

// SNR band in dB. Values are synthetic and fixed per aircraft.
const (
	snrBaseDB = 15.0
	snrSpanDB = 10
)

// Detection is one synthetic radar return
type Detection struct {
	ID             string    `json:"detection_id"`
	Timestamp      time.Time `json:"timestamp"`
	BistaticRangeM float64   `json:"bistatic_range_m"`
	DopplerHz      float64   `json:"doppler_hz"`
	SNRDB          float64   `json:"snr_db"`
	RadarID        string    `json:"radar_id"`
	FrequencyHz    float64   `json:"frequency_hz"`
	ICAO           string    `json:"hex"`
}

// DelayKm is the bistatic range expressed in kilometres
func (d Detection) DelayKm() float64 {
	return d.BistaticRangeM / 1000
}

// Synthesizer produces detections. It holds no per-query state and is safe
// for concurrent use.
type Synthesizer struct {
	tx     Position
	model  DopplerModel
	now    func() time.Time
	newID  func() string
	logger *logrus.Logger
}

// Option customizes a Synthesizer
type Option func(*Synthesizer)

// WithClock replaces the wall clock used to stamp detections
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// WithIDFunc replaces the detection id generator
func WithIDFunc(newID func() string) Option {
	return func(s *Synthesizer) { s.newID = newID }
}

// NewSynthesizer creates a synthesizer for the transmitter and Doppler model
// in cfg
func NewSynthesizer(cfg Config, logger *logrus.Logger, opts ...Option) *Synthesizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	model := cfg.DopplerModel
	if model == "" {
		model = DopplerTotalSpeed
	}

	s := &Synthesizer{
		tx:     Position{Lat: cfg.Transmitter.Lat, Lon: cfg.Transmitter.Lon, AltM: cfg.Transmitter.AltM},
		model:  model,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the Doppler model in use
func (s *Synthesizer) Model() DopplerModel { return s.model }

// Synthesize produces one detection per state for the given radar. Every
// call yields a fresh batch with new ids and a single timestamp.
func (s *Synthesizer) Synthesize(states []aircraft.State, radar Radar) []Detection {
	ts := s.now()
	rx := Position{Lat: radar.Lat, Lon: radar.Lon, AltM: radar.AltM}

	out := make([]Detection, 0, len(states))
	for _, st := range states {
		target := Position{
			Lat:  st.Lat,
			Lon:  st.Lon,
			AltM: float64(st.AltGeomFt) * FeetToMeters,
		}
		speedMS := st.GroundSpeed * motion.KnotsToMS

		var doppler float64
		switch s.model {
		case DopplerBistaticProjected:
			doppler = projectedDoppler(radar.FrequencyHz, s.tx, target, rx, speedMS, st.Track)
		default:
			doppler = totalSpeedDoppler(radar.FrequencyHz, speedMS)
		}

		d := Detection{
			ID:             s.newID(),
			Timestamp:      ts,
			BistaticRangeM: BistaticRange(s.tx, target, rx),
			DopplerHz:      doppler,
			SNRDB:          SNR(st.ICAO),
			RadarID:        radar.ID,
			FrequencyHz:    radar.FrequencyHz,
			ICAO:           st.ICAO,
		}
		s.checkRange(d)
		out = append(out, d)
	}
	return out
}

func (s *Synthesizer) checkRange(d Detection) {
	km := d.DelayKm()
	if km >= MinPlausibleRangeKm && km <= MaxPlausibleRangeKm {
		return
	}

	msg := "Unrealistically large bistatic range"
	if km < MinPlausibleRangeKm {
		msg = "Unrealistically small bistatic range"
	}
	s.logger.WithFields(logrus.Fields{
		"radar":    d.RadarID,
		"icao":     d.ICAO,
		"range_km": km,
	}).Warn(msg)
}

// SNR is a synthetic signal-to-noise ratio in [15, 25) dB derived from the
// aircraft address. The same address always yields the same value.
func SNR(icao string) float64 {
	h := fnv.New32a()
	h.Write([]byte(icao))
	return snrBaseDB + float64(h.Sum32()%snrSpanDB)
}
