package detection

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfig is wrapped by every Config validation failure
	ErrInvalidConfig = errors.New("invalid detection config")

	// ErrUnknownRadar is returned when a radar id is not configured
	ErrUnknownRadar = errors.New("unknown radar")
)

// DopplerModel selects how Doppler shift is derived from aircraft velocity
type DopplerModel string

const (
	// DopplerTotalSpeed uses 2·f·v/c with v the total ground speed
	DopplerTotalSpeed DopplerModel = "total_speed"

	// DopplerBistaticProjected projects velocity onto the transmitter and
	// receiver lines of sight and uses -f/c · dR/dt
	DopplerBistaticProjected DopplerModel = "projected"
)

// Transmitter is the illuminator of opportunity shared by every radar
type Transmitter struct {
	Lat  float64 `json:"latitude"`
	Lon  float64 `json:"longitude"`
	AltM float64 `json:"altitude"`
}

// Radar is a passive receiver. FrequencyHz is filled from Config.FrequencyMHz
// when left at zero. Port is optional and gives the radar its own listener.
type Radar struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AltM        float64 `json:"alt"`
	FrequencyHz float64 `json:"frequency_hz,omitempty"`
	Port        int     `json:"port,omitempty"`
}

// Config describes the radar network
type Config struct {
	Transmitter  Transmitter  `json:"transmitter"`
	FrequencyMHz float64      `json:"fc_mhz"`
	DopplerModel DopplerModel `json:"doppler_model"`
	Radars       []Radar      `json:"radars"`

	// DefaultRadar is served when no radar id is given. Empty means the
	// first configured radar.
	DefaultRadar string `json:"default_radar"`
}

// DefaultConfig returns an Adelaide FM transmitter and a single receiver
func DefaultConfig() Config {
	return Config{
		Transmitter:  Transmitter{Lat: -34.9192, Lon: 138.6027, AltM: 110},
		FrequencyMHz: 204.64,
		DopplerModel: DopplerTotalSpeed,
		Radars: []Radar{
			{ID: "radar1", Lat: -34.9286, Lon: 138.5999, AltM: 50, Port: 49158},
		},
	}
}

// Validate checks the transmitter, carrier and radar list
func (c Config) Validate() error {
	if !validLatLon(c.Transmitter.Lat, c.Transmitter.Lon) || !isFinite(c.Transmitter.AltM) {
		return fmt.Errorf("%w: transmitter position (%v, %v, %v)",
			ErrInvalidConfig, c.Transmitter.Lat, c.Transmitter.Lon, c.Transmitter.AltM)
	}
	if !isFinite(c.FrequencyMHz) || c.FrequencyMHz <= 0 {
		return fmt.Errorf("%w: fc_mhz %v must be positive", ErrInvalidConfig, c.FrequencyMHz)
	}
	switch c.DopplerModel {
	case "", DopplerTotalSpeed, DopplerBistaticProjected:
	default:
		return fmt.Errorf("%w: doppler_model %q", ErrInvalidConfig, c.DopplerModel)
	}

	if len(c.Radars) == 0 {
		return fmt.Errorf("%w: at least one radar is required", ErrInvalidConfig)
	}
	ids := make(map[string]bool, len(c.Radars))
	ports := make(map[int]string, len(c.Radars))
	for _, r := range c.Radars {
		if r.ID == "" {
			return fmt.Errorf("%w: radar without id", ErrInvalidConfig)
		}
		if ids[r.ID] {
			return fmt.Errorf("%w: duplicate radar id %q", ErrInvalidConfig, r.ID)
		}
		ids[r.ID] = true

		if !validLatLon(r.Lat, r.Lon) || !isFinite(r.AltM) {
			return fmt.Errorf("%w: radar %s position (%v, %v, %v)", ErrInvalidConfig, r.ID, r.Lat, r.Lon, r.AltM)
		}
		if !isFinite(r.FrequencyHz) || r.FrequencyHz < 0 {
			return fmt.Errorf("%w: radar %s frequency %v", ErrInvalidConfig, r.ID, r.FrequencyHz)
		}
		if r.Port < 0 || r.Port > 65535 {
			return fmt.Errorf("%w: radar %s port %d", ErrInvalidConfig, r.ID, r.Port)
		}
		if r.Port != 0 {
			if other, dup := ports[r.Port]; dup {
				return fmt.Errorf("%w: radars %s and %s share port %d", ErrInvalidConfig, other, r.ID, r.Port)
			}
			ports[r.Port] = r.ID
		}
	}

	if c.DefaultRadar != "" && !ids[c.DefaultRadar] {
		return fmt.Errorf("%w: default radar %q: %w", ErrInvalidConfig, c.DefaultRadar, ErrUnknownRadar)
	}
	return nil
}

// FrequencyHz returns the configured carrier in Hz
func (c Config) FrequencyHz() float64 {
	return c.FrequencyMHz * 1e6
}

func validLatLon(lat, lon float64) bool {
	return isFinite(lat) && isFinite(lon) && math.Abs(lat) <= 90 && math.Abs(lon) <= 180
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
