package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/beast"
	"adsbsynth/internal/detection"
	"adsbsynth/internal/feed"
	"adsbsynth/internal/logging"
	"adsbsynth/internal/server"
)

// Default configuration constants
const (
	DefaultLogDir         = "./logs"
	DefaultFeedIntervalMS = 1000
	DefaultMaxLogAgeDays  = 14
)

// Config holds application configuration
type Config struct {
	Aircraft  aircraft.Config  `json:"aircraft"`
	Detection detection.Config `json:"detection"`
	HTTP      server.Config    `json:"http"`
	Beast     BeastConfig      `json:"beast"`
	SBS       SBSConfig        `json:"sbs"`
	Feed      FeedConfig       `json:"feed"`
	Verbose   bool             `json:"verbose"`
}

// BeastConfig controls the Beast TCP output
type BeastConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SBSConfig controls the rotating BaseStation output files
type SBSConfig struct {
	Enabled    bool   `json:"enabled"`
	LogDir     string `json:"log_dir"`
	Prefix     string `json:"prefix"`
	UTC        bool   `json:"utc"`
	MaxAgeDays int    `json:"max_age_days"`
}

// FeedConfig controls the transponder output cadence
type FeedConfig struct {
	IntervalMS int  `json:"interval_ms"`
	Verify     bool `json:"verify"`
}

// Interval returns the tick interval as a duration
func (c FeedConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// DefaultConfig returns the Mount Lofty scenario with every output enabled
func DefaultConfig() Config {
	return Config{
		Aircraft:  aircraft.DefaultConfig(),
		Detection: detection.DefaultConfig(),
		HTTP:      server.DefaultConfig(),
		Beast: BeastConfig{
			Enabled: true,
			Addr:    beast.DefaultAddr,
		},
		SBS: SBSConfig{
			Enabled:    true,
			LogDir:     DefaultLogDir,
			Prefix:     logging.DefaultPrefix,
			UTC:        true,
			MaxAgeDays: DefaultMaxLogAgeDays,
		},
		Feed: FeedConfig{
			IntervalMS: DefaultFeedIntervalMS,
		},
	}
}

// Load reads configuration from a JSON file over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		// json reuses existing slice elements, so lists from the file must
		// replace the defaults rather than merge into them
		radars, origins := cfg.Detection.Radars, cfg.HTTP.AllowedOrigins
		cfg.Detection.Radars, cfg.HTTP.AllowedOrigins = nil, nil
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		if cfg.Detection.Radars == nil {
			cfg.Detection.Radars = radars
		}
		if cfg.HTTP.AllowedOrigins == nil {
			cfg.HTTP.AllowedOrigins = origins
		}
	}

	if err := cfg.ApplyEnvironment(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnvironment overrides settings from environment variables. Numeric
// values that fail to parse are reported together.
func (c *Config) ApplyEnvironment(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.float("TX_LAT", &c.Detection.Transmitter.Lat)
	e.float("TX_LON", &c.Detection.Transmitter.Lon)
	e.float("TX_ALT", &c.Detection.Transmitter.AltM)
	e.float("FC_MHZ", &c.Detection.FrequencyMHz)
	e.string("DOPPLER_MODEL", (*string)(&c.Detection.DopplerModel))
	e.string("DEFAULT_RADAR", &c.Detection.DefaultRadar)
	if raw, ok := e.get("RADARS"); ok {
		var radars []detection.Radar
		if err := json.Unmarshal([]byte(raw), &radars); err != nil {
			e.errs = append(e.errs, fmt.Errorf("failed to parse RADARS: %w", err))
		} else {
			c.Detection.Radars = radars
		}
	}

	e.float("ORIGIN_LAT", &c.Aircraft.OriginLat)
	e.float("ORIGIN_LON", &c.Aircraft.OriginLon)
	e.float("RADIUS_DEG", &c.Aircraft.RadiusDeg)
	e.float("ANGULAR_SPEED", &c.Aircraft.AngularSpeed)
	e.int("ALT_BARO_FT", &c.Aircraft.BaseAltitudeFt)
	e.string("ICAO_HEX", &c.Aircraft.ICAOHex)
	e.int("NORMAL_AIRCRAFT", &c.Aircraft.NormalCount)
	e.int("ANOMALOUS_AIRCRAFT", &c.Aircraft.AnomalousCount)
	if raw, ok := e.get("RANDOM_SEED"); ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid RANDOM_SEED %q: %w", raw, err))
		} else {
			c.Aircraft.Seed = v
		}
	}

	e.string("HOST", &c.HTTP.Host)
	e.int("PORT", &c.HTTP.Port)
	e.string("TRUTH_URL", &c.HTTP.TruthURL)
	e.string("BEAST_ADDR", &c.Beast.Addr)
	e.string("LOG_DIR", &c.SBS.LogDir)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) string(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) float(name string, dst *float64) {
	raw, ok := e.get(name)
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", name, raw, err))
		return
	}
	*dst = v
}

func (e *envReader) int(name string, dst *int) {
	raw, ok := e.get(name)
	if !ok {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", name, raw, err))
		return
	}
	*dst = v
}

// Validate checks every section before any component is built
func (c Config) Validate() error {
	var errs []error
	if err := c.Aircraft.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Detection.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Beast.Enabled && c.Beast.Addr == "" {
		errs = append(errs, errors.New("beast output enabled without an address"))
	}
	if c.SBS.Enabled && c.SBS.LogDir == "" {
		errs = append(errs, errors.New("sbs output enabled without a log directory"))
	}
	if c.Feed.IntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("feed interval must be positive, got %d ms", c.Feed.IntervalMS))
	}
	for _, radar := range c.Detection.Radars {
		if radar.Port != 0 && radar.Port == c.HTTP.Port {
			errs = append(errs, fmt.Errorf("radar %q port %d clashes with the HTTP port", radar.ID, radar.Port))
		}
	}
	return errors.Join(errs...)
}

// feedConfig converts to the feeder's settings
func (c Config) feedConfig() feed.Config {
	return feed.Config{Interval: c.Feed.Interval(), Verify: c.Feed.Verify}
}
