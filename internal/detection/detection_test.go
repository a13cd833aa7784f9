package detection

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/motion"
)

var (
	adelaideTx = Transmitter{Lat: -34.9192, Lon: 138.6027, AltM: 110}
	fixedTime  = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func testConfig() Config {
	return Config{
		Transmitter:  adelaideTx,
		FrequencyMHz: 204.64,
		Radars: []Radar{
			{ID: "radar1", Lat: -34.9286, Lon: 138.5999, AltM: 50, Port: 49158},
			{ID: "radar2", Lat: -34.7000, Lon: 138.6500, AltM: 20, Port: 49159, FrequencyHz: 98.1e6},
			{ID: "radar3", Lat: -35.1000, Lon: 138.5000, AltM: 0},
		},
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("det-%d", n)
	}
}

func newTestSynthesizer(t *testing.T, cfg Config) (*Synthesizer, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	s := NewSynthesizer(cfg, logger,
		WithClock(func() time.Time { return fixedTime }),
		WithIDFunc(sequentialIDs()))
	return s, hook
}

func TestSurfaceDistance(t *testing.T) {
	oneDegree := EarthRadiusM * math.Pi / 180

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"same point", -34.98, 138.70, -34.98, 138.70, 0},
		{"one degree of latitude", 0, 0, 1, 0, oneDegree},
		{"one degree of longitude at the equator", 0, 10, 0, 11, oneDegree},
		{"antipodes", 0, 0, 0, 180, math.Pi * EarthRadiusM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SurfaceDistance(tt.lat1, tt.lon1, tt.lat2, tt.lon2), 1e-6)
		})
	}
}

func TestDistance_CombinesAltitude(t *testing.T) {
	a := Position{Lat: -34.98, Lon: 138.70, AltM: 100}
	b := Position{Lat: -34.98, Lon: 138.70, AltM: 1100}
	assert.InDelta(t, 1000.0, Distance(a, b), 1e-9)

	c := Position{Lat: 0, Lon: 0, AltM: 0}
	d := Position{Lat: 0, Lon: 0.01, AltM: 300}
	surface := SurfaceDistance(0, 0, 0, 0.01)
	assert.InDelta(t, math.Sqrt(surface*surface+300*300), Distance(c, d), 1e-9)
	assert.Equal(t, Distance(c, d), Distance(d, c))
}

// TestSynthesize_RangeDecomposition checks range equals the sum of the two legs
func TestSynthesize_RangeDecomposition(t *testing.T) {
	cfg := testConfig()
	reg, err := NewRegistry(cfg)
	require.NoError(t, err)
	s, _ := newTestSynthesizer(t, cfg)

	state := aircraft.State{ICAO: "7C6DB8", Lat: -34.9310, Lon: 138.7081, AltGeomFt: 5100, GroundSpeed: 120, Track: 90}
	target := Position{Lat: state.Lat, Lon: state.Lon, AltM: 5100 * FeetToMeters}
	tx := Position{Lat: adelaideTx.Lat, Lon: adelaideTx.Lon, AltM: adelaideTx.AltM}

	for _, radar := range reg.Radars() {
		dets := s.Synthesize([]aircraft.State{state}, radar)
		require.Len(t, dets, 1)

		rx := Position{Lat: radar.Lat, Lon: radar.Lon, AltM: radar.AltM}
		want := Distance(tx, target) + Distance(target, rx)
		assert.InDelta(t, want, dets[0].BistaticRangeM, 1e-6, radar.ID)
		assert.InDelta(t, want/1000, dets[0].DelayKm(), 1e-9)
	}
}

// TestSynthesize_ColocatedRadar checks the monostatic degenerate case
func TestSynthesize_ColocatedRadar(t *testing.T) {
	cfg := testConfig()
	s, _ := newTestSynthesizer(t, cfg)

	radar := Radar{ID: "mono", Lat: adelaideTx.Lat, Lon: adelaideTx.Lon, AltM: adelaideTx.AltM, FrequencyHz: 100e6}
	state := aircraft.State{ICAO: "ABCDEF", Lat: -34.5, Lon: 138.9, AltGeomFt: 20000, GroundSpeed: 300}

	dets := s.Synthesize([]aircraft.State{state}, radar)
	require.Len(t, dets, 1)

	tx := Position{Lat: adelaideTx.Lat, Lon: adelaideTx.Lon, AltM: adelaideTx.AltM}
	target := Position{Lat: state.Lat, Lon: state.Lon, AltM: 20000 * FeetToMeters}
	assert.InDelta(t, 2*Distance(tx, target), dets[0].BistaticRangeM, 1e-6)
}

func TestSynthesize_TotalSpeedDoppler(t *testing.T) {
	s, _ := newTestSynthesizer(t, testConfig())
	radar := Radar{ID: "r", Lat: -34.9, Lon: 138.6, FrequencyHz: 100e6}

	tests := []struct {
		name  string
		speed float64
		track float64
	}{
		{"stationary", 0, 0},
		{"airliner northbound", 450, 0},
		{"airliner southbound", 450, 180},
		{"mach 3", 3 * motion.SpeedOfSoundMS * motion.MSToKnots, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := aircraft.State{ICAO: "7C0001", Lat: -34.5, Lon: 138.6, AltGeomFt: 10000, GroundSpeed: tt.speed, Track: tt.track}
			dets := s.Synthesize([]aircraft.State{state}, radar)
			require.Len(t, dets, 1)

			want := 2 * 100e6 * tt.speed * motion.KnotsToMS / SpeedOfLight
			assert.InDelta(t, want, dets[0].DopplerHz, 1e-9)
			assert.GreaterOrEqual(t, dets[0].DopplerHz, 0.0, "total speed model is never negative")
		})
	}
}

func TestSynthesize_ProjectedDoppler(t *testing.T) {
	cfg := testConfig()
	cfg.Transmitter = Transmitter{Lat: 0, Lon: 0}
	cfg.DopplerModel = DopplerBistaticProjected
	s, _ := newTestSynthesizer(t, cfg)
	assert.Equal(t, DopplerBistaticProjected, s.Model())

	// receiver beside the transmitter, target one degree north
	radar := Radar{ID: "r", Lat: 0, Lon: 0, FrequencyHz: 100e6}
	const speedKnots = 400.0
	speedMS := speedKnots * motion.KnotsToMS
	mono := 2 * 100e6 * speedMS / SpeedOfLight

	tests := []struct {
		name  string
		track float64
		want  float64
		delta float64
	}{
		{"receding", 0, -mono, mono * 1e-3},
		{"approaching", 180, mono, mono * 1e-3},
		{"crossing", 90, 0, 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := aircraft.State{ICAO: "7C0002", Lat: 1, Lon: 0, GroundSpeed: speedKnots, Track: tt.track}
			dets := s.Synthesize([]aircraft.State{state}, radar)
			require.Len(t, dets, 1)
			assert.InDelta(t, tt.want, dets[0].DopplerHz, tt.delta)
		})
	}

	t.Run("target over a site", func(t *testing.T) {
		state := aircraft.State{ICAO: "7C0003", Lat: 0, Lon: 0, GroundSpeed: speedKnots, Track: 45}
		dets := s.Synthesize([]aircraft.State{state}, radar)
		require.Len(t, dets, 1)
		assert.False(t, math.IsNaN(dets[0].DopplerHz))
		assert.Equal(t, 0.0, dets[0].DopplerHz)
	})
}

func TestSynthesize_Batch(t *testing.T) {
	cfg := testConfig()
	reg, err := NewRegistry(cfg)
	require.NoError(t, err)
	s, _ := newTestSynthesizer(t, cfg)

	states := []aircraft.State{
		{ICAO: "7C6DB8", Lat: -34.9310, Lon: 138.7081, AltGeomFt: 5100, GroundSpeed: 100},
		{ICAO: "7C6DB9", Lat: -34.8000, Lon: 138.9000, AltGeomFt: 40100, GroundSpeed: 2000},
	}
	radar, err := reg.Lookup("radar2")
	require.NoError(t, err)

	first := s.Synthesize(states, radar)
	second := s.Synthesize(states, radar)
	require.Len(t, first, 2)
	require.Len(t, second, 2)

	for i, d := range first {
		assert.Equal(t, fmt.Sprintf("det-%d", i+1), d.ID)
		assert.Equal(t, fixedTime, d.Timestamp)
		assert.Equal(t, "radar2", d.RadarID)
		assert.Equal(t, 98.1e6, d.FrequencyHz)
		assert.Equal(t, states[i].ICAO, d.ICAO)
		assert.Equal(t, SNR(states[i].ICAO), d.SNRDB)
	}

	// every query is an independent batch with fresh ids
	assert.Equal(t, "det-3", second[0].ID)
	assert.Equal(t, first[0].BistaticRangeM, second[0].BistaticRangeM)

	assert.Empty(t, s.Synthesize(nil, radar))
}

func TestSynthesize_DefaultIDsAreUnique(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSynthesizer(testConfig(), logger)
	radar := Radar{ID: "r", Lat: -34.9, Lon: 138.6, FrequencyHz: 100e6}

	states := make([]aircraft.State, 50)
	for i := range states {
		states[i] = aircraft.State{ICAO: fmt.Sprintf("%06X", i), Lat: -34.5, Lon: 138.6}
	}

	seen := map[string]bool{}
	for _, d := range s.Synthesize(states, radar) {
		assert.Len(t, d.ID, 36)
		assert.False(t, seen[d.ID])
		seen[d.ID] = true
	}
}

func TestSynthesize_RangeWarnings(t *testing.T) {
	s, hook := newTestSynthesizer(t, testConfig())
	tx := adelaideTx

	tests := []struct {
		name    string
		state   aircraft.State
		warning string
	}{
		{"overhead the sites", aircraft.State{ICAO: "000001", Lat: tx.Lat, Lon: tx.Lon, AltGeomFt: 1000}, "Unrealistically small bistatic range"},
		{"far away", aircraft.State{ICAO: "000002", Lat: -30, Lon: 138.6, AltGeomFt: 30000}, "Unrealistically large bistatic range"},
		{"plausible", aircraft.State{ICAO: "000003", Lat: -34.5, Lon: 138.6, AltGeomFt: 30000}, ""},
	}

	radar := Radar{ID: "mono", Lat: tx.Lat, Lon: tx.Lon, AltM: tx.AltM, FrequencyHz: 100e6}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			dets := s.Synthesize([]aircraft.State{tt.state}, radar)
			require.Len(t, dets, 1, "out of band detections are still produced")

			if tt.warning == "" {
				assert.Nil(t, hook.LastEntry())
				return
			}
			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			assert.Equal(t, tt.warning, entry.Message)
			assert.Equal(t, tt.state.ICAO, entry.Data["icao"])
		})
	}
}

func TestSNR(t *testing.T) {
	for _, hex := range []string{"7C6DB8", "7C6DB9", "ABCDEF", "000000", ""} {
		v := SNR(hex)
		assert.GreaterOrEqual(t, v, 15.0, hex)
		assert.Less(t, v, 25.0, hex)
		assert.Equal(t, v, math.Trunc(v), "integral dB steps")
		assert.Equal(t, v, SNR(hex), "deterministic per address")
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(testConfig())
	require.NoError(t, err)

	r1, err := reg.Lookup("radar1")
	require.NoError(t, err)
	assert.Equal(t, 204.64e6, r1.FrequencyHz, "inherits the configured carrier")

	r2, err := reg.Lookup("radar2")
	require.NoError(t, err)
	assert.Equal(t, 98.1e6, r2.FrequencyHz, "keeps its own carrier")

	_, err = reg.Lookup("radar9")
	assert.ErrorIs(t, err, ErrUnknownRadar)

	got, fallback := reg.Resolve("radar3")
	assert.False(t, fallback)
	assert.Equal(t, "radar3", got.ID)

	got, fallback = reg.Resolve("radar9")
	assert.True(t, fallback)
	assert.Equal(t, "radar1", got.ID)
	assert.Equal(t, "radar1", reg.Default().ID)

	ported := reg.WithPorts()
	require.Len(t, ported, 2)
	assert.Equal(t, []int{49158, 49159}, []int{ported[0].Port, ported[1].Port})
	assert.Len(t, reg.Radars(), 3)
}

func TestRegistry_ExplicitDefault(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultRadar = "radar3"
	reg, err := NewRegistry(cfg)
	require.NoError(t, err)

	got, fallback := reg.Resolve("nope")
	assert.True(t, fallback)
	assert.Equal(t, "radar3", got.ID)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero carrier", mutate: func(c *Config) { c.FrequencyMHz = 0 }, wantErr: ErrInvalidConfig},
		{name: "bad transmitter", mutate: func(c *Config) { c.Transmitter.Lat = -100 }, wantErr: ErrInvalidConfig},
		{name: "no radars", mutate: func(c *Config) { c.Radars = nil }, wantErr: ErrInvalidConfig},
		{name: "duplicate id", mutate: func(c *Config) { c.Radars[1].ID = "radar1" }, wantErr: ErrInvalidConfig},
		{name: "missing id", mutate: func(c *Config) { c.Radars[0].ID = "" }, wantErr: ErrInvalidConfig},
		{name: "shared port", mutate: func(c *Config) { c.Radars[1].Port = 49158 }, wantErr: ErrInvalidConfig},
		{name: "port out of range", mutate: func(c *Config) { c.Radars[0].Port = 70000 }, wantErr: ErrInvalidConfig},
		{name: "unknown doppler model", mutate: func(c *Config) { c.DopplerModel = "exact" }, wantErr: ErrInvalidConfig},
		{name: "unknown default radar", mutate: func(c *Config) { c.DefaultRadar = "radar9" }, wantErr: ErrUnknownRadar},
		{name: "projected model", mutate: func(c *Config) { c.DopplerModel = DopplerBistaticProjected }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			_, regErr := NewRegistry(cfg)
			assert.ErrorIs(t, regErr, tt.wantErr)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}
