package feed

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsbsynth/internal/adsb"
	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/beast"
)

type staticSource struct {
	mu      sync.Mutex
	reports []aircraft.Report
	times   []float64
}

func (s *staticSource) ReportedFeed(t float64) []aircraft.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times = append(s.times, t)
	return s.reports
}

type recordingWriter struct {
	mu      sync.Mutex
	reports []aircraft.Report
	err     error
}

func (w *recordingWriter) WriteReport(r aircraft.Report, _ time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.reports = append(w.reports, r)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSink) Broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, data)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func report() aircraft.Report {
	return aircraft.Report{
		ICAO:        "7C1ABC",
		Lat:         -34.95,
		Lon:         138.55,
		AltBaroFt:   5000,
		AltGeomFt:   5100,
		GroundSpeed: 150,
		Track:       45,
		Flight:      "SYN001",
	}
}

func TestFeeder_Tick(t *testing.T) {
	epoch := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	now := epoch.Add(2500 * time.Millisecond)

	src := &staticSource{reports: []aircraft.Report{report()}}
	sbs := &recordingWriter{}
	sink := &recordingSink{}

	f := NewFeeder(Config{}, src, epoch, quietLogger(),
		WithClock(func() time.Time { return now }),
		WithReportWriter(sbs),
		WithFrameSink(sink))
	f.Tick()

	require.Equal(t, []float64{2.5}, src.times)
	require.Len(t, sbs.reports, 1)
	assert.Equal(t, "7C1ABC", sbs.reports[0].ICAO)

	// identification, position, velocity
	require.Len(t, sink.frames, 3)
	dec := beast.NewDecoder(quietLogger())
	var typeCodes []uint8
	for _, raw := range sink.frames {
		msgs := dec.Decode(raw)
		require.Len(t, msgs, 1)
		assert.Equal(t, beast.Ticks(2500*time.Millisecond), msgs[0].Timestamp)
		assert.Equal(t, signalLevel("7C1ABC"), msgs[0].Signal)

		var frame adsb.Frame
		copy(frame[:], msgs[0].Data)
		assert.True(t, adsb.CheckParity(frame))
		typeCodes = append(typeCodes, frame.TypeCode())
	}
	assert.Equal(t, []uint8{adsb.TCIdentification, adsb.TCAirbornePosition, adsb.TCAirborneVelocity}, typeCodes)

	stats := f.Stats()
	assert.Equal(t, uint64(1), stats.Ticks)
	assert.Equal(t, uint64(1), stats.Reports)
	assert.Equal(t, uint64(3), stats.Frames)
}

func TestFeeder_AlternatesCPRParity(t *testing.T) {
	src := &staticSource{reports: []aircraft.Report{report()}}
	sink := &recordingSink{}
	f := NewFeeder(Config{}, src, time.Now(), quietLogger(), WithFrameSink(sink))

	f.Tick()
	f.Tick()
	require.Len(t, sink.frames, 6)

	var flags []uint8
	dec := beast.NewDecoder(quietLogger())
	for _, i := range []int{1, 4} {
		msgs := dec.Decode(sink.frames[i])
		require.Len(t, msgs, 1)
		var frame adsb.Frame
		copy(frame[:], msgs[0].Data)
		msg, err := adsb.Decode(frame)
		require.NoError(t, err)
		flags = append(flags, msg.CPR.FFlag)
	}
	assert.Equal(t, []uint8{0, 1}, flags)
}

func TestFeeder_Verify(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src := &staticSource{reports: []aircraft.Report{report()}}

	f := NewFeeder(Config{Verify: true}, src, time.Now(), logger)
	for i := 0; i < 4; i++ {
		f.Tick()
	}

	assert.Zero(t, f.Stats().VerifyFailures)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level, e.Message)
	}
}

func TestFeeder_Errors(t *testing.T) {
	bad := report()
	bad.ICAO = "XYZ"
	src := &staticSource{reports: []aircraft.Report{bad, report()}}
	sbs := &recordingWriter{err: errors.New("disk full")}
	sink := &recordingSink{}

	f := NewFeeder(Config{}, src, time.Now(), quietLogger(), WithReportWriter(sbs), WithFrameSink(sink))
	f.Tick()

	stats := f.Stats()
	assert.Equal(t, uint64(2), stats.WriteErrors)
	assert.Equal(t, uint64(1), stats.EncodeErrors)
	assert.Len(t, sink.frames, 3, "the valid report is still emitted")
}

func TestFeeder_Validate(t *testing.T) {
	src := &staticSource{}
	assert.ErrorIs(t, NewFeeder(Config{}, src, time.Now(), nil).Validate(), ErrNoOutputs)
	assert.NoError(t, NewFeeder(Config{}, src, time.Now(), nil, WithFrameSink(&recordingSink{})).Validate())
}

func TestFeeder_Run(t *testing.T) {
	src := &staticSource{reports: []aircraft.Report{report()}}
	sink := &recordingSink{}
	f := NewFeeder(Config{Interval: 10 * time.Millisecond}, src, time.Now(), quietLogger(), WithFrameSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return f.Stats().Ticks >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feeder did not stop")
	}
}
