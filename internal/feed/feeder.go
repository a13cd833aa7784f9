// Package feed drives the transponder outputs: on every tick it samples the
// reported feed and emits BaseStation lines and Beast frames.
package feed

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"adsbsynth/internal/adsb"
	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/beast"
	"adsbsynth/internal/detection"
)

// DefaultInterval matches the once-per-second cadence of a tar1090 poll
const DefaultInterval = time.Second

// verifyToleranceDeg bounds the CPR round trip error accepted by the
// self-check; the airborne format resolves about 5 m
const verifyToleranceDeg = 1e-3

// Source supplies the reported feed; aircraft.Manager satisfies it
type Source interface {
	ReportedFeed(t float64) []aircraft.Report
}

// ReportWriter receives every report; basestation.Writer satisfies it
type ReportWriter interface {
	WriteReport(r aircraft.Report, generated time.Time) error
}

// FrameSink receives framed Beast messages; beast.Broadcaster satisfies it
type FrameSink interface {
	Broadcast(data []byte)
}

// Config holds feeder settings
type Config struct {
	Interval time.Duration
	// Verify decodes every emitted position pair and warns when the
	// decoded position strays from the report
	Verify bool
}

// Stats contains feeder statistics
type Stats struct {
	Ticks          uint64
	Reports        uint64
	Frames         uint64
	WriteErrors    uint64
	EncodeErrors   uint64
	VerifyFailures uint64
}

// Feeder paces the reported feed onto its outputs
type Feeder struct {
	source Source
	sbs    ReportWriter
	frames FrameSink
	logger *logrus.Logger

	interval time.Duration
	limiter  *rate.Limiter
	epoch    time.Time
	now      func() time.Time
	odd      bool

	verifier *adsb.CPRDecoder

	ticks          atomic.Uint64
	reports        atomic.Uint64
	sent           atomic.Uint64
	writeErrors    atomic.Uint64
	encodeErrors   atomic.Uint64
	verifyFailures atomic.Uint64
}

// Option configures a Feeder
type Option func(*Feeder)

// WithClock sets the clock the feeder samples
func WithClock(now func() time.Time) Option {
	return func(f *Feeder) { f.now = now }
}

// WithReportWriter sets the BaseStation output
func WithReportWriter(w ReportWriter) Option {
	return func(f *Feeder) { f.sbs = w }
}

// WithFrameSink sets the Beast output
func WithFrameSink(s FrameSink) Option {
	return func(f *Feeder) { f.frames = s }
}

// NewFeeder creates a feeder whose scenario time is measured from epoch
func NewFeeder(cfg Config, source Source, epoch time.Time, logger *logrus.Logger, opts ...Option) *Feeder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	f := &Feeder{
		source:   source,
		logger:   logger,
		interval: cfg.Interval,
		limiter:  rate.NewLimiter(rate.Every(cfg.Interval), 1),
		epoch:    epoch,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if cfg.Verify {
		f.verifier = adsb.NewCPRDecoder(logger)
	}
	return f
}

// Run emits one tick per interval until ctx is cancelled
func (f *Feeder) Run(ctx context.Context) error {
	f.logger.WithField("interval", f.interval).Info("Starting feeder")

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				f.logger.Info("Feeder stopped")
				return nil
			}
			return err
		}
		f.Tick()
	}
}

// Tick samples the feed at the current time and emits it
func (f *Feeder) Tick() {
	now := f.now()
	elapsed := now.Sub(f.epoch)
	t := elapsed.Seconds()

	reports := f.source.ReportedFeed(t)
	ticks := beast.Ticks(elapsed)

	for _, r := range reports {
		if f.sbs != nil {
			if err := f.sbs.WriteReport(r, now); err != nil {
				f.writeErrors.Add(1)
				f.logger.WithError(err).WithField("icao", r.ICAO).Debug("Failed to write SBS message")
			}
		}
		f.emitFrames(r, now, ticks)
	}

	f.odd = !f.odd
	f.ticks.Add(1)
	f.reports.Add(uint64(len(reports)))
}

func (f *Feeder) emitFrames(r aircraft.Report, now time.Time, ticks uint64) {
	if f.frames == nil && f.verifier == nil {
		return
	}

	frames, err := adsb.EncodeReport(r, f.odd)
	if err != nil {
		f.encodeErrors.Add(1)
		f.logger.WithError(err).WithField("icao", r.ICAO).Warn("Failed to encode report")
		return
	}

	signal := signalLevel(r.ICAO)
	for _, frame := range frames {
		if f.frames != nil {
			f.frames.Broadcast(beast.EncodeFrame(frame, ticks, signal))
			f.sent.Add(1)
		}
		if f.verifier != nil && frame.TypeCode() == adsb.TCAirbornePosition {
			f.verify(r, frame, now)
		}
	}
}

func (f *Feeder) verify(r aircraft.Report, frame adsb.Frame, now time.Time) {
	msg, err := adsb.Decode(frame)
	if err != nil {
		f.verifyFailures.Add(1)
		f.logger.WithError(err).WithField("icao", r.ICAO).Warn("Emitted position frame does not decode")
		return
	}

	cpr := msg.CPR
	cpr.Timestamp = now
	lat, lon, ok := f.verifier.Add(frame.ICAO(), cpr)
	if !ok {
		return
	}
	if math.Abs(lat-r.Lat) > verifyToleranceDeg || math.Abs(lon-r.Lon) > verifyToleranceDeg {
		f.verifyFailures.Add(1)
		f.logger.WithFields(logrus.Fields{
			"icao":        r.ICAO,
			"lat":         r.Lat,
			"lon":         r.Lon,
			"decoded_lat": lat,
			"decoded_lon": lon,
		}).Warn("Decoded CPR position differs from report")
	}
}

// signalLevel maps the per-aircraft SNR onto the Beast signal byte
func signalLevel(icao string) byte {
	return byte(detection.SNR(icao) * 10)
}

// Stats returns current feeder statistics
func (f *Feeder) Stats() Stats {
	return Stats{
		Ticks:          f.ticks.Load(),
		Reports:        f.reports.Load(),
		Frames:         f.sent.Load(),
		WriteErrors:    f.writeErrors.Load(),
		EncodeErrors:   f.encodeErrors.Load(),
		VerifyFailures: f.verifyFailures.Load(),
	}
}

// ErrNoOutputs is returned by Validate when nothing would receive the feed
var ErrNoOutputs = errors.New("feeder has no outputs")

// Validate reports whether the feeder has anywhere to send its output
func (f *Feeder) Validate() error {
	if f.sbs == nil && f.frames == nil {
		return ErrNoOutputs
	}
	return nil
}
