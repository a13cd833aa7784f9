package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"adsbsynth/internal/adsb"
	"adsbsynth/internal/beast"
)

const readBufferSize = 4096

// Listen connects to a Beast TCP feed and writes one line per decoded
// extended squitter to out until ctx is cancelled or the feed closes
func Listen(ctx context.Context, addr string, out io.Writer, logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	logger.WithField("addr", addr).Info("Connected to Beast feed")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	decoder := beast.NewDecoder(logger)
	positions := adsb.NewCPRDecoder(logger)
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		for _, msg := range decoder.Decode(buf[:n]) {
			if line, ok := describe(msg, positions); ok {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read from %s: %w", addr, err)
		}
	}
}

// describe formats a Beast message as a single line
func describe(msg *beast.Message, positions *adsb.CPRDecoder) (string, bool) {
	if msg.MessageType != beast.ModeSLong || !msg.IsValid() {
		return "", false
	}

	var frame adsb.Frame
	copy(frame[:], msg.Data)

	m, err := adsb.Decode(frame)
	if err != nil {
		return fmt.Sprintf("%s %s", frame.Hex(), err), true
	}

	hex := fmt.Sprintf("%06X", m.ICAO)
	switch m.TypeCode {
	case adsb.TCIdentification:
		return fmt.Sprintf("%s ident %s", hex, m.Callsign), true
	case adsb.TCAirbornePosition:
		cpr := m.CPR
		cpr.Timestamp = time.Now()
		lat, lon, ok := positions.Add(m.ICAO, cpr)
		if !ok {
			return fmt.Sprintf("%s alt %d ft", hex, m.AltitudeFt), true
		}
		return fmt.Sprintf("%s alt %d ft pos %.5f,%.5f", hex, m.AltitudeFt, lat, lon), true
	case adsb.TCAirborneVelocity:
		return fmt.Sprintf("%s gs %.0f kt trk %.1f", hex, m.GroundSpeed, m.Track), true
	default:
		return fmt.Sprintf("%s tc %d", hex, m.TypeCode), true
	}
}
