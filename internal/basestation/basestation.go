// Package basestation writes the SBS-1 BaseStation CSV format served by
// dump1090 on port 30003.
package basestation

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"adsbsynth/internal/aircraft"
)

// MessageMSG is the BaseStation transmission message type
const MessageMSG = "MSG"

// BaseStation transmission types emitted for extended squitters
const (
	TransmissionES_ID_CAT   = 1 // Extended Squitter Aircraft ID and Category
	TransmissionES_AIRBORNE = 3 // Extended Squitter Airborne Position
	TransmissionES_VELOCITY = 4 // Extended Squitter Airborne Velocity
)

const (
	dateLayout = "2006/01/02"
	timeLayout = "15:04:05.000"
)

// Message represents a BaseStation format message
type Message struct {
	MessageType      string
	TransmissionType int
	SessionID        int
	AircraftID       int
	HexIdent         string
	FlightID         int
	Generated        time.Time
	Logged           time.Time
	Callsign         string
	Altitude         string
	GroundSpeed      string
	Track            string
	Latitude         string
	Longitude        string
	VerticalRate     string
	Squawk           string
	Alert            string
	Emergency        string
	SPI              string
	IsOnGround       string
}

// WriterProvider hands out the writer that currently receives output.
// The log rotator satisfies it.
type WriterProvider interface {
	GetWriter() (io.Writer, error)
}

// Writer writes transponder reports in BaseStation format
type Writer struct {
	out       WriterProvider
	logger    *logrus.Logger
	now       func() time.Time
	sessionID int

	mu     sync.Mutex
	ids    map[string]int
	nextID int
}

// Option configures a Writer
type Option func(*Writer)

// WithClock sets the clock used for the logged timestamp
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a new BaseStation writer
func NewWriter(out WriterProvider, logger *logrus.Logger, opts ...Option) *Writer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	w := &Writer{
		out:       out,
		logger:    logger,
		now:       time.Now,
		sessionID: 1,
		ids:       make(map[string]int),
		nextID:    1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteReport writes the identification, airborne position and velocity
// lines for one report generated at the given time
func (w *Writer) WriteReport(r aircraft.Report, generated time.Time) error {
	msgs := w.Messages(r, generated)

	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(FormatCSV(m))
		b.WriteString("\n")
	}

	writer, err := w.out.GetWriter()
	if err != nil {
		return fmt.Errorf("failed to get log writer: %w", err)
	}
	if _, err := io.WriteString(writer, b.String()); err != nil {
		return fmt.Errorf("failed to write to log: %w", err)
	}
	return nil
}

// Messages converts a report into MSG,1, MSG,3 and MSG,4 transmissions
func (w *Writer) Messages(r aircraft.Report, generated time.Time) []*Message {
	id := w.aircraftID(r.ICAO)
	logged := w.now()

	base := func(tt int) *Message {
		return &Message{
			MessageType:      MessageMSG,
			TransmissionType: tt,
			SessionID:        w.sessionID,
			AircraftID:       id,
			HexIdent:         r.ICAO,
			FlightID:         id,
			Generated:        generated,
			Logged:           logged,
		}
	}

	ident := base(TransmissionES_ID_CAT)
	ident.Callsign = strings.TrimSpace(r.Flight)

	pos := base(TransmissionES_AIRBORNE)
	pos.Altitude = strconv.Itoa(r.AltBaroFt)
	pos.Latitude = fmt.Sprintf("%.6f", r.Lat)
	pos.Longitude = fmt.Sprintf("%.6f", r.Lon)
	pos.Alert, pos.Emergency, pos.SPI, pos.IsOnGround = "0", "0", "0", "0"

	vel := base(TransmissionES_VELOCITY)
	vel.GroundSpeed = strconv.Itoa(int(math.Round(r.GroundSpeed)))
	vel.Track = fmt.Sprintf("%.1f", r.Track)
	vel.VerticalRate = "0"

	return []*Message{ident, pos, vel}
}

// aircraftID assigns a stable id per hex in order of first appearance
func (w *Writer) aircraftID(icao string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	id, ok := w.ids[icao]
	if !ok {
		id = w.nextID
		w.nextID++
		w.ids[icao] = id
		w.logger.WithFields(logrus.Fields{
			"icao":        icao,
			"aircraft_id": id,
		}).Debug("New aircraft in BaseStation output")
	}
	return id
}

// FormatCSV formats a BaseStation message as one CSV line without the
// line terminator
func FormatCSV(msg *Message) string {
	fields := []string{
		msg.MessageType,
		strconv.Itoa(msg.TransmissionType),
		strconv.Itoa(msg.SessionID),
		strconv.Itoa(msg.AircraftID),
		msg.HexIdent,
		strconv.Itoa(msg.FlightID),
		msg.Generated.Format(dateLayout),
		msg.Generated.Format(timeLayout),
		msg.Logged.Format(dateLayout),
		msg.Logged.Format(timeLayout),
		msg.Callsign,
		msg.Altitude,
		msg.GroundSpeed,
		msg.Track,
		msg.Latitude,
		msg.Longitude,
		msg.VerticalRate,
		msg.Squawk,
		msg.Alert,
		msg.Emergency,
		msg.SPI,
		msg.IsOnGround,
	}

	return strings.Join(fields, ",")
}
