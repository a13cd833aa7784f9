package adsb

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrBadParity is returned when a frame fails the CRC-24 check
	ErrBadParity = errors.New("bad parity")

	// ErrUnsupported is returned for frames this package does not decode
	ErrUnsupported = errors.New("unsupported message")
)

// Frame is a 112-bit Mode S extended squitter
type Frame [FrameLen]byte

// ICAO extracts the 24-bit address
func (f Frame) ICAO() uint32 {
	return uint32(f[1])<<16 | uint32(f[2])<<8 | uint32(f[3])
}

// DF extracts the downlink format
func (f Frame) DF() uint8 {
	return (f[0] >> 3) & 0x1F
}

// TypeCode extracts the ME type code
func (f Frame) TypeCode() uint8 {
	return (f[meOffset] >> 3) & 0x1F
}

// Hex returns the frame as upper-case hex, as written by dump1090 raw output
func (f Frame) Hex() string {
	return fmt.Sprintf("%X", f[:])
}

// Message is a decoded extended squitter. Only the fields relevant to the
// type code are set.
type Message struct {
	ICAO     uint32
	TypeCode uint8

	// Identification
	Callsign string

	// Airborne position
	AltitudeFt int
	CPR        CPRFrame

	// Airborne velocity
	Subtype     uint8
	GroundSpeed float64 // knots
	Track       float64 // degrees
}

// newFrame builds a DF17 frame around a 56-bit ME field
func newFrame(icao uint32, me uint64) Frame {
	var f Frame
	f[0] = DFExtendedSquitter<<3 | CapabilityAirborne
	f[1] = byte(icao >> 16)
	f[2] = byte(icao >> 8)
	f[3] = byte(icao)
	for i := 0; i < 7; i++ {
		f[meOffset+i] = byte(me >> (48 - 8*i))
	}
	setParity(&f)
	return f
}

func (f Frame) me() uint64 {
	var me uint64
	for i := 0; i < 7; i++ {
		me = me<<8 | uint64(f[meOffset+i])
	}
	return me
}

// bits extracts n bits of the ME field starting at 1-based position from,
// the numbering used by the ADS-B message tables
func bits(me uint64, from, n int) uint64 {
	return (me >> (56 - (from - 1) - n)) & (1<<n - 1)
}

// meWriter packs fields MSB first into a 56-bit ME value
type meWriter struct {
	me  uint64
	pos int
}

func (w *meWriter) put(v uint64, n int) {
	w.me |= (v & (1<<n - 1)) << (56 - w.pos - n)
	w.pos += n
}

// EncodeIdentification builds a TC4 identification message. The callsign
// is upper-cased, space padded to eight characters and characters outside
// the ADS-B set are sent as spaces.
func EncodeIdentification(icao uint32, callsign string) Frame {
	cs := strings.ToUpper(callsign)
	w := meWriter{}
	w.put(TCIdentification, 5)
	w.put(0, 3) // no category information
	for i := 0; i < 8; i++ {
		idx := 32 // space
		if i < len(cs) {
			if j := strings.IndexByte(ADSBCharset, cs[i]); j > 0 && validCallsignChar(cs[i]) {
				idx = j
			}
		}
		w.put(uint64(idx), 6)
	}
	return newFrame(icao, w.me)
}

func validCallsignChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == ' '
}

// EncodeAltitude returns the 12-bit Q-bit altitude code. Altitudes outside
// the representable range are clamped.
func EncodeAltitude(altFt int) uint16 {
	if altFt < MinAltitudeFt {
		altFt = MinAltitudeFt
	}
	if altFt > MaxAltitudeFt {
		altFt = MaxAltitudeFt
	}
	n := uint16(math.Round(float64(altFt-MinAltitudeFt) / 25))
	return (n&0x7F0)<<1 | 0x10 | n&0x0F
}

// DecodeAltitude reverses EncodeAltitude. ok is false for Gillham coded
// (Q-bit clear) or missing altitudes.
func DecodeAltitude(code uint16) (altFt int, ok bool) {
	if code == 0 || code&0x10 == 0 {
		return 0, false
	}
	n := int((code&0xFE0)>>1 | code&0x0F)
	return n*25 + MinAltitudeFt, true
}

// EncodePosition builds a TC11 airborne position message
func EncodePosition(icao uint32, lat, lon float64, altFt int, odd bool) Frame {
	cpr := EncodeCPR(lat, lon, odd)
	w := meWriter{}
	w.put(TCAirbornePosition, 5)
	w.put(0, 2) // surveillance status
	w.put(0, 1) // single antenna flag
	w.put(uint64(EncodeAltitude(altFt)), 12)
	w.put(0, 1) // time not UTC synchronised
	w.put(uint64(cpr.FFlag), 1)
	w.put(uint64(cpr.LatCPR), CPR_LAT_BITS)
	w.put(uint64(cpr.LonCPR), CPR_LON_BITS)
	return newFrame(icao, w.me)
}

// EncodeVelocity builds a TC19 ground speed message. Subtype 2 (4 kt
// resolution) is used when either component exceeds the subtype 1 range.
func EncodeVelocity(icao uint32, gsKnots, trackDeg float64) Frame {
	rad := trackDeg * math.Pi / 180
	east := gsKnots * math.Sin(rad)
	north := gsKnots * math.Cos(rad)

	subtype := uint64(VelocityGroundSubsonic)
	scale := 1.0
	if math.Round(math.Abs(east)) > 1022 || math.Round(math.Abs(north)) > 1022 {
		subtype = VelocityGroundSupersonic
		scale = 4
	}

	w := meWriter{}
	w.put(TCAirborneVelocity, 5)
	w.put(subtype, 3)
	w.put(0, 1) // intent change
	w.put(0, 1) // IFR capability
	w.put(0, 3) // NUCr
	w.put(signBit(east), 1)
	w.put(velocityComponent(east, scale), 10)
	w.put(signBit(north), 1)
	w.put(velocityComponent(north, scale), 10)
	w.put(0, 1) // vertical rate source: geometric
	w.put(0, 1) // climbing
	w.put(1, 9) // vertical rate 0 ft/min
	w.put(0, 2)
	w.put(0, 1) // GNSS above baro
	w.put(0, 7) // no altitude difference information
	return newFrame(icao, w.me)
}

func signBit(v float64) uint64 {
	if v < 0 {
		return 1
	}
	return 0
}

// velocityComponent encodes |v| with a +1 offset; 0 means unavailable
func velocityComponent(v, scale float64) uint64 {
	n := math.Round(math.Abs(v)/scale) + 1
	if n > 1023 {
		n = 1023
	}
	return uint64(n)
}

// Decode parses a DF17 frame of one of the supported type codes
func Decode(f Frame) (*Message, error) {
	if f.DF() != DFExtendedSquitter {
		return nil, fmt.Errorf("%w: DF%d", ErrUnsupported, f.DF())
	}
	if !CheckParity(f) {
		return nil, fmt.Errorf("%w: ICAO %s", ErrBadParity, formatICAO(f.ICAO()))
	}

	me := f.me()
	msg := &Message{ICAO: f.ICAO(), TypeCode: f.TypeCode()}

	switch tc := msg.TypeCode; {
	case tc >= 1 && tc <= 4:
		var sb strings.Builder
		for i := 0; i < 8; i++ {
			sb.WriteByte(ADSBCharset[bits(me, 9+6*i, 6)])
		}
		msg.Callsign = strings.TrimRight(sb.String(), " ")

	case tc >= 9 && tc <= 18:
		alt, ok := DecodeAltitude(uint16(bits(me, 9, 12)))
		if !ok {
			return nil, fmt.Errorf("%w: altitude encoding", ErrUnsupported)
		}
		msg.AltitudeFt = alt
		msg.CPR = CPRFrame{
			FFlag:  uint8(bits(me, 22, 1)),
			LatCPR: uint32(bits(me, 23, CPR_LAT_BITS)),
			LonCPR: uint32(bits(me, 40, CPR_LON_BITS)),
		}

	case tc == TCAirborneVelocity:
		msg.Subtype = uint8(bits(me, 6, 3))
		scale := 1.0
		switch msg.Subtype {
		case VelocityGroundSubsonic:
		case VelocityGroundSupersonic:
			scale = 4
		default:
			return nil, fmt.Errorf("%w: velocity subtype %d", ErrUnsupported, msg.Subtype)
		}
		vew, vns := bits(me, 15, 10), bits(me, 26, 10)
		if vew == 0 || vns == 0 {
			return nil, fmt.Errorf("%w: velocity unavailable", ErrUnsupported)
		}
		east := float64(vew-1) * scale
		if bits(me, 14, 1) == 1 {
			east = -east
		}
		north := float64(vns-1) * scale
		if bits(me, 25, 1) == 1 {
			north = -north
		}
		msg.GroundSpeed = math.Hypot(east, north)
		msg.Track = math.Atan2(east, north) * 180 / math.Pi
		if msg.Track < 0 {
			msg.Track += 360
		}

	default:
		return nil, fmt.Errorf("%w: type code %d", ErrUnsupported, tc)
	}

	return msg, nil
}

func formatICAO(icao uint32) string {
	return fmt.Sprintf("%06X", icao&0xFFFFFF)
}
