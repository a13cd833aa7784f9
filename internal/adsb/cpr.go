package adsb

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrCPRZoneMismatch is returned when an even/odd pair straddles a
	// latitude zone boundary and cannot be decoded together
	ErrCPRZoneMismatch = errors.New("cpr frames in different latitude zones")

	// ErrCPRBadLatitude is returned when a decoded latitude is outside ±90
	ErrCPRBadLatitude = errors.New("cpr latitude out of range")
)

const cprMax = float64(CPR_LAT_MAX)

// CPRFrame represents a CPR encoded position frame
type CPRFrame struct {
	LatCPR    uint32
	LonCPR    uint32
	FFlag     uint8 // 0 even, 1 odd
	Timestamp time.Time
}

// cprModInt performs always positive MOD operation (dump1090 style)
func cprModInt(a, b int) int {
	res := a % b
	if res < 0 {
		res += b
	}
	return res
}

// cprMod is the always positive floating point modulus
func cprMod(a, b float64) float64 {
	return a - b*math.Floor(a/b)
}

// cprDlat returns the latitude zone size for the frame parity
func cprDlat(fflag int) float64 {
	return 360.0 / float64(60-fflag)
}

// cprNFunction returns the number of longitude zones (dump1090 style)
func cprNFunction(lat float64, fflag int) int {
	nl := cprNLTable(lat) - fflag
	if nl < 1 {
		nl = 1
	}
	return nl
}

// cprDlonFunction returns longitude zone width (dump1090 style)
func cprDlonFunction(lat float64, fflag int) float64 {
	return 360.0 / float64(cprNFunction(lat, fflag))
}

// EncodeCPR encodes a position into the 17-bit airborne CPR format
func EncodeCPR(lat, lon float64, odd bool) CPRFrame {
	fflag := 0
	if odd {
		fflag = 1
	}

	dlat := cprDlat(fflag)
	yz := math.Floor(cprMax*cprMod(lat, dlat)/dlat + 0.5)
	rlat := dlat * (yz/cprMax + math.Floor(lat/dlat))

	dlon := cprDlonFunction(rlat, fflag)
	xz := math.Floor(cprMax*cprMod(lon, dlon)/dlon + 0.5)

	return CPRFrame{
		LatCPR: uint32(cprModInt(int(yz), CPR_LAT_MAX)),
		LonCPR: uint32(cprModInt(int(xz), CPR_LON_MAX)),
		FFlag:  uint8(fflag),
	}
}

// DecodeCPRGlobal decodes an even/odd pair without a reference position.
// The position is reported for the more recent frame, or the odd frame when
// useOdd is set and timestamps are equal.
func DecodeCPRGlobal(evenFrame, oddFrame CPRFrame, useOdd bool) (float64, float64, error) {
	AirDlat0 := cprDlat(0)
	AirDlat1 := cprDlat(1)

	lat0 := float64(evenFrame.LatCPR)
	lat1 := float64(oddFrame.LatCPR)
	lon0 := float64(evenFrame.LonCPR)
	lon1 := float64(oddFrame.LonCPR)

	// Compute the Latitude Index "j" (dump1090 method)
	j := int(math.Floor(((59*lat0 - 60*lat1) / cprMax) + 0.5))

	rlat0 := AirDlat0 * (float64(cprModInt(j, 60)) + lat0/cprMax)
	rlat1 := AirDlat1 * (float64(cprModInt(j, 59)) + lat1/cprMax)

	if rlat0 >= 270 {
		rlat0 -= 360
	}
	if rlat1 >= 270 {
		rlat1 -= 360
	}

	if rlat0 < -90 || rlat0 > 90 || rlat1 < -90 || rlat1 > 90 {
		return 0, 0, ErrCPRBadLatitude
	}

	if cprNLTable(rlat0) != cprNLTable(rlat1) {
		return 0, 0, ErrCPRZoneMismatch
	}

	if oddFrame.Timestamp.After(evenFrame.Timestamp) {
		useOdd = true
	} else if evenFrame.Timestamp.After(oddFrame.Timestamp) {
		useOdd = false
	}

	var rlat, rlon float64
	if useOdd {
		ni := cprNFunction(rlat1, 1)
		m := int(math.Floor((((lon0 * float64(cprNLTable(rlat1)-1)) -
			(lon1 * float64(cprNLTable(rlat1)))) / cprMax) + 0.5))
		rlon = cprDlonFunction(rlat1, 1) * (float64(cprModInt(m, ni)) + lon1/cprMax)
		rlat = rlat1
	} else {
		ni := cprNFunction(rlat0, 0)
		m := int(math.Floor((((lon0 * float64(cprNLTable(rlat0)-1)) -
			(lon1 * float64(cprNLTable(rlat0)))) / cprMax) + 0.5))
		rlon = cprDlonFunction(rlat0, 0) * (float64(cprModInt(m, ni)) + lon0/cprMax)
		rlat = rlat0
	}

	// Renormalize longitude to -180 .. +180 (dump1090 method)
	rlon -= math.Floor((rlon+180)/360) * 360

	return rlat, rlon, nil
}

// CPRDecoder pairs even and odd frames per aircraft and decodes positions
// once both are available. It is used to verify emitted feeds.
type CPRDecoder struct {
	frames map[uint32]*cprPair
	mu     sync.Mutex
	logger *logrus.Logger
}

type cprPair struct {
	even, odd *CPRFrame
}

// NewCPRDecoder creates a new CPR decoder
func NewCPRDecoder(logger *logrus.Logger) *CPRDecoder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CPRDecoder{
		frames: make(map[uint32]*cprPair),
		logger: logger,
	}
}

// Add stores frame for icao and returns a position when the aircraft has
// a decodable even/odd pair. Pairs more than 10 seconds apart are not used.
func (c *CPRDecoder) Add(icao uint32, frame CPRFrame) (lat, lon float64, ok bool) {
	c.mu.Lock()
	pair, exists := c.frames[icao]
	if !exists {
		pair = &cprPair{}
		c.frames[icao] = pair
	}
	f := frame
	if frame.FFlag == 0 {
		pair.even = &f
	} else {
		pair.odd = &f
	}
	if pair.even == nil || pair.odd == nil {
		c.mu.Unlock()
		return 0, 0, false
	}
	even, odd := *pair.even, *pair.odd
	c.mu.Unlock()

	if gap := even.Timestamp.Sub(odd.Timestamp); gap > 10*time.Second || gap < -10*time.Second {
		return 0, 0, false
	}

	lat, lon, err := DecodeCPRGlobal(even, odd, frame.FFlag == 1)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"icao": formatICAO(icao),
		}).WithError(err).Debug("CPR decode failed")
		return 0, 0, false
	}
	return lat, lon, true
}

// Len returns the number of aircraft with stored frames
func (c *CPRDecoder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// nlBoundaries holds the latitudes at which the number of longitude zones
// drops by one, starting from NL=59 at the equator
var nlBoundaries = [...]float64{
	10.47047130, 14.82817437, 18.18626357, 21.02939493, 23.54504487,
	25.82924707, 27.93898710, 29.91135686, 31.77209708, 33.53993436,
	35.22899598, 36.85025108, 38.41241892, 39.92256684, 41.38651832,
	42.80914012, 44.19454951, 45.54626723, 46.86733252, 48.16039128,
	49.42776439, 50.67150166, 51.89342469, 53.09516153, 54.27817472,
	55.44378444, 56.59318756, 57.72747354, 58.84763776, 59.95459277,
	61.04917774, 62.13216659, 63.20427479, 64.26616523, 65.31845310,
	66.36171008, 67.39646774, 68.42322022, 69.44242631, 70.45451075,
	71.45986473, 72.45884545, 73.45177442, 74.43893416, 75.42056257,
	76.39684391, 77.36789461, 78.33374083, 79.29428225, 80.24923213,
	81.19801349, 82.13956981, 83.07199445, 83.99173563, 84.89166191,
	85.75541621, 86.53536998, 87.00000000,
}

// cprNLTable returns the number of longitude zones for a latitude
func cprNLTable(lat float64) int {
	i := sort.SearchFloat64s(nlBoundaries[:], math.Abs(lat))
	if i < len(nlBoundaries) && nlBoundaries[i] == math.Abs(lat) {
		i++
	}
	return 59 - i
}
