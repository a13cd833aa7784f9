package adsb

import (
	"fmt"
	"strconv"

	"adsbsynth/internal/aircraft"
)

// ParseICAO parses a six digit hex address
func ParseICAO(hex string) (uint32, error) {
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || len(hex) != 6 {
		return 0, fmt.Errorf("invalid ICAO address %q", hex)
	}
	return uint32(v), nil
}

// EncodeReport produces the identification, position and velocity squitters
// for one transponder report. odd selects the CPR frame parity; feeders
// alternate it between ticks so receivers can decode globally.
func EncodeReport(r aircraft.Report, odd bool) ([]Frame, error) {
	icao, err := ParseICAO(r.ICAO)
	if err != nil {
		return nil, err
	}
	return []Frame{
		EncodeIdentification(icao, r.Flight),
		EncodePosition(icao, r.Lat, r.Lon, r.AltBaroFt, odd),
		EncodeVelocity(icao, r.GroundSpeed, r.Track),
	}, nil
}
