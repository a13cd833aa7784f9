package adsb

// ADS-B 6-bit character set: space, A-Z, 0-9
// This is the standard character set used in ADS-B callsign encoding
const ADSBCharset = "@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_ !\"#$%&'()*+,-./0123456789:;<=>?"

// CPR constants (airborne format, 17-bit)
const (
	CPR_LAT_BITS = 17
	CPR_LON_BITS = 17
	CPR_LAT_MAX  = 131072 // 2^17
	CPR_LON_MAX  = 131072 // 2^17
)

// Extended squitter framing
const (
	DFExtendedSquitter = 17
	CapabilityAirborne = 5 // level 2+ transponder, airborne

	// FrameLen is the length of a DF17 frame in bytes (112 bits)
	FrameLen = 14

	// meOffset is the byte offset of the 56-bit ME field
	meOffset = 4

	// parityOffset is the byte offset of the 24-bit parity field
	parityOffset = 11
)

// Type codes for the messages this package encodes
const (
	TCIdentification   = 4  // aircraft category set A
	TCAirbornePosition = 11 // barometric altitude, NUCp 7
	TCAirborneVelocity = 19
)

// Airborne velocity subtypes
const (
	VelocityGroundSubsonic   = 1
	VelocityGroundSupersonic = 2
)

// Altitude encoding limits for the 25 ft Q-bit format
const (
	MinAltitudeFt = -1000
	MaxAltitudeFt = 50175
)
