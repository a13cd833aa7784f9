package adsb

// ADS-B CRC-24 polynomial constant (Mode S standard)
const MODES_GENERATOR_POLY = 0xfff409

// Pre-computed CRC table
var crcTable [256]uint32

// init initializes the pre-computed CRC table
func init() {
	for i := 0; i < 256; i++ {
		c := uint32(i) << 16
		for j := 0; j < 8; j++ {
			if c&0x800000 != 0 {
				c = (c << 1) ^ MODES_GENERATOR_POLY
			} else {
				c = c << 1
			}
		}
		crcTable[i] = c & 0x00ffffff
	}
}

// CalculateCRC calculates the Mode S CRC-24 remainder of data
func CalculateCRC(data []byte) uint32 {
	var rem uint32

	for _, b := range data {
		rem = (rem << 8) ^ crcTable[uint32(b)^((rem&0xff0000)>>16)]
		rem = rem & 0xffffff
	}

	return rem
}

// setParity writes the CRC of the first 88 bits into the parity field
func setParity(f *Frame) {
	crc := CalculateCRC(f[:parityOffset])
	f[11] = byte(crc >> 16)
	f[12] = byte(crc >> 8)
	f[13] = byte(crc)
}

// CheckParity reports whether a DF17 frame carries a valid parity field.
// The remainder over the whole frame is zero for an intact message.
func CheckParity(f Frame) bool {
	return CalculateCRC(f[:]) == 0
}
