// Package beast implements the Mode-S Beast binary framing used by dump1090
// on port 30005: encoding, a streaming decoder and a TCP broadcaster.
package beast

import (
	"time"
)

// Beast mode message types
const (
	SyncByte   = 0x1A // Beast mode sync byte
	ModeAC     = 0x31 // Mode A/C
	ModeS      = 0x32 // Mode S Short (56 bits)
	ModeSLong  = 0x33 // Mode S Long (112 bits)
	ModeStatus = 0x34 // Status
)

// ClockHz is the rate of the 48-bit MLAT timestamp counter
const ClockHz = 12_000_000

const timestampMask = 1<<48 - 1

// Message represents a decoded Beast mode message
type Message struct {
	MessageType byte
	Timestamp   uint64 // 12 MHz counter ticks
	Signal      byte
	Data        []byte
}

// Ticks converts elapsed time since the counter epoch into 12 MHz ticks,
// wrapping at 48 bits
func Ticks(elapsed time.Duration) uint64 {
	if elapsed < 0 {
		elapsed = 0
	}
	sec := uint64(elapsed / time.Second)
	frac := uint64(elapsed % time.Second)
	return (sec*ClockHz + frac*ClockHz/uint64(time.Second)) & timestampMask
}

// dataLength returns the payload length for a message type
func dataLength(messageType byte) int {
	switch messageType {
	case ModeAC, ModeStatus:
		return 2
	case ModeS:
		return 7
	case ModeSLong:
		return 14
	default:
		return 0
	}
}

// GetICAO extracts ICAO address from Mode S message
func (msg *Message) GetICAO() uint32 {
	if msg.MessageType != ModeS && msg.MessageType != ModeSLong {
		return 0
	}

	if len(msg.Data) < 4 {
		return 0
	}

	// ICAO address is in bytes 1-3 of Mode S message
	return (uint32(msg.Data[1]) << 16) | (uint32(msg.Data[2]) << 8) | uint32(msg.Data[3])
}

// GetDF extracts Downlink Format from Mode S message
func (msg *Message) GetDF() byte {
	if msg.MessageType != ModeS && msg.MessageType != ModeSLong {
		return 0
	}

	if len(msg.Data) < 1 {
		return 0
	}

	// DF is in upper 5 bits of first byte
	return (msg.Data[0] >> 3) & 0x1F
}

// IsValid performs basic validation on the message
func (msg *Message) IsValid() bool {
	n := dataLength(msg.MessageType)
	return n > 0 && len(msg.Data) == n
}
