package beast

import (
	"fmt"

	"adsbsynth/internal/adsb"
)

// Encode frames a message. Every 0x1A after the type byte is doubled.
func Encode(msg *Message) ([]byte, error) {
	n := dataLength(msg.MessageType)
	if n == 0 {
		return nil, fmt.Errorf("unknown message type 0x%02x", msg.MessageType)
	}
	if len(msg.Data) != n {
		return nil, fmt.Errorf("message type 0x%02x needs %d data bytes, got %d", msg.MessageType, n, len(msg.Data))
	}

	out := make([]byte, 0, 2*(2+6+1+n))
	out = append(out, SyncByte, msg.MessageType)

	ts := msg.Timestamp & timestampMask
	for i := 5; i >= 0; i-- {
		out = appendEscaped(out, byte(ts>>(8*i)))
	}
	out = appendEscaped(out, msg.Signal)
	for _, b := range msg.Data {
		out = appendEscaped(out, b)
	}
	return out, nil
}

func appendEscaped(out []byte, b byte) []byte {
	if b == SyncByte {
		return append(out, SyncByte, SyncByte)
	}
	return append(out, b)
}

// EncodeFrame frames a 112-bit extended squitter as a Mode S long message
func EncodeFrame(f adsb.Frame, ticks uint64, signal byte) []byte {
	data := make([]byte, adsb.FrameLen)
	copy(data, f[:])
	// Mode S long messages always carry 14 bytes; Encode cannot fail here
	out, _ := Encode(&Message{MessageType: ModeSLong, Timestamp: ticks, Signal: signal, Data: data})
	return out
}
