package beast

import (
	"bytes"
	"fmt"

	"github.com/sirupsen/logrus"
)

// maxBuffered bounds the bytes held while waiting for a complete message
const maxBuffered = 4096

// Decoder decodes Beast mode messages from a byte stream. Data may arrive
// split at any point; incomplete messages are kept until more data arrives.
type Decoder struct {
	logger *logrus.Logger
	buffer []byte
}

// NewDecoder creates a new Beast decoder
func NewDecoder(logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Decoder{
		logger: logger,
		buffer: make([]byte, 0, maxBuffered),
	}
}

// Decode appends data to the stream and returns every complete message
func (d *Decoder) Decode(data []byte) []*Message {
	d.buffer = append(d.buffer, data...)

	var messages []*Message
	for {
		// Look for sync byte
		syncIndex := bytes.IndexByte(d.buffer, SyncByte)
		if syncIndex == -1 {
			d.buffer = d.buffer[:0]
			break
		}
		if syncIndex > 0 {
			d.buffer = d.buffer[syncIndex:]
		}

		if len(d.buffer) < 2 {
			break
		}

		messageType := d.buffer[1]
		dataLen := dataLength(messageType)
		if dataLen == 0 {
			d.logger.WithFields(logrus.Fields{
				"message_type": fmt.Sprintf("0x%02x", messageType),
			}).Debug("Unknown message type, skipping")
			d.buffer = d.buffer[1:]
			continue
		}

		msg, consumed, err := d.unescape(messageType, dataLen)
		if err != nil {
			d.logger.WithError(err).Debug("Failed to decode beast message")
			d.buffer = d.buffer[1:]
			continue
		}
		if msg == nil {
			// incomplete
			break
		}

		messages = append(messages, msg)
		d.buffer = d.buffer[consumed:]
	}

	// Keep buffer size reasonable
	if len(d.buffer) > maxBuffered {
		d.logger.WithField("buffer_size", len(d.buffer)).Debug("Beast decoder buffer overflow, clearing")
		d.buffer = d.buffer[:0]
	}

	return messages
}

// unescape reads the body of the message at the start of the buffer. It
// returns a nil message when more data is needed, and an error when an
// unescaped sync byte interrupts the body.
func (d *Decoder) unescape(messageType byte, dataLen int) (*Message, int, error) {
	need := 6 + 1 + dataLen
	body := make([]byte, 0, need)

	i := 2
	for len(body) < need {
		if i >= len(d.buffer) {
			return nil, 0, nil
		}
		b := d.buffer[i]
		if b == SyncByte {
			if i+1 >= len(d.buffer) {
				return nil, 0, nil
			}
			if d.buffer[i+1] != SyncByte {
				return nil, 0, fmt.Errorf("truncated message type 0x%02x at byte %d", messageType, i)
			}
			i++
		}
		body = append(body, b)
		i++
	}

	var ts uint64
	for _, b := range body[:6] {
		ts = ts<<8 | uint64(b)
	}

	return &Message{
		MessageType: messageType,
		Timestamp:   ts,
		Signal:      body[6],
		Data:        body[7:],
	}, i, nil
}
