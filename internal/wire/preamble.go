package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxMessageLength is the largest control-message payload this engine
// will accept; anything bigger is treated as a protocol violation.
const MaxMessageLength = 8 * 1024 * 1024

// PreambleSize is the fixed size, in bytes, of the control-channel
// preamble: a big-endian u16 message type followed by a big-endian u32
// payload length.
const PreambleSize = 6

// ErrMessageTooLarge is returned by DecodePreamble when the encoded
// length exceeds MaxMessageLength.
var ErrMessageTooLarge = errors.New("wire: control message exceeds maximum length")

// Preamble is the 6-byte header prefixing every control message.
type Preamble struct {
	Type   Tag
	Length uint32
}

// EncodePreamble renders p into a freshly allocated 6-byte slice.
func EncodePreamble(p Preamble) []byte {
	buf := make([]byte, PreambleSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(p.Type))
	binary.BigEndian.PutUint32(buf[2:6], p.Length)
	return buf
}

// DecodePreamble parses the fixed 6-byte preamble from b. b must be
// exactly PreambleSize bytes; callers read it from the stream before
// calling this function.
func DecodePreamble(b []byte) (Preamble, error) {
	if len(b) != PreambleSize {
		return Preamble{}, fmt.Errorf("wire: preamble must be %d bytes, got %d", PreambleSize, len(b))
	}

	p := Preamble{
		Type:   Tag(binary.BigEndian.Uint16(b[0:2])),
		Length: binary.BigEndian.Uint32(b[2:6]),
	}
	if p.Length > MaxMessageLength {
		return Preamble{}, ErrMessageTooLarge
	}
	return p, nil
}
