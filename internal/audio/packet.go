// Package audio implements the Mumble audio packet framing, the Opus
// codec wrapper, and the per-session decoder pool.
package audio

import (
	"errors"

	"github.com/gomumble/engine/internal/wire"
)

// Type is the codec carried by an audio packet, encoded in the top 3
// bits of the header byte.
type Type byte

const (
	TypeCeltAlpha Type = 0
	TypePing      Type = 1
	TypeSpeex     Type = 2
	TypeCeltBeta  Type = 3
	TypeOpus      Type = 4
)

// MaxTarget is the largest valid voice-target value (5 header bits).
const MaxTarget = 31

// Packet is a decoded audio packet: a header, the sender's session id
// (zero on packets this client itself sends), a sequence number, a
// talk-burst terminator flag, and the codec payload.
type Packet struct {
	Type     Type
	Target   byte
	Session  uint32 // only meaningful on inbound packets
	Sequence int64
	IsLast   bool
	Payload  []byte
}

var (
	// ErrInvalidTarget is returned when Target exceeds MaxTarget.
	ErrInvalidTarget = errors.New("audio: target exceeds 31")
	// ErrTruncatedPacket is returned when a packet is shorter than its
	// header requires.
	ErrTruncatedPacket = errors.New("audio: truncated packet")
)

// Encode renders p as a wire-format audio packet: a header byte, a
// varint sequence number, a varint payload length with the top bit
// marking the last frame of a talk burst, and the payload bytes.
func (p Packet) Encode() ([]byte, error) {
	if p.Target > MaxTarget {
		return nil, ErrInvalidTarget
	}

	header := byte(p.Type)<<5 | p.Target

	out := make([]byte, 0, len(p.Payload)+16)
	out = append(out, header)
	out = wire.EncodeVarint(out, p.Sequence)

	lengthField := int64(len(p.Payload))
	if p.IsLast {
		lengthField |= 1 << 13
	}
	out = wire.EncodeVarint(out, lengthField)
	out = append(out, p.Payload...)
	return out, nil
}

// Decode parses a wire-format audio packet. When hasSenderSession is
// true, the varint right after the header is read into Session (the
// sender's session id that server-relayed packets carry); otherwise
// Session is left zero for the caller to fill in.
func Decode(b []byte, hasSenderSession bool) (Packet, error) {
	if len(b) < 1 {
		return Packet{}, ErrTruncatedPacket
	}

	header := b[0]
	p := Packet{
		Type:   Type(header >> 5),
		Target: header & 0x1f,
	}
	rest := b[1:]

	if hasSenderSession {
		session, n, err := wire.DecodeVarint(rest)
		if err != nil {
			return Packet{}, err
		}
		p.Session = uint32(session)
		rest = rest[n:]
	}

	seq, n, err := wire.DecodeVarint(rest)
	if err != nil {
		return Packet{}, err
	}
	p.Sequence = seq
	rest = rest[n:]

	lengthField, n, err := wire.DecodeVarint(rest)
	if err != nil {
		return Packet{}, err
	}
	rest = rest[n:]

	p.IsLast = lengthField&(1<<13) != 0
	length := int(lengthField &^ (1 << 13))
	if length > len(rest) {
		return Packet{}, ErrTruncatedPacket
	}
	p.Payload = rest[:length]
	return p, nil
}
