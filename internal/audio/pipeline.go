package audio

import "sync/atomic"

// MuteChecker reports whether a session is locally muted. It is
// satisfied by *statestore.Store; the audio package depends only on
// this narrow interface to avoid a cyclic import.
type MuteChecker interface {
	UserMuted(session uint32) bool
}

// Sender is the transport-facing send primitive the pipeline's
// outbound path uses to ship an encoded packet. It is satisfied by
// the transport layer and returns false (silently) when not
// connected.
type Sender interface {
	SendAudio(packet []byte) bool
}

// Frame is a decoded inbound Opus frame delivered to the embedder.
type Frame struct {
	Target   byte
	Session  uint32
	Sequence int64
	IsLast   bool
	PCM      []int16
}

// Unsupported is an inbound non-Opus audio packet delivered to the
// embedder undecoded.
type Unsupported struct {
	Target   byte
	Session  uint32
	Sequence int64
	Type     Type
	Payload  []byte
}

// Pipeline owns the Opus encoder, the per-session decoder pool, and
// the outbound talk-burst sequence counter.
type Pipeline struct {
	encoder *Encoder
	decoder *DecoderPool
	mutes   MuteChecker

	seq int64

	lastSeqBySession map[uint32]int64
}

// NewPipeline constructs a Pipeline. bitrate configures the encoder;
// decoderCapacity bounds the per-session decoder pool.
func NewPipeline(bitrate, decoderCapacity int, mutes MuteChecker) (*Pipeline, error) {
	enc, err := NewEncoder(bitrate)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		encoder:          enc,
		decoder:          NewDecoderPool(decoderCapacity),
		mutes:            mutes,
		lastSeqBySession: make(map[uint32]int64),
	}, nil
}

// Close releases pipeline resources.
func (p *Pipeline) Close() {
	p.decoder.Close()
}

// Send encodes pcm and ships it via sender at the given target. It is
// a no-op on a nil/empty PCM buffer or a nil sender (not yet
// connected). The sequence number increments per packet within a talk
// burst; isLast ends the burst and the next one restarts at zero.
func (p *Pipeline) Send(sender Sender, pcm []int16, target byte, isLast bool) error {
	if len(pcm) == 0 {
		return nil
	}
	if target > MaxTarget {
		return ErrInvalidTarget
	}

	encoded, err := p.encoder.Encode(pcm)
	if err != nil {
		return err
	}

	seq := atomic.AddInt64(&p.seq, 1) - 1

	pkt := Packet{
		Type:     TypeOpus,
		Target:   target,
		Sequence: seq,
		IsLast:   isLast,
		Payload:  encoded,
	}
	wire, err := pkt.Encode()
	if err != nil {
		return err
	}

	if isLast {
		atomic.StoreInt64(&p.seq, 0)
	}

	if sender == nil {
		return nil
	}
	sender.SendAudio(wire)
	return nil
}

// ResetBurst zeroes the outbound sequence counter, used after a
// period of silence so a new talk burst starts at sequence 0.
func (p *Pipeline) ResetBurst() {
	atomic.StoreInt64(&p.seq, 0)
}

// HandleInbound parses and routes one inbound audio packet.
// hasSession indicates whether the wire format for this transport leg
// carries an explicit sender session id (true for UDPTunnel and raw
// UDP datagrams).
//
// It returns a non-nil *Frame for Opus packets from unmuted senders, a
// non-nil *Unsupported for other codecs, or both nil when the packet
// was from a muted sender (consumed, never surfaced).
func (p *Pipeline) HandleInbound(b []byte, senderSession uint32, hasSession bool) (*Frame, *Unsupported, error) {
	pkt, err := Decode(b, hasSession)
	if err != nil {
		return nil, nil, err
	}
	session := senderSession
	if hasSession {
		session = pkt.Session
	}

	if p.mutes != nil && p.mutes.UserMuted(session) {
		return nil, nil, nil
	}

	switch pkt.Type {
	case TypeOpus:
		p.checkDiscontinuity(session, pkt.Sequence)
		dec, err := p.decoder.Get(session)
		if err != nil {
			return nil, nil, err
		}
		pcm, err := dec.Decode(pkt.Payload)
		if err != nil {
			return nil, nil, err
		}
		return &Frame{
			Target:   pkt.Target,
			Session:  session,
			Sequence: pkt.Sequence,
			IsLast:   pkt.IsLast,
			PCM:      pcm,
		}, nil, nil

	case TypePing:
		return nil, nil, nil

	default:
		return nil, &Unsupported{
			Target:   pkt.Target,
			Session:  session,
			Sequence: pkt.Sequence,
			Type:     pkt.Type,
			Payload:  pkt.Payload,
		}, nil
	}
}

// checkDiscontinuity resets the session's decoder if its sequence
// number regressed, which would otherwise poison the decoder's
// prediction state.
func (p *Pipeline) checkDiscontinuity(session uint32, seq int64) {
	last, ok := p.lastSeqBySession[session]
	if ok && seq < last {
		p.decoder.Reset(session)
	}
	p.lastSeqBySession[session] = seq
}
