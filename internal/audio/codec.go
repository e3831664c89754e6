package audio

import (
	"container/list"
	"errors"
	"sync"

	opus "gopkg.in/hraban/opus.v2"
)

// SampleRate and Channels are fixed; embedders needing other rates
// resample outside the engine.
const (
	SampleRate = 48000
	Channels   = 1
)

// MaxOpusFrameBytes bounds a single encoded Opus frame; comfortably
// above anything the configured bitrate range produces.
const MaxOpusFrameBytes = 4000

// Encoder wraps a single Opus encoder instance configured for voice.
// It is not safe for concurrent use; AudioSend callers serialize on
// the session.
type Encoder struct {
	enc *opus.Encoder
}

// NewEncoder constructs an Opus encoder at the given bitrate (bits per
// second), tuned for voice.
func NewEncoder(bitrate int) (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, err
	}
	return &Encoder{enc: enc}, nil
}

// Encode compresses a frame of signed 16-bit PCM samples into an Opus
// frame.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, MaxOpusFrameBytes)
	n, err := e.enc.Encode(pcm, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// SetBitrate reconfigures the encoder's target bitrate.
func (e *Encoder) SetBitrate(bitrate int) error {
	return e.enc.SetBitrate(bitrate)
}

// Decoder wraps a single Opus decoder instance.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder constructs an Opus decoder for the fixed sample rate and
// channel count.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return &Decoder{dec: dec}, nil
}

// Decode decompresses an Opus frame to signed 16-bit PCM. The scratch
// buffer is sized for a 60ms frame, the largest standard Opus frame
// duration, and trimmed to the decoded sample count.
func (d *Decoder) Decode(frame []byte) ([]int16, error) {
	pcm := make([]int16, SampleRate/1000*60) // 60ms upper bound
	n, err := d.dec.Decode(frame, pcm)
	if err != nil {
		return nil, err
	}
	return pcm[:n], nil
}

// ErrDecoderPoolClosed is returned by DecoderPool.Get after Close.
var ErrDecoderPoolClosed = errors.New("audio: decoder pool closed")

// DecoderPool maintains one Opus decoder per speaking session, bounded
// to a fixed capacity with least-recently-used eviction. A single
// shared decoder would corrupt audio when two users speak concurrently,
// since each Opus decoder carries its own prediction state.
type DecoderPool struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint32]*list.Element
	order    *list.List // front = most recently used
	closed   bool
}

type decoderEntry struct {
	session uint32
	decoder *Decoder
}

// NewDecoderPool creates a pool holding at most capacity decoders.
func NewDecoderPool(capacity int) *DecoderPool {
	if capacity <= 0 {
		capacity = 64
	}
	return &DecoderPool{
		capacity: capacity,
		entries:  make(map[uint32]*list.Element),
		order:    list.New(),
	}
}

// Get returns the decoder for session, creating one and evicting the
// least-recently-used entry if the pool is at capacity.
func (p *DecoderPool) Get(session uint32) (*Decoder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrDecoderPoolClosed
	}

	if el, ok := p.entries[session]; ok {
		p.order.MoveToFront(el)
		return el.Value.(*decoderEntry).decoder, nil
	}

	if p.order.Len() >= p.capacity {
		oldest := p.order.Back()
		if oldest != nil {
			entry := oldest.Value.(*decoderEntry)
			delete(p.entries, entry.session)
			p.order.Remove(oldest)
		}
	}

	dec, err := NewDecoder()
	if err != nil {
		return nil, err
	}
	el := p.order.PushFront(&decoderEntry{session: session, decoder: dec})
	p.entries[session] = el
	return dec, nil
}

// Reset discards the decoder for a session, forcing a fresh one on the
// next Get. Used on sequence-number discontinuities.
func (p *DecoderPool) Reset(session uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.entries[session]; ok {
		delete(p.entries, session)
		p.order.Remove(el)
	}
}

// Close releases all decoders; subsequent Get calls fail.
func (p *DecoderPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.entries = make(map[uint32]*list.Element)
	p.order.Init()
}

// Len reports the number of live decoders, for tests.
func (p *DecoderPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}
