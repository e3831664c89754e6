// Package transport implements the Mumble control-channel state
// machine: TLS lifecycle, the fixed 6-byte preamble framing, the
// Version/Authenticate handshake, keepalive pings, and the run loop
// that drains inbound frames to the dispatcher and audio pipeline.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gomumble/engine/internal/audio"
	"github.com/gomumble/engine/internal/dispatch"
	"github.com/gomumble/engine/internal/wire"
)

// State is a connection-state value. A connection cycles
// NotConnected → InProgress → Connected → Disconnecting →
// NotConnected; Connected is only reached on ServerSync.
type State int32

const (
	NotConnected State = iota
	InProgress
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NOT_CONNECTED"
	case InProgress:
		return "IN_PROGRESS"
	case Connected:
		return "CONNECTED"
	case Disconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrAlreadyConnected  = errors.New("transport: connection already in progress or established")
	ErrNotConnected      = errors.New("transport: not connected")
	ErrKeepaliveTimeout  = errors.New("transport: no ping received within timeout")
	ErrRejected          = errors.New("transport: server rejected the connection")
	ErrProtocolViolation = errors.New("transport: protocol violation")
)

const (
	pingInterval   = 5 * time.Second
	pingTimeout    = 30 * time.Second
	writeQueueSize = 64
)

// AuthInfo carries the handshake fields the session's Config supplies.
type AuthInfo struct {
	Username, Password string
	Tokens             []string
	CeltVersions       []int32
	VersionRelease     string
	VersionOS          string
	VersionOSVersion   string
}

type outboundFrame struct {
	tag     wire.Tag
	payload []byte
}

// inboundFrame is a frame handed from a reader goroutine (the control
// readLoop or the UDP readLoop) to Run's select loop, which is the
// only place callbacks are invoked. udpAudio marks a plaintext
// datagram read off the UDP channel rather than a framed control
// message.
type inboundFrame struct {
	tag      wire.Tag
	payload  []byte
	udpAudio bool
}

// Transport owns one TLS control connection and the optional UDP
// datagram channel for the lifetime of one connect/run/disconnect
// cycle.
type Transport struct {
	dispatcher *dispatch.Dispatcher
	pipeline   *audio.Pipeline
	listeners  dispatch.Listeners
	log        *logrus.Entry

	udp *udpChannel

	mu           sync.RWMutex
	state        State
	conn         net.Conn
	writeCh      chan outboundFrame
	inboundCh    chan inboundFrame
	done         chan struct{}
	closeOnce    sync.Once
	lastPingRecv time.Time
	lastSend     time.Time
}

// New constructs a Transport. dispatcher handles control messages,
// pipeline handles audio packets, listeners receives Disconnected.
func New(dispatcher *dispatch.Dispatcher, pipeline *audio.Pipeline, listeners dispatch.Listeners, log *logrus.Entry) *Transport {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Transport{
		dispatcher: dispatcher,
		pipeline:   pipeline,
		listeners:  listeners,
		log:        log,
		state:      NotConnected,
	}
}

// GetState returns the current connection state.
func (t *Transport) GetState() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Connect dials addr over TLS and sends the Version/Authenticate
// handshake pair. It fails with ErrAlreadyConnected unless the
// current state is NotConnected.
func (t *Transport) Connect(ctx context.Context, addr string, tlsConfig *tls.Config, auth AuthInfo) error {
	t.mu.Lock()
	if t.state != NotConnected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.state = InProgress
	t.mu.Unlock()

	dialer := &tls.Dialer{Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.setState(NotConnected)
		return fmt.Errorf("transport: dial: %w", err)
	}

	t.attach(conn)
	return t.handshake(auth)
}

// attach installs a live connection and resets the per-cycle
// channels. Split from Connect so tests can drive the transport over
// an in-memory pipe without a TLS dial.
func (t *Transport) attach(conn net.Conn) {
	t.mu.Lock()
	t.state = InProgress
	t.conn = conn
	t.writeCh = make(chan outboundFrame, writeQueueSize)
	t.inboundCh = make(chan inboundFrame, writeQueueSize)
	t.done = make(chan struct{})
	t.closeOnce = sync.Once{}
	t.lastPingRecv = time.Now()
	t.lastSend = time.Time{}
	t.mu.Unlock()
}

func (t *Transport) handshake(auth AuthInfo) error {
	version := wire.Version{
		Version:   (1 << 16) | (2 << 8) | 0,
		Release:   auth.VersionRelease,
		OS:        auth.VersionOS,
		OSVersion: auth.VersionOSVersion,
	}
	if err := t.writeFrame(wire.TagVersion, version.Marshal()); err != nil {
		t.setState(NotConnected)
		return fmt.Errorf("transport: version handshake: %w", err)
	}

	authMsg := wire.Authenticate{
		Username:     auth.Username,
		Password:     auth.Password,
		Tokens:       auth.Tokens,
		CeltVersions: auth.CeltVersions,
		Opus:         true,
	}
	if err := t.writeFrame(wire.TagAuthenticate, authMsg.Marshal()); err != nil {
		t.setState(NotConnected)
		return fmt.Errorf("transport: authenticate handshake: %w", err)
	}
	return nil
}

// writeFrame writes one preamble-framed message directly to the
// connection. Called either before Run's loop starts (handshake) or
// from within the loop as it drains writeCh — never concurrently with
// itself, so no lock is needed around the conn.Write calls themselves.
func (t *Transport) writeFrame(tag wire.Tag, payload []byte) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	preamble := wire.EncodePreamble(wire.Preamble{Type: tag, Length: uint32(len(payload))})
	if _, err := conn.Write(preamble); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return err
		}
	}

	t.mu.Lock()
	t.lastSend = time.Now()
	t.mu.Unlock()
	return nil
}

// Enqueue queues a control message for the run loop to send. It never
// blocks on I/O; it returns false if the transport is not connected
// or the queue is full.
func (t *Transport) Enqueue(tag wire.Tag, payload []byte) bool {
	t.mu.RLock()
	ch := t.writeCh
	state := t.state
	t.mu.RUnlock()

	if ch == nil || state != Connected {
		return false
	}
	select {
	case ch <- outboundFrame{tag: tag, payload: payload}:
		return true
	default:
		t.log.Warn("transport: outbound queue full, dropping control message")
		return false
	}
}

// SendAudio implements audio.Sender: it ships an encoded audio packet
// over the UDP datagram channel when available, falling back to a
// UDPTunnel-wrapped control frame otherwise.
func (t *Transport) SendAudio(packet []byte) bool {
	t.mu.RLock()
	state := t.state
	udp := t.udp
	t.mu.RUnlock()

	if state != Connected {
		return false
	}
	if udp != nil {
		if err := udp.send(packet); err == nil {
			return true
		}
	}
	return t.Enqueue(wire.TagUDPTunnel, packet)
}

// Run drives the I/O loop: reading inbound frames, dispatching them,
// sending queued outbound frames, and ticking the keepalive. It
// returns when the context is cancelled, Disconnect is called, or a
// fault tears the session down. Every Listeners callback is delivered
// on the goroutine that calls Run, except the Disconnected callback
// raised by a Disconnect call, which runs on Disconnect's caller.
func (t *Transport) Run(ctx context.Context) error {
	readErrCh := make(chan error, 1)
	go t.readLoop(readErrCh)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	t.mu.RLock()
	writeCh := t.writeCh
	inboundCh := t.inboundCh
	done := t.done
	t.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			t.teardown(ctx.Err())
			return ctx.Err()

		case <-done:
			return nil

		case f := <-writeCh:
			if err := t.writeFrame(f.tag, f.payload); err != nil {
				t.teardown(err)
				return err
			}

		case item := <-inboundCh:
			// The only place inbound frames are dispatched and
			// callbacks invoked, keeping every Listeners method on
			// this single goroutine.
			if err := t.handleInbound(item.tag, item.payload, item.udpAudio); err != nil {
				t.teardown(err)
				return err
			}

		case <-ticker.C:
			t.mu.RLock()
			lastRecv := t.lastPingRecv
			lastSend := t.lastSend
			t.mu.RUnlock()
			if time.Since(lastRecv) > pingTimeout {
				t.teardown(ErrKeepaliveTimeout)
				return ErrKeepaliveTimeout
			}
			// Only ping when nothing else went out this window.
			if time.Since(lastSend) < pingInterval {
				continue
			}
			ping := wire.Ping{Timestamp: uint64(time.Now().Unix())}
			if err := t.writeFrame(wire.TagPing, ping.Marshal()); err != nil {
				t.teardown(err)
				return err
			}

		case err := <-readErrCh:
			if err != nil {
				t.teardown(err)
				return err
			}
			return nil
		}
	}
}

// readLoop only performs the blocking I/O of reading framed control
// messages; it never calls the dispatcher or a listener directly, so
// those calls stay confined to the Run goroutine.
func (t *Transport) readLoop(errCh chan<- error) {
	t.mu.RLock()
	conn := t.conn
	inboundCh := t.inboundCh
	done := t.done
	t.mu.RUnlock()

	var preambleBuf [wire.PreambleSize]byte
	for {
		if _, err := io.ReadFull(conn, preambleBuf[:]); err != nil {
			errCh <- err
			return
		}
		preamble, err := wire.DecodePreamble(preambleBuf[:])
		if err != nil {
			errCh <- err
			return
		}

		payload := make([]byte, preamble.Length)
		if preamble.Length > 0 {
			if _, err := io.ReadFull(conn, payload); err != nil {
				errCh <- err
				return
			}
		}

		select {
		case inboundCh <- inboundFrame{tag: preamble.Type, payload: payload}:
		case <-done:
			return
		}
	}
}

func (t *Transport) handleInbound(tag wire.Tag, payload []byte, udpAudio bool) error {
	if udpAudio {
		t.deliverAudio(payload)
		return nil
	}

	switch tag {
	case wire.TagPing:
		t.mu.Lock()
		t.lastPingRecv = time.Now()
		t.mu.Unlock()
		return nil

	case wire.TagReject:
		rj, err := wire.UnmarshalReject(payload)
		if err != nil {
			t.log.WithError(err).Warn("transport: malformed Reject, discarding")
			return nil
		}
		return fmt.Errorf("%w: %s", ErrRejected, rj.Reason)

	case wire.TagUDPTunnel:
		t.deliverAudio(payload)
		return nil

	default:
		err := t.dispatcher.Dispatch(tag, payload)
		var violation *dispatch.ErrProtocolViolation
		if errors.As(err, &violation) {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		if tag == wire.TagServerSync {
			t.setState(Connected)
		}
		return nil
	}
}

// deliverAudio decodes one inbound audio packet through the pipeline
// and fans it out to Listeners.Audio/UnsupportedAudio. Inbound
// packets always carry the sender's session id as a leading varint.
// Only ever called from within handleInbound on the Run goroutine.
func (t *Transport) deliverAudio(payload []byte) {
	if t.pipeline == nil {
		return
	}
	frame, unsupported, err := t.pipeline.HandleInbound(payload, 0, true)
	if err != nil {
		t.log.WithError(err).Warn("transport: malformed audio packet, discarding")
		return
	}
	if frame != nil && t.listeners != nil {
		t.listeners.Audio(frame.Target, frame.Session, frame.Sequence, frame.IsLast, frame.PCM)
	}
	if unsupported != nil && t.listeners != nil {
		t.listeners.UnsupportedAudio(unsupported.Target, unsupported.Session, unsupported.Sequence, unsupported.Payload)
	}
}

// Disconnect idempotently tears the connection down and wakes Run.
// cause is nil for a caller-requested disconnect.
func (t *Transport) Disconnect(cause error) {
	t.teardown(cause)
}

func (t *Transport) teardown(cause error) {
	t.mu.Lock()
	if t.state == NotConnected {
		t.mu.Unlock()
		return
	}
	t.state = Disconnecting
	conn := t.conn
	udp := t.udp
	done := t.done
	t.mu.Unlock()

	t.closeOnce.Do(func() {
		if conn != nil {
			conn.Close()
		}
		if udp != nil {
			udp.close()
		}
		if done != nil {
			close(done)
		}
	})

	t.setState(NotConnected)

	if t.listeners != nil {
		if errors.Is(cause, context.Canceled) {
			cause = nil
		}
		t.listeners.Disconnected(cause)
	}
}

// AttachUDP enables the unreliable datagram channel for audio, keyed
// by cipher. It starts a background goroutine delivering inbound
// datagrams the same way handleInbound delivers UDPTunnel frames.
func (t *Transport) AttachUDP(addr string, cipher audio.DatagramCipher) error {
	u, err := dialUDP(addr, cipher)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.udp = u
	t.mu.Unlock()

	go t.udpReadLoop(u)
	return nil
}

// udpReadLoop only performs the blocking datagram read and cipher
// open; the decoded plaintext is handed to Run's select loop via
// inboundCh so pipeline decoding and Listeners.Audio stay on the run
// goroutine, matching readLoop's split.
func (t *Transport) udpReadLoop(u *udpChannel) {
	t.mu.RLock()
	inboundCh := t.inboundCh
	done := t.done
	t.mu.RUnlock()

	buf := make([]byte, 4096)
	for {
		select {
		case <-u.stop:
			return
		default:
		}

		_, plaintext, err := u.recv(buf)
		if err != nil {
			select {
			case <-u.stop:
				return
			default:
				t.log.WithError(err).Warn("transport: udp read failed, dropping")
				continue
			}
		}

		select {
		case inboundCh <- inboundFrame{payload: plaintext, udpAudio: true}:
		case <-done:
			return
		case <-u.stop:
			return
		}
	}
}
