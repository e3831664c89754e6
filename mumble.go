// Package mumble is a client engine for the Mumble voice-chat
// protocol. A Session owns exactly one transport, one state store,
// one audio pipeline, and one voice-target table; an embedder
// supplies a Config and a Listeners to observe server state and
// incoming audio.
package mumble

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gomumble/engine/internal/audio"
	"github.com/gomumble/engine/internal/dispatch"
	"github.com/gomumble/engine/internal/statestore"
	"github.com/gomumble/engine/internal/transport"
	"github.com/gomumble/engine/internal/voicetarget"
	"github.com/gomumble/engine/internal/wire"
)

// State mirrors the transport's connection-state machine.
type State = transport.State

const (
	NotConnected  = transport.NotConnected
	InProgress    = transport.InProgress
	Connected     = transport.Connected
	Disconnecting = transport.Disconnecting
)

// VoiceTargetKind selects whether a VoicetargetSet entry names a
// channel or a user.
type VoiceTargetKind = voicetarget.Kind

const (
	VoiceTargetChannel = voicetarget.KindChannel
	VoiceTargetUser    = voicetarget.KindUser
)

// Session is the root object of the engine: the live connection to a
// Mumble server and every piece of state derived from it.
type Session struct {
	cfg Config

	store     *statestore.Store
	pipeline  *audio.Pipeline
	transport *transport.Transport
	targets   *voicetarget.Table
	listeners Listeners
	log       *logrus.Entry
}

// New constructs a Session. listeners may be nil, in which case every
// callback is a no-op (NopListener).
func New(cfg Config, listeners Listeners) (*Session, error) {
	cfg = cfg.withDefaults()
	if listeners == nil {
		listeners = NopListener{}
	}

	log := logrus.NewEntry(logrus.StandardLogger())
	store := statestore.New()
	disp := dispatch.New(store, listeners, log)

	pipeline, err := audio.NewPipeline(cfg.OpusBitrate, 64, store)
	if err != nil {
		return nil, fmt.Errorf("mumble: constructing audio pipeline: %w", err)
	}

	tr := transport.New(disp, pipeline, listeners, log)

	return &Session{
		cfg:       cfg,
		store:     store,
		pipeline:  pipeline,
		transport: tr,
		targets:   voicetarget.New(!cfg.VoiceTargetAccumulate),
		listeners: listeners,
		log:       log,
	}, nil
}

// TransportGetState returns the current connection state.
func (s *Session) TransportGetState() State {
	return s.transport.GetState()
}

// TransportConnect dials host:port over TLS and sends the
// Version/Authenticate handshake. It fails with ErrAlreadyConnected
// if a connection is already CONNECTED, IN_PROGRESS, or
// DISCONNECTING. Every state-store table is empty before this call
// dials.
func (s *Session) TransportConnect(ctx context.Context, host string, port int) error {
	if s.transport.GetState() != NotConnected {
		return ErrAlreadyConnected
	}

	s.store.Clear()
	s.targets.Clear()

	tlsConfig, err := s.cfg.tlsConfig()
	if err != nil {
		return fmt.Errorf("mumble: tls config: %w", err)
	}
	tlsConfig = tlsConfig.Clone()
	tlsConfig.ServerName = host

	addr := fmt.Sprintf("%s:%d", host, port)
	auth := transport.AuthInfo{
		Username:         s.cfg.Username,
		Password:         s.cfg.Password,
		Tokens:           s.cfg.Tokens,
		VersionRelease:   s.cfg.VersionRelease,
		VersionOS:        s.cfg.VersionOS,
		VersionOSVersion: s.cfg.VersionOSVersion,
	}
	return s.transport.Connect(ctx, addr, tlsConfig, auth)
}

// TransportRun drives the I/O loop until disconnect. It blocks the
// calling goroutine; every Listeners callback is delivered on this
// goroutine, except the Disconnected callback raised by
// TransportDisconnect, which runs on TransportDisconnect's caller. The
// state store and voice-target table are cleared on
// return, so a subsequent connect starts from empty tables.
func (s *Session) TransportRun(ctx context.Context) error {
	err := s.transport.Run(ctx)
	s.store.Clear()
	s.targets.Clear()
	return err
}

// TransportDisconnect idempotently tears the connection down, waking
// the run loop. cause is reported to Listeners.Disconnected; pass nil
// for a caller-requested disconnect.
func (s *Session) TransportDisconnect(cause error) {
	s.transport.Disconnect(cause)
}

// TransportSetCert and TransportSetKey update the client-certificate
// material used by the next TransportConnect. They fail if a
// connection is already in progress.
func (s *Session) TransportSetCert(cert []byte) error {
	if s.transport.GetState() != NotConnected {
		return ErrAlreadyConnected
	}
	s.cfg.Cert = cert
	return nil
}

func (s *Session) TransportSetKey(key []byte) error {
	if s.transport.GetState() != NotConnected {
		return ErrAlreadyConnected
	}
	s.cfg.Key = key
	return nil
}

// AttachUDP enables the unreliable datagram channel for audio at
// addr, keyed by cipher. Until this is called (or if the channel
// fails), audio rides the control stream as UDPTunnel frames.
func (s *Session) AttachUDP(addr string, cipher audio.DatagramCipher) error {
	return s.transport.AttachUDP(addr, cipher)
}

// --- Audio ---

// AudioSend encodes pcm through Opus and ships it to target. A
// nil/empty pcm buffer is a no-op. isLast marks the final frame of a
// talk burst; the next burst restarts at sequence zero.
func (s *Session) AudioSend(pcm []int16, target byte, isLast bool) error {
	if len(pcm) == 0 {
		return nil
	}
	if target > audio.MaxTarget {
		return ErrInvalidAudio
	}
	return s.pipeline.Send(s.transport, pcm, target, isLast)
}

// --- Channels ---

func (s *Session) ChannelGetCurrent() uint32            { return s.store.ChannelGetCurrent() }
func (s *Session) ChannelGetList() []statestore.Channel { return s.store.ChannelGetList() }
func (s *Session) ChannelExists(id uint32) bool         { return s.store.ChannelExists(id) }
func (s *Session) ChannelFind(name string) int64        { return s.store.ChannelFind(name) }

// ChannelJoin requests a channel move for the local session. It
// returns false for a channel id never seen from the server, without
// sending anything. The move only takes effect when the server echoes
// back a UserState for my_session_id; a true return means the request
// was queued, not that the move happened.
func (s *Session) ChannelJoin(channelID uint32) bool {
	msg, ok := s.store.ChannelJoin(channelID)
	if !ok {
		return false
	}
	return s.transport.Enqueue(wire.TagUserState, msg.Marshal())
}

// --- Users ---

func (s *Session) UserGet(session uint32) (statestore.User, bool) { return s.store.UserGet(session) }
func (s *Session) UserGetList() []statestore.User                 { return s.store.UserGetList() }
func (s *Session) UserGetInChannel(channelID int32) []statestore.User {
	return s.store.UserGetInChannel(channelID)
}
func (s *Session) UserExists(userID int32) bool  { return s.store.UserExists(userID) }
func (s *Session) UserMuted(session uint32) bool { return s.store.UserMuted(session) }
func (s *Session) UserFind(name string) int64    { return s.store.UserFind(name) }
func (s *Session) UserMute(session uint32, mute bool) bool {
	return s.store.UserMute(session, mute)
}

// UserSendState sends a comment update for the local session. Comments
// of 128 bytes or more are sent as a SHA-1 comment_hash instead of the
// literal text.
func (s *Session) UserSendState(comment string) bool {
	msg := s.store.UserSendState(statestore.UserStateComment, comment)
	return s.transport.Enqueue(wire.TagUserState, msg.Marshal())
}

// RequestUserStats asks the server for bandwidth/connection stats
// about session.
func (s *Session) RequestUserStats(session uint32) bool {
	stats := wire.UserStats{Session: session}
	return s.transport.Enqueue(wire.TagUserStats, stats.Marshal())
}

// --- Text ---

// TextSend sends message to the given channels, tagged with the
// local session as actor.
func (s *Session) TextSend(message string, channelIDs []uint32) bool {
	t := wire.TextMessage{
		Actor:     s.store.MySession(),
		ChannelID: channelIDs,
		Message:   message,
	}
	return s.transport.Enqueue(wire.TagTextMessage, t.Marshal())
}

// --- Voice targets ---

// VoicetargetSet configures routing entry idOrName (a numeric session
// or channel id, or a name resolved through the state store) at
// targetID, and sends the resulting table to the server.
func (s *Session) VoicetargetSet(targetID int32, kind VoiceTargetKind, idOrName string) error {
	vt, err := s.targets.Set(s.store, targetID, kind, idOrName)
	if err != nil {
		return err
	}
	s.transport.Enqueue(wire.TagVoiceTarget, vt.Marshal())
	return nil
}

// --- ACL ---

// AclSetTokens updates the access tokens presented to the server,
// resent via a follow-up Authenticate carrying only the new tokens
// (the protocol accepts a second Authenticate mid-session for this
// purpose).
func (s *Session) AclSetTokens(tokens []string) bool {
	s.cfg.Tokens = tokens
	auth := wire.Authenticate{Tokens: tokens, Opus: true}
	return s.transport.Enqueue(wire.TagAuthenticate, auth.Marshal())
}
