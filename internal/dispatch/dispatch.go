// Package dispatch implements the control-message dispatcher: a
// decoder from (tag, byte-slice) to state mutations plus embedder
// callbacks. It is deliberately ignorant of the transport; callers
// feed it raw payloads as they arrive off the wire.
package dispatch

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gomumble/engine/internal/statestore"
	"github.com/gomumble/engine/internal/wire"
)

// ErrProtocolViolation wraps an unknown tag, which must tear down the
// session rather than be logged and discarded like a per-message
// decode error.
type ErrProtocolViolation struct {
	Tag wire.Tag
}

func (e *ErrProtocolViolation) Error() string {
	return fmt.Sprintf("dispatch: unknown message tag %d", uint16(e.Tag))
}

// Dispatcher decodes inbound control messages, mutates a Store, and
// fans out to a Listeners. One Dispatcher is bound to one Store and
// one Listeners for the life of a session.
type Dispatcher struct {
	store     *statestore.Store
	listeners Listeners
	log       *logrus.Entry
}

// New constructs a Dispatcher over store, notifying listeners.
func New(store *statestore.Store, listeners Listeners, log *logrus.Entry) *Dispatcher {
	if listeners == nil {
		listeners = NopListener{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{store: store, listeners: listeners, log: log}
}

// Dispatch decodes and applies one control message. A decode error is
// logged and swallowed; an unknown tag returns *ErrProtocolViolation
// so the caller (the transport) can tear the session down.
func (d *Dispatcher) Dispatch(tag wire.Tag, payload []byte) error {
	if wire.UnimplementedTags[tag] {
		d.log.WithField("tag", tag.String()).Warn("dispatch: tag recognized but not implemented, ignoring")
		return nil
	}

	switch tag {
	case wire.TagVersion:
		return d.dispatchVersion(payload)
	case wire.TagServerSync:
		return d.dispatchServerSync(payload)
	case wire.TagChannelState:
		return d.dispatchChannelState(payload)
	case wire.TagChannelRemove:
		return d.dispatchChannelRemove(payload)
	case wire.TagUserState:
		return d.dispatchUserState(payload)
	case wire.TagUserRemove:
		return d.dispatchUserRemove(payload)
	case wire.TagServerConfig:
		return d.dispatchServerConfig(payload)
	case wire.TagCodecVersion:
		return d.dispatchCodecVersion(payload)
	case wire.TagPermissionQuery:
		return d.dispatchPermissionQuery(payload)
	case wire.TagTextMessage:
		return d.dispatchTextMessage(payload)
	case wire.TagBanList:
		return d.dispatchBanList(payload)
	case wire.TagUserStats:
		return d.dispatchUserStats(payload)

	// Ping/Authenticate/Reject/UDPTunnel are handled by the transport
	// layer itself, never routed here.
	case wire.TagPing, wire.TagAuthenticate, wire.TagReject, wire.TagUDPTunnel:
		return nil

	default:
		if !wire.KnownTag(tag) {
			return &ErrProtocolViolation{Tag: tag}
		}
		// A known-but-unhandled tag we forgot to route: treat it like
		// an unimplemented one rather than silently dropping it.
		d.log.WithField("tag", tag.String()).Warn("dispatch: tag known but unrouted, ignoring")
		return nil
	}
}

func (d *Dispatcher) decodeError(tag wire.Tag, err error) error {
	d.log.WithField("tag", tag.String()).WithError(err).Warn("dispatch: decode error, discarding message")
	return nil
}

func (d *Dispatcher) dispatchVersion(payload []byte) error {
	v, err := wire.UnmarshalVersion(payload)
	if err != nil {
		return d.decodeError(wire.TagVersion, err)
	}
	major := uint8(v.Version >> 16)
	minor := uint8(v.Version >> 8)
	patch := uint8(v.Version)
	d.listeners.Version(major, minor, patch, v.Release, v.OS, v.OSVersion)
	return nil
}

func (d *Dispatcher) dispatchServerSync(payload []byte) error {
	s, err := wire.UnmarshalServerSync(payload)
	if err != nil {
		return d.decodeError(wire.TagServerSync, err)
	}

	d.store.SetMySession(s.Session)
	d.store.SetWelcomeText(s.WelcomeText)

	d.listeners.ServerSync(s.WelcomeText, s.Session, s.MaxBandwidth, s.Permissions)
	return nil
}

func (d *Dispatcher) dispatchChannelState(payload []byte) error {
	c, err := wire.UnmarshalChannelState(payload)
	if err != nil {
		return d.decodeError(wire.TagChannelState, err)
	}

	if c.ChannelID >= 0 {
		d.store.ChannelEmplace(statestore.Channel{
			ID:          uint32(c.ChannelID),
			Name:        c.Name,
			Description: c.Description,
		})
	}

	d.listeners.ChannelState(c.Name, c.ChannelID, c.Parent, c.Description, c.Links, c.LinksAdd, c.LinksRemove, c.Temporary, c.Position)
	return nil
}

func (d *Dispatcher) dispatchChannelRemove(payload []byte) error {
	c, err := wire.UnmarshalChannelRemove(payload)
	if err != nil {
		return d.decodeError(wire.TagChannelRemove, err)
	}

	d.store.ChannelErase(c.ChannelID)
	d.listeners.ChannelRemove(c.ChannelID)
	return nil
}

func (d *Dispatcher) dispatchUserState(payload []byte) error {
	u, err := wire.UnmarshalUserState(payload)
	if err != nil {
		return d.decodeError(wire.TagUserState, err)
	}

	if u.Session >= 0 {
		session := uint32(u.Session)
		if session == d.store.MySession() && u.HasChannelID {
			d.store.SetCurrentChannel(uint32(u.ChannelID))
		}
		d.store.UserUpdate(session, u.Actor, u.Name, u.HasName, u.UserID, u.ChannelID, u.HasChannelID)
	}

	d.listeners.UserState(u.Session, u.Actor, u.Name, u.UserID, u.ChannelID, u.Mute, u.Deaf, u.Suppress, u.SelfMute, u.SelfDeaf, u.Comment, u.PrioritySpeaker, u.Recording)
	return nil
}

func (d *Dispatcher) dispatchUserRemove(payload []byte) error {
	u, err := wire.UnmarshalUserRemove(payload)
	if err != nil {
		return d.decodeError(wire.TagUserRemove, err)
	}

	d.store.UserErase(u.Session)
	d.listeners.UserRemove(u.Session, u.Actor, u.Reason, u.Ban)
	return nil
}

func (d *Dispatcher) dispatchServerConfig(payload []byte) error {
	s, err := wire.UnmarshalServerConfig(payload)
	if err != nil {
		return d.decodeError(wire.TagServerConfig, err)
	}

	d.store.SetServerSnapshot(statestore.ServerSnapshot{
		MaxBandwidth:       s.MaxBandwidth,
		AllowHTML:          s.AllowHTML,
		MessageLength:      s.MessageLength,
		ImageMessageLength: s.ImageMessageLength,
		WelcomeText:        s.WelcomeText,
	})

	d.listeners.ServerConfig(s.MaxBandwidth, s.WelcomeText, s.AllowHTML, s.MessageLength, s.ImageMessageLength)
	return nil
}

func (d *Dispatcher) dispatchCodecVersion(payload []byte) error {
	c, err := wire.UnmarshalCodecVersion(payload)
	if err != nil {
		return d.decodeError(wire.TagCodecVersion, err)
	}
	d.listeners.CodecVersion(c.Alpha, c.Beta, c.PreferAlpha, c.Opus)
	return nil
}

func (d *Dispatcher) dispatchPermissionQuery(payload []byte) error {
	p, err := wire.UnmarshalPermissionQuery(payload)
	if err != nil {
		return d.decodeError(wire.TagPermissionQuery, err)
	}
	d.listeners.PermissionQuery(p.ChannelID, p.Permissions, p.Flush)
	return nil
}

func (d *Dispatcher) dispatchTextMessage(payload []byte) error {
	t, err := wire.UnmarshalTextMessage(payload)
	if err != nil {
		return d.decodeError(wire.TagTextMessage, err)
	}
	d.listeners.TextMessage(t.Actor, t.Session, t.ChannelID, t.TreeID, t.Message)
	return nil
}

func (d *Dispatcher) dispatchBanList(payload []byte) error {
	b, err := wire.UnmarshalBanList(payload)
	if err != nil {
		return d.decodeError(wire.TagBanList, err)
	}
	for _, e := range b.Entries {
		d.listeners.BanList(e.Address, e.Mask, e.Name, e.Hash, e.Reason, e.Start, e.Duration)
	}
	return nil
}

func (d *Dispatcher) dispatchUserStats(payload []byte) error {
	u, err := wire.UnmarshalUserStats(payload)
	if err != nil {
		return d.decodeError(wire.TagUserStats, err)
	}
	d.listeners.UserStats(u.Session, u.OnlineSecs, u.IdleSecs)
	return nil
}
