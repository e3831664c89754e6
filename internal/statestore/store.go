// Package statestore holds the in-memory replica of server state: the
// channel list, the user map, and the self-session fields.
package statestore

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/gomumble/engine/internal/wire"
)

// CommentHashThreshold is the comment length (in bytes) at or above
// which UserSendState sends a comment_hash instead of the literal
// text.
const CommentHashThreshold = 128

// Channel is the client's view of a server channel.
type Channel struct {
	ID          uint32
	Name        string
	Description string
}

// User is the client's view of another (or its own) session.
type User struct {
	SessionID uint32
	UserID    int32
	ChannelID int32
	Name      string
	LocalMute bool
}

// ServerSnapshot is the server configuration broadcast via
// ServerConfig.
type ServerSnapshot struct {
	MaxBandwidth       uint32
	AllowHTML          uint32
	MessageLength      uint32
	ImageMessageLength uint32
	WelcomeText        string
}

// Store is the mutex-protected table set. Mutating methods are
// normally only called from the dispatcher running on the transport
// goroutine, but the read-only queries are thread-safe, so the mutex
// guards every access.
type Store struct {
	mu sync.RWMutex

	channels map[uint32]Channel
	users    map[uint32]User

	mySessionID      uint32
	currentChannelID uint32
	server           ServerSnapshot
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	s.generalClear()
	return s
}

// generalClear empties every table; called on connect and disconnect.
func (s *Store) generalClear() {
	s.channels = make(map[uint32]Channel)
	s.users = make(map[uint32]User)
	s.mySessionID = 0
	s.currentChannelID = 0
	s.server = ServerSnapshot{}
}

// Clear is the exported form of generalClear, invoked by the session
// façade on disconnect and before a new connect attempt.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generalClear()
}

// --- Channel operations ---

// channelEmplace inserts a channel if its id is unknown; an existing
// channel is left untouched.
func (s *Store) channelEmplace(ch Channel) (inserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[ch.ID]; ok {
		return false
	}
	s.channels[ch.ID] = ch
	return true
}

// ChannelEmplace is the exported entry point the dispatcher calls for
// a ChannelState message.
func (s *Store) ChannelEmplace(ch Channel) bool { return s.channelEmplace(ch) }

// channelErase removes a channel by id if present.
func (s *Store) channelErase(id uint32) (removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[id]; !ok {
		return false
	}
	delete(s.channels, id)
	return true
}

// ChannelErase is the exported entry point for ChannelRemove.
func (s *Store) ChannelErase(id uint32) bool { return s.channelErase(id) }

// channelSet updates the self-session's current channel, called when
// a UserState update for my_session_id carries a channel_id.
func (s *Store) channelSet(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentChannelID = id
}

// SetCurrentChannel updates the self-session's current channel. The
// dispatcher calls this before UserUpdate when a UserState message is
// for my_session_id and carries a channel_id.
func (s *Store) SetCurrentChannel(id uint32) { s.channelSet(id) }

// ChannelGetCurrent returns the channel id of my_session_id.
func (s *Store) ChannelGetCurrent() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentChannelID
}

// ChannelGetList returns a snapshot of every known channel.
func (s *Store) ChannelGetList() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// ChannelExists reports whether channel_id is known.
func (s *Store) ChannelExists(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[id]
	return ok
}

// ChannelFind resolves a channel name to its id, or -1 if unknown.
func (s *Store) ChannelFind(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.channels {
		if ch.Name == name {
			return int64(ch.ID)
		}
	}
	return -1
}

// ChannelJoin builds the UserState message that requests a channel
// move for the local session. A channel id never seen from the server
// is rejected with ok=false and nothing is built. The actual channel
// change only takes effect when the server echoes a UserState for
// my_session_id.
func (s *Store) ChannelJoin(channelID uint32) (msg wire.UserState, ok bool) {
	s.mu.RLock()
	_, known := s.channels[channelID]
	my := s.mySessionID
	s.mu.RUnlock()

	if !known {
		return wire.UserState{}, false
	}

	return wire.UserState{
		Session:      int32(my),
		Actor:        -1,
		UserID:       -1,
		ChannelID:    int32(channelID),
		HasChannelID: true,
		Mute:         -1, Deaf: -1, Suppress: -1, SelfMute: -1, SelfDeaf: -1,
		PrioritySpeaker: -1, Recording: -1,
	}, true
}

// --- User operations ---

// userUpdate upserts a user: local_mute and a previously-observed
// non-empty name both survive an update that omits them.
func (s *Store) userUpdate(session uint32, actor int32, name string, hasName bool, userID int32, channelID int32, hasChannelID bool) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, had := s.users[session]

	u := User{
		SessionID: session,
		UserID:    userID,
		ChannelID: channelID,
	}
	if had {
		u.LocalMute = existing.LocalMute
		u.Name = existing.Name
		if !hasChannelID {
			u.ChannelID = existing.ChannelID
		}
		if userID < 0 {
			u.UserID = existing.UserID
		}
	}
	if hasName && name != "" {
		u.Name = name
	}

	s.users[session] = u
	return u
}

// UserUpdate is the exported entry point the dispatcher calls for a
// UserState message.
func (s *Store) UserUpdate(session uint32, actor int32, name string, hasName bool, userID int32, channelID int32, hasChannelID bool) User {
	return s.userUpdate(session, actor, name, hasName, userID, channelID, hasChannelID)
}

// userErase removes a user by session id if present.
func (s *Store) userErase(session uint32) (removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[session]; !ok {
		return false
	}
	delete(s.users, session)
	return true
}

// UserErase is the exported entry point for UserRemove.
func (s *Store) UserErase(session uint32) bool { return s.userErase(session) }

// UserGet returns the user for session, if known.
func (s *Store) UserGet(session uint32) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[session]
	return u, ok
}

// UserGetList returns a snapshot of every known user.
func (s *Store) UserGetList() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out
}

// UserGetInChannel returns every known user whose channel_id matches.
func (s *Store) UserGetInChannel(channelID int32) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []User
	for _, u := range s.users {
		if u.ChannelID == channelID {
			out = append(out, u)
		}
	}
	return out
}

// UserExists reports whether any known user has the given persistent
// user_id (not session id).
func (s *Store) UserExists(userID int32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.UserID == userID {
			return true
		}
	}
	return false
}

// UserMuted reports the local_mute flag for a session. Unknown
// sessions are reported as not muted.
func (s *Store) UserMuted(session uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[session].LocalMute
}

// UserFind resolves a user name to its session id, or -1 if unknown.
func (s *Store) UserFind(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Name == name {
			return int64(u.SessionID)
		}
	}
	return -1
}

// UserMute sets the client-local mute flag for a session. This is
// purely local bookkeeping and is never echoed to the server.
func (s *Store) UserMute(session uint32, mute bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[session]
	if !ok {
		return false
	}
	u.LocalMute = mute
	s.users[session] = u
	return true
}

// --- Self-session / server snapshot ---

// SetMySession records my_session_id on ServerSync.
func (s *Store) SetMySession(session uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mySessionID = session
}

// MySession returns my_session_id (0 before ServerSync).
func (s *Store) MySession() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mySessionID
}

// SetServerSnapshot overwrites the server configuration snapshot.
func (s *Store) SetServerSnapshot(snap ServerSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = snap
}

// SetWelcomeText updates just the welcome text, as ServerSync does.
func (s *Store) SetWelcomeText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server.WelcomeText = text
}

// ServerSnapshotView returns the current server configuration.
func (s *Store) ServerSnapshotView() ServerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

// UserSendState builds a single-field UserState message for the local
// session. Comments of CommentHashThreshold bytes or more are sent as
// a SHA-1 comment_hash instead of the literal text.
func (s *Store) UserSendState(field UserStateField, comment string) wire.UserState {
	s.mu.RLock()
	my := s.mySessionID
	s.mu.RUnlock()

	u := wire.UserState{
		Session: int32(my), Actor: -1, UserID: -1, ChannelID: -1,
		Mute: -1, Deaf: -1, Suppress: -1, SelfMute: -1, SelfDeaf: -1,
		PrioritySpeaker: -1, Recording: -1,
	}

	if field == UserStateComment {
		if len(comment) >= CommentHashThreshold {
			sum := sha1.Sum([]byte(comment))
			u.CommentHash = sum[:]
		} else {
			u.Comment = comment
			u.HasComment = true
		}
	}
	return u
}

// UserStateField names the single field UserSendState sets.
type UserStateField int

const (
	UserStateComment UserStateField = iota
)

// CommentHashHex is a small helper exposed for tests/embedders that
// need to verify a comment_hash independently.
func CommentHashHex(comment string) string {
	sum := sha1.Sum([]byte(comment))
	return hex.EncodeToString(sum[:])
}
