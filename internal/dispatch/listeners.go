package dispatch

// Listeners is the embedder-supplied observer: one method per
// dispatched control-message tag plus the two audio callbacks.
//
// Callback arguments are owned by the engine for the duration of the
// call only; implementations that need to retain a PCM buffer or
// string past the call must copy it.
type Listeners interface {
	Version(major, minor, patch uint8, release, os, osVersion string)

	Audio(target byte, sessionID uint32, sequence int64, isLast bool, pcm []int16)
	UnsupportedAudio(target byte, sessionID uint32, sequence int64, encoded []byte)

	ServerSync(welcomeText string, session uint32, maxBandwidth int32, permissions int64)

	ChannelRemove(channelID uint32)
	ChannelState(name string, channelID, parent int32, description string, links, linksAdd, linksRemove []uint32, temporary bool, position int32)

	UserRemove(session uint32, actor int32, reason string, ban bool)
	UserState(session, actor int32, name string, userID, channelID, mute, deaf, suppress, selfMute, selfDeaf int32, comment string, prioritySpeaker, recording int32)

	BanList(address []byte, mask uint32, name, hash, reason, start string, duration int32)

	TextMessage(actor uint32, session, channelID, treeID []uint32, message string)

	PermissionDenied(permission, channelID, session int32, reason string, denyType int32, name string)

	QueryUsers(ids []uint32, names []string)

	ContextActionModify(action, text string, context uint32, operation uint32)
	ContextAction(session, channelID int32, action string)

	UserList(userID uint32, name, lastSeen string, lastChannel int32)

	PermissionQuery(channelID int32, permissions uint32, flush bool)

	CodecVersion(alpha, beta int32, preferAlpha bool, opus int32)

	ServerConfig(maxBandwidth uint32, welcomeText string, allowHTML uint32, messageLength, imageMessageLength uint32)

	SuggestConfig(version uint32, positional, pushToTalk bool)

	UserStats(sessionID, onlineSecs, idleSecs uint32)

	// Disconnected reports the protocol or transport fault that tore
	// down the session. cause is nil on a clean, caller-requested
	// disconnect.
	Disconnected(cause error)
}

// NopListener implements Listeners with every method a no-op.
// Embedders embed it in their own listener struct and override only
// the methods they need.
type NopListener struct{}

func (NopListener) Version(major, minor, patch uint8, release, os, osVersion string) {}
func (NopListener) Audio(target byte, sessionID uint32, sequence int64, isLast bool, pcm []int16) {}
func (NopListener) UnsupportedAudio(target byte, sessionID uint32, sequence int64, encoded []byte) {
}
func (NopListener) ServerSync(welcomeText string, session uint32, maxBandwidth int32, permissions int64) {
}
func (NopListener) ChannelRemove(channelID uint32) {}
func (NopListener) ChannelState(name string, channelID, parent int32, description string, links, linksAdd, linksRemove []uint32, temporary bool, position int32) {
}
func (NopListener) UserRemove(session uint32, actor int32, reason string, ban bool) {}
func (NopListener) UserState(session, actor int32, name string, userID, channelID, mute, deaf, suppress, selfMute, selfDeaf int32, comment string, prioritySpeaker, recording int32) {
}
func (NopListener) BanList(address []byte, mask uint32, name, hash, reason, start string, duration int32) {
}
func (NopListener) TextMessage(actor uint32, session, channelID, treeID []uint32, message string) {}
func (NopListener) PermissionDenied(permission, channelID, session int32, reason string, denyType int32, name string) {
}
func (NopListener) QueryUsers(ids []uint32, names []string)                             {}
func (NopListener) ContextActionModify(action, text string, context uint32, operation uint32) {}
func (NopListener) ContextAction(session, channelID int32, action string)               {}
func (NopListener) UserList(userID uint32, name, lastSeen string, lastChannel int32)    {}
func (NopListener) PermissionQuery(channelID int32, permissions uint32, flush bool)     {}
func (NopListener) CodecVersion(alpha, beta int32, preferAlpha bool, opus int32)        {}
func (NopListener) ServerConfig(maxBandwidth uint32, welcomeText string, allowHTML uint32, messageLength, imageMessageLength uint32) {
}
func (NopListener) SuggestConfig(version uint32, positional, pushToTalk bool)  {}
func (NopListener) UserStats(sessionID, onlineSecs, idleSecs uint32)           {}
func (NopListener) Disconnected(cause error)                                  {}
