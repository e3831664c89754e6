package wire

// Tag identifies the kind of a control-channel message. Values match
// the wire numbering of the standard Mumble control protocol so that
// this engine interoperates with any compliant server.
type Tag uint16

const (
	TagVersion Tag = iota
	TagUDPTunnel
	TagAuthenticate
	TagPing
	TagReject
	TagServerSync
	TagChannelRemove
	TagChannelState
	TagUserRemove
	TagUserState
	TagBanList
	TagTextMessage
	TagPermissionDenied
	TagACL
	TagQueryUsers
	TagCryptSetup
	TagContextActionModify
	TagContextAction
	TagUserList
	TagVoiceTarget
	TagPermissionQuery
	TagCodecVersion
	TagUserStats
	TagRequestBlob
	TagServerConfig
	TagSuggestConfig
)

// String implements fmt.Stringer for log messages.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "Unknown"
}

var tagNames = map[Tag]string{
	TagVersion:             "Version",
	TagUDPTunnel:           "UDPTunnel",
	TagAuthenticate:        "Authenticate",
	TagPing:                "Ping",
	TagReject:              "Reject",
	TagServerSync:          "ServerSync",
	TagChannelRemove:       "ChannelRemove",
	TagChannelState:        "ChannelState",
	TagUserRemove:          "UserRemove",
	TagUserState:           "UserState",
	TagBanList:             "BanList",
	TagTextMessage:         "TextMessage",
	TagPermissionDenied:    "PermissionDenied",
	TagACL:                 "ACL",
	TagQueryUsers:          "QueryUsers",
	TagCryptSetup:          "CryptSetup",
	TagContextActionModify: "ContextActionModify",
	TagContextAction:       "ContextAction",
	TagUserList:            "UserList",
	TagVoiceTarget:         "VoiceTarget",
	TagPermissionQuery:     "PermissionQuery",
	TagCodecVersion:        "CodecVersion",
	TagUserStats:           "UserStats",
	TagRequestBlob:         "RequestBlob",
	TagServerConfig:        "ServerConfig",
	TagSuggestConfig:       "SuggestConfig",
}

// KnownTag reports whether t is one of the 26 tags this protocol
// version defines. An unknown tag is a protocol violation.
func KnownTag(t Tag) bool {
	_, ok := tagNames[t]
	return ok
}

// UnimplementedTags are tags the dispatcher recognizes but does not
// act on beyond a warn-level log line.
var UnimplementedTags = map[Tag]bool{
	TagACL:                 true,
	TagQueryUsers:          true,
	TagCryptSetup:          true,
	TagContextActionModify: true,
	TagContextAction:       true,
	TagUserList:            true,
	TagVoiceTarget:         true,
	TagPermissionDenied:    true,
	TagRequestBlob:         true,
	TagSuggestConfig:       true,
}
