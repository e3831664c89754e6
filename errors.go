package mumble

import (
	"errors"

	"github.com/gomumble/engine/internal/transport"
	"github.com/gomumble/engine/internal/voicetarget"
)

// Sentinel errors returned by the session façade. The connection and
// name-resolution errors are defined once in their owning internal
// packages and re-exported here, the way Listeners is aliased rather
// than redefined.
var (
	ErrAlreadyConnected  = transport.ErrAlreadyConnected
	ErrNotConnected      = transport.ErrNotConnected
	ErrUnknownChannel    = voicetarget.ErrUnknownChannel
	ErrUnknownUser       = voicetarget.ErrUnknownUser
	ErrInvalidAudio      = errors.New("mumble: invalid audio buffer")
	ErrProtocolViolation = transport.ErrProtocolViolation
)
