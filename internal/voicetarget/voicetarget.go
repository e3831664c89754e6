// Package voicetarget maintains the voice-target routing table and
// resolves names to ids through the state store before building the
// outbound wire.VoiceTarget message.
package voicetarget

import (
	"errors"
	"strconv"
	"sync"

	"github.com/gomumble/engine/internal/wire"
)

// Kind selects whether a target entry names a channel or a user.
type Kind int

const (
	KindChannel Kind = iota
	KindUser
)

// MinTargetID and MaxTargetID bound the valid target_id range;
// target 0 (current channel) and 31 (server loopback) are implicit
// and never stored here.
const (
	MinTargetID = 1
	MaxTargetID = 30
)

var (
	// ErrUnknownChannel is returned when a channel name does not
	// resolve to any known channel_id.
	ErrUnknownChannel = errors.New("voicetarget: unknown channel name")
	// ErrUnknownUser is returned when a user name does not resolve to
	// any known session_id.
	ErrUnknownUser = errors.New("voicetarget: unknown user name")
	// ErrInvalidTargetID is returned for a target_id outside 1..30.
	ErrInvalidTargetID = errors.New("voicetarget: target_id must be in 1..30")
)

// Resolver is the narrow state-store surface this package depends on,
// avoiding a cyclic import with internal/statestore.
type Resolver interface {
	ChannelFind(name string) int64
	UserFind(name string) int64
}

// Table is the per-session voice-target table: one set of routing
// entries per target_id, retained so the full table can be resent
// after a reconnect.
type Table struct {
	mu         sync.Mutex
	entries    map[int32][]wire.VoiceTargetEntry
	clearOnSet bool
}

// New constructs an empty Table. When clearOnSet is true, Set
// replaces the entry at a target_id; when false, entries for the same
// target_id accumulate across calls.
func New(clearOnSet bool) *Table {
	return &Table{
		entries:    make(map[int32][]wire.VoiceTargetEntry),
		clearOnSet: clearOnSet,
	}
}

// Set resolves idOrName against kind (a numeric string is used
// directly as an id; anything else is resolved by name through
// resolver) and records/returns the wire.VoiceTarget message to send.
func (t *Table) Set(resolver Resolver, targetID int32, kind Kind, idOrName string) (wire.VoiceTarget, error) {
	if targetID < MinTargetID || targetID > MaxTargetID {
		return wire.VoiceTarget{}, ErrInvalidTargetID
	}

	entry, err := resolveEntry(resolver, kind, idOrName)
	if err != nil {
		return wire.VoiceTarget{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.clearOnSet {
		t.entries[targetID] = []wire.VoiceTargetEntry{entry}
	} else {
		t.entries[targetID] = append(t.entries[targetID], entry)
	}

	return wire.VoiceTarget{ID: targetID, Targets: append([]wire.VoiceTargetEntry(nil), t.entries[targetID]...)}, nil
}

func resolveEntry(resolver Resolver, kind Kind, idOrName string) (wire.VoiceTargetEntry, error) {
	id, numErr := strconv.ParseInt(idOrName, 10, 64)

	switch kind {
	case KindChannel:
		if numErr != nil {
			id = resolver.ChannelFind(idOrName)
			if id < 0 {
				return wire.VoiceTargetEntry{}, ErrUnknownChannel
			}
		}
		return wire.VoiceTargetEntry{ChannelID: int32(id), Children: true}, nil

	case KindUser:
		if numErr != nil {
			id = resolver.UserFind(idOrName)
			if id < 0 {
				return wire.VoiceTargetEntry{}, ErrUnknownUser
			}
		}
		return wire.VoiceTargetEntry{Session: []uint32{uint32(id)}, ChannelID: -1}, nil

	default:
		return wire.VoiceTargetEntry{}, errors.New("voicetarget: invalid kind")
	}
}

// Resend returns every currently configured target's message, for
// replay immediately after a reconnect.
func (t *Table) Resend() []wire.VoiceTarget {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]wire.VoiceTarget, 0, len(t.entries))
	for id, entries := range t.entries {
		out = append(out, wire.VoiceTarget{ID: id, Targets: append([]wire.VoiceTargetEntry(nil), entries...)})
	}
	return out
}

// Clear empties the table, called on disconnect alongside the state
// store's own clear.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[int32][]wire.VoiceTargetEntry)
}
