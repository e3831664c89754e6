package dispatch

import (
	"errors"
	"testing"

	"github.com/gomumble/engine/internal/statestore"
	"github.com/gomumble/engine/internal/wire"
)

// recordingListener captures the arguments of the last call to each
// callback it cares about, embedding NopListener for the rest.
type recordingListener struct {
	NopListener

	serverSyncSession uint32
	welcomeText       string

	channelStateCalls int
	userStateCalls    int
}

func (r *recordingListener) ServerSync(welcomeText string, session uint32, maxBandwidth int32, permissions int64) {
	r.welcomeText = welcomeText
	r.serverSyncSession = session
}

func (r *recordingListener) ChannelState(name string, channelID, parent int32, description string, links, linksAdd, linksRemove []uint32, temporary bool, position int32) {
	r.channelStateCalls++
}

func (r *recordingListener) UserState(session, actor int32, name string, userID, channelID, mute, deaf, suppress, selfMute, selfDeaf int32, comment string, prioritySpeaker, recording int32) {
	r.userStateCalls++
}

func TestDispatchServerSyncSetsMySessionAndWelcomeText(t *testing.T) {
	store := statestore.New()
	rec := &recordingListener{}
	d := New(store, rec, nil)

	payload := marshalServerSyncForTest(7, "hi")
	if err := d.Dispatch(wire.TagServerSync, payload); err != nil {
		t.Fatalf("Dispatch(ServerSync): %v", err)
	}
	if store.MySession() != 7 {
		t.Errorf("MySession() = %d, want 7", store.MySession())
	}
	if rec.welcomeText != "hi" {
		t.Errorf("welcomeText = %q, want %q", rec.welcomeText, "hi")
	}
	if rec.serverSyncSession != 7 {
		t.Errorf("serverSyncSession = %d, want 7", rec.serverSyncSession)
	}
}

func TestDispatchChannelStateInsertsOnce(t *testing.T) {
	store := statestore.New()
	rec := &recordingListener{}
	d := New(store, rec, nil)

	payload := marshalChannelStateForTest(0, "Root")
	if err := d.Dispatch(wire.TagChannelState, payload); err != nil {
		t.Fatalf("Dispatch(ChannelState): %v", err)
	}
	if err := d.Dispatch(wire.TagChannelState, payload); err != nil {
		t.Fatalf("Dispatch(ChannelState) second time: %v", err)
	}

	channels := store.ChannelGetList()
	if len(channels) != 1 {
		t.Fatalf("expected exactly one channel, got %d", len(channels))
	}
	if rec.channelStateCalls != 2 {
		t.Errorf("expected ChannelState callback to fire twice, got %d", rec.channelStateCalls)
	}
}

func TestDispatchUserStateUpdatesCurrentChannelForSelf(t *testing.T) {
	store := statestore.New()
	store.SetMySession(7)
	rec := &recordingListener{}
	d := New(store, rec, nil)

	us := wire.UserState{
		Session: 7, Actor: -1, UserID: -1,
		Name: "alice", HasName: true,
		ChannelID: 0, HasChannelID: true,
		Mute: -1, Deaf: -1, Suppress: -1, SelfMute: -1, SelfDeaf: -1,
		PrioritySpeaker: -1, Recording: -1,
	}

	if err := d.Dispatch(wire.TagUserState, us.Marshal()); err != nil {
		t.Fatalf("Dispatch(UserState): %v", err)
	}

	if store.ChannelGetCurrent() != 0 {
		t.Errorf("ChannelGetCurrent() = %d, want 0", store.ChannelGetCurrent())
	}
	u, ok := store.UserGet(7)
	if !ok || u.Name != "alice" {
		t.Errorf("UserGet(7) = %+v, ok=%v", u, ok)
	}
	if rec.userStateCalls != 1 {
		t.Errorf("expected UserState callback to fire once, got %d", rec.userStateCalls)
	}
}

func TestDispatchUnimplementedTagIsIgnored(t *testing.T) {
	store := statestore.New()
	d := New(store, &NopListener{}, nil)

	if err := d.Dispatch(wire.TagVoiceTarget, []byte{0x01}); err != nil {
		t.Errorf("expected an unimplemented tag to be ignored without error, got %v", err)
	}
}

func TestDispatchUnknownTagIsProtocolViolation(t *testing.T) {
	store := statestore.New()
	d := New(store, &NopListener{}, nil)

	err := d.Dispatch(wire.Tag(9999), nil)
	if err == nil {
		t.Fatal("expected an error for an unknown tag")
	}
	var violation *ErrProtocolViolation
	if !errors.As(err, &violation) {
		t.Errorf("expected *ErrProtocolViolation, got %T: %v", err, err)
	}
}

func TestDispatchMalformedPayloadIsDiscardedNotFatal(t *testing.T) {
	store := statestore.New()
	d := New(store, &NopListener{}, nil)

	// A truncated length-delimited field: field 3 (string, wire type 2)
	// claims more bytes than are present.
	malformed := []byte{0x1a, 0x7f}
	if err := d.Dispatch(wire.TagUserState, malformed); err != nil {
		t.Errorf("expected decode errors to be swallowed, got %v", err)
	}
}

// --- minimal protobuf encoders for payloads this package only
// decodes (ServerSync, ChannelState are never marshalled by the
// engine itself, since the client never sends them) ---

func appendProtoVarintForTest(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func appendVarintField(dst []byte, field int, v uint64) []byte {
	dst = appendProtoVarintForTest(dst, uint64(field)<<3|0)
	return appendProtoVarintForTest(dst, v)
}

func appendStringField(dst []byte, field int, s string) []byte {
	dst = appendProtoVarintForTest(dst, uint64(field)<<3|2)
	dst = appendProtoVarintForTest(dst, uint64(len(s)))
	return append(dst, s...)
}

func marshalServerSyncForTest(session uint32, welcome string) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(session))
	b = appendStringField(b, 3, welcome)
	return b
}

func marshalChannelStateForTest(channelID int32, name string) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(uint32(channelID)))
	b = appendStringField(b, 3, name)
	return b
}
