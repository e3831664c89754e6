package mumble

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/gomumble/engine/internal/wire"
)

// testServer is a minimal in-process Mumble server: a TLS listener
// that accepts one client, reads preamble-framed control messages into
// a channel, and writes frames back on demand.
type testServer struct {
	listener net.Listener
	conn     net.Conn
	frames   chan testFrame
	accepted chan struct{}
}

type testFrame struct {
	tag     wire.Tag
	payload []byte
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cert := selfSignedCert(t)
	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
	})
	if err != nil {
		t.Fatalf("tls.Listen: %v", err)
	}

	s := &testServer{
		listener: listener,
		frames:   make(chan testFrame, 32),
		accepted: make(chan struct{}),
	}
	t.Cleanup(func() {
		listener.Close()
		if s.conn != nil {
			s.conn.Close()
		}
	})

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		s.conn = conn
		close(s.accepted)
		s.readLoop()
	}()

	return s
}

func (s *testServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testServer) readLoop() {
	var preamble [wire.PreambleSize]byte
	for {
		if _, err := io.ReadFull(s.conn, preamble[:]); err != nil {
			close(s.frames)
			return
		}
		p, err := wire.DecodePreamble(preamble[:])
		if err != nil {
			close(s.frames)
			return
		}
		payload := make([]byte, p.Length)
		if p.Length > 0 {
			if _, err := io.ReadFull(s.conn, payload); err != nil {
				close(s.frames)
				return
			}
		}
		s.frames <- testFrame{tag: p.Type, payload: payload}
	}
}

// next returns the next non-Ping frame the client sent.
func (s *testServer) next(t *testing.T) testFrame {
	t.Helper()
	for {
		select {
		case f, ok := <-s.frames:
			if !ok {
				t.Fatal("server: connection closed while waiting for a frame")
			}
			if f.tag == wire.TagPing {
				continue
			}
			return f
		case <-time.After(5 * time.Second):
			t.Fatal("server: timed out waiting for a frame")
		}
	}
}

func (s *testServer) write(t *testing.T, tag wire.Tag, payload []byte) {
	t.Helper()
	select {
	case <-s.accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("server: no client accepted")
	}
	preamble := wire.EncodePreamble(wire.Preamble{Type: tag, Length: uint32(len(payload))})
	if _, err := s.conn.Write(preamble); err != nil {
		t.Fatalf("server: write preamble: %v", err)
	}
	if len(payload) > 0 {
		if _, err := s.conn.Write(payload); err != nil {
			t.Fatalf("server: write payload: %v", err)
		}
	}
}

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// --- minimal protobuf encoders for server-originated messages the
// engine only decodes ---

func appendUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func appendVarintField(dst []byte, field int, v uint64) []byte {
	dst = appendUvarint(dst, uint64(field)<<3)
	return appendUvarint(dst, v)
}

func appendStringField(dst []byte, field int, s string) []byte {
	dst = appendUvarint(dst, uint64(field)<<3|2)
	dst = appendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func marshalServerSync(session uint32, welcome string) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(session))
	b = appendStringField(b, 3, welcome)
	return b
}

func marshalChannelState(channelID uint32, name string) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(channelID))
	b = appendStringField(b, 3, name)
	return b
}

func marshalUserState(session uint32, name string, channelID uint32, hasChannel bool) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(session))
	if name != "" {
		b = appendStringField(b, 3, name)
	}
	if hasChannel {
		b = appendVarintField(b, 5, uint64(channelID))
	}
	return b
}

// eventListener signals the callbacks the scenarios wait on.
type eventListener struct {
	NopListener
	synced     chan uint32
	userStates chan int32
	texts      chan string
	audio      chan uint32
}

func newEventListener() *eventListener {
	return &eventListener{
		synced:     make(chan uint32, 1),
		userStates: make(chan int32, 8),
		texts:      make(chan string, 8),
		audio:      make(chan uint32, 8),
	}
}

func (l *eventListener) ServerSync(welcomeText string, session uint32, maxBandwidth int32, permissions int64) {
	l.synced <- session
}

func (l *eventListener) UserState(session, actor int32, name string, userID, channelID, mute, deaf, suppress, selfMute, selfDeaf int32, comment string, prioritySpeaker, recording int32) {
	l.userStates <- session
}

func (l *eventListener) TextMessage(actor uint32, session, channelID, treeID []uint32, message string) {
	l.texts <- message
}

func (l *eventListener) Audio(target byte, sessionID uint32, sequence int64, isLast bool, pcm []int16) {
	l.audio <- sessionID
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

// dialTestSession connects a Session to a testServer and completes the
// handshake up through ServerSync for session id 7 as user alice.
func dialTestSession(t *testing.T) (*Session, *testServer, *eventListener, context.CancelFunc) {
	t.Helper()

	server := newTestServer(t)
	listener := newEventListener()

	session, err := New(Config{
		Username:  "alice",
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	}, listener)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := session.TransportConnect(ctx, "127.0.0.1", server.port()); err != nil {
		t.Fatalf("TransportConnect: %v", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- session.TransportRun(ctx) }()
	t.Cleanup(func() {
		session.TransportDisconnect(nil)
		select {
		case <-runDone:
		case <-time.After(5 * time.Second):
			t.Error("TransportRun did not return after disconnect")
		}
	})

	if f := server.next(t); f.tag != wire.TagVersion {
		t.Fatalf("first frame tag = %v, want Version", f.tag)
	}
	if f := server.next(t); f.tag != wire.TagAuthenticate {
		t.Fatalf("second frame tag = %v, want Authenticate", f.tag)
	}

	server.write(t, wire.TagChannelState, marshalChannelState(0, "Root"))
	server.write(t, wire.TagUserState, marshalUserState(7, "alice", 0, true))
	server.write(t, wire.TagServerSync, marshalServerSync(7, "hi"))

	if session := waitFor(t, listener.synced, "ServerSync"); session != 7 {
		t.Fatalf("ServerSync session = %d, want 7", session)
	}

	// Callbacks are ordered, so alice's pre-sync UserState is already
	// buffered; drain it so scenarios only see their own events.
	for {
		select {
		case <-listener.userStates:
			continue
		default:
		}
		break
	}

	return session, server, listener, cancel
}

func TestJoinAndSpeak(t *testing.T) {
	session, server, listener, _ := dialTestSession(t)

	if got := session.TransportGetState(); got != Connected {
		t.Errorf("state = %v, want CONNECTED", got)
	}
	if u, ok := session.UserGet(7); !ok || u.Name != "alice" {
		t.Errorf("UserGet(7) = %+v ok=%v, want alice", u, ok)
	}
	if found := session.ChannelFind("Root"); found != 0 {
		t.Errorf("ChannelFind(Root) = %d, want 0", found)
	}

	if !session.ChannelJoin(0) {
		t.Fatal("ChannelJoin(0) should enqueue")
	}
	f := server.next(t)
	if f.tag != wire.TagUserState {
		t.Fatalf("join frame tag = %v, want UserState", f.tag)
	}
	// Server echoes the move back.
	server.write(t, wire.TagUserState, f.payload)
	waitFor(t, listener.userStates, "UserState echo")

	if got := session.ChannelGetCurrent(); got != 0 {
		t.Errorf("ChannelGetCurrent() = %d, want 0", got)
	}
}

func TestChannelJoinUnknownChannelIsRejected(t *testing.T) {
	session, server, _, _ := dialTestSession(t)

	// Only channel 0 exists; a join to a never-seen id must fail
	// without putting anything on the wire. The follow-up text send
	// proves no UserState frame precedes it.
	if session.ChannelJoin(42) {
		t.Error("ChannelJoin(42) should reject a channel never seen from the server")
	}

	if !session.TextSend("ping", []uint32{0}) {
		t.Fatal("TextSend should enqueue")
	}
	if f := server.next(t); f.tag != wire.TagTextMessage {
		t.Errorf("next frame tag = %v, want TextMessage (no UserState should have been sent)", f.tag)
	}
}

func TestTextSendEmitsTextMessageFrame(t *testing.T) {
	session, server, _, _ := dialTestSession(t)

	if !session.TextSend("hello", []uint32{0}) {
		t.Fatal("TextSend should enqueue")
	}

	f := server.next(t)
	if f.tag != wire.TagTextMessage {
		t.Fatalf("frame tag = %v, want TextMessage", f.tag)
	}
	got, err := wire.UnmarshalTextMessage(f.payload)
	if err != nil {
		t.Fatalf("UnmarshalTextMessage: %v", err)
	}
	if got.Actor != 7 || got.Message != "hello" || len(got.ChannelID) != 1 || got.ChannelID[0] != 0 {
		t.Errorf("TextMessage = %+v, want actor=7 channel=[0] message=hello", got)
	}
}

func TestLocalMuteSurvivesUpsertAndDropsAudio(t *testing.T) {
	session, server, listener, _ := dialTestSession(t)

	server.write(t, wire.TagUserState, marshalUserState(9, "bob", 0, true))
	waitFor(t, listener.userStates, "bob's UserState")

	if !session.UserMute(9, true) {
		t.Fatal("UserMute(9) should find the session")
	}

	// An upsert that omits the name moves bob to channel 1; the name
	// and local mute flag must survive.
	server.write(t, wire.TagUserState, marshalUserState(9, "", 1, true))
	waitFor(t, listener.userStates, "bob's second UserState")

	u, ok := session.UserGet(9)
	if !ok {
		t.Fatal("UserGet(9) should still be known")
	}
	if u.Name != "bob" || u.ChannelID != 1 || !u.LocalMute {
		t.Errorf("UserGet(9) = %+v, want name=bob channel=1 local_mute=true", u)
	}

	// An inbound audio packet from the muted sender must be consumed
	// without an Audio callback. The follow-up text frame proves the
	// audio packet was already processed when it arrives.
	audioPacket := []byte{byte(4 << 5)} // Opus, target 0
	audioPacket = wire.EncodeVarint(audioPacket, 9)
	audioPacket = wire.EncodeVarint(audioPacket, 0)
	audioPacket = wire.EncodeVarint(audioPacket, 3)
	audioPacket = append(audioPacket, 0xDE, 0xAD, 0xBE)
	server.write(t, wire.TagUDPTunnel, audioPacket)

	var text []byte
	text = appendVarintField(text, 1, 9)
	text = appendStringField(text, 5, "after audio")
	server.write(t, wire.TagTextMessage, text)
	waitFor(t, listener.texts, "follow-up TextMessage")

	select {
	case sender := <-listener.audio:
		t.Errorf("Audio callback fired for muted session %d", sender)
	default:
	}
}

func TestDoubleConnectRejectedAndStateIntact(t *testing.T) {
	session, _, _, _ := dialTestSession(t)

	err := session.TransportConnect(context.Background(), "127.0.0.1", 1)
	if !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second TransportConnect = %v, want ErrAlreadyConnected", err)
	}

	// The failed connect must not disturb the live session.
	if got := session.TransportGetState(); got != Connected {
		t.Errorf("state after rejected connect = %v, want CONNECTED", got)
	}
	if u, ok := session.UserGet(7); !ok || u.Name != "alice" {
		t.Errorf("UserGet(7) = %+v ok=%v, want alice intact", u, ok)
	}
	if len(session.ChannelGetList()) != 1 {
		t.Errorf("ChannelGetList() = %v, want the Root channel intact", session.ChannelGetList())
	}
}

func TestDisconnectEmptiesEveryTable(t *testing.T) {
	session, _, _, _ := dialTestSession(t)

	session.TransportDisconnect(nil)

	// TransportRun clears the tables on return; poll until it has.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(session.UserGetList()) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := session.TransportGetState(); got != NotConnected {
		t.Errorf("state after disconnect = %v, want NOT_CONNECTED", got)
	}
	if got := session.UserGetList(); len(got) != 0 {
		t.Errorf("UserGetList() = %v, want empty", got)
	}
	if got := session.ChannelGetList(); len(got) != 0 {
		t.Errorf("ChannelGetList() = %v, want empty", got)
	}
	if got := session.ChannelGetCurrent(); got != 0 {
		t.Errorf("ChannelGetCurrent() = %d, want 0", got)
	}
}
