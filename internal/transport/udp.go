package transport

import (
	"net"
	"sync/atomic"

	"github.com/gomumble/engine/internal/audio"
)

// udpChannel is the optional unreliable datagram path for audio
// packets: a dialed *net.UDPConn plus a sequence counter, sealing
// every outbound packet through the DatagramCipher before writing it.
// The cipher is an interface so a different datagram scheme can be
// dropped in without touching this file.
type udpChannel struct {
	conn   *net.UDPConn
	cipher audio.DatagramCipher
	seq    uint32
	stop   chan struct{}
}

func dialUDP(addr string, cipher audio.DatagramCipher) (*udpChannel, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &udpChannel{conn: conn, cipher: cipher, stop: make(chan struct{})}, nil
}

func (u *udpChannel) send(packet []byte) error {
	seq := atomic.AddUint32(&u.seq, 1) - 1
	sealed := u.cipher.Seal(seq, packet)
	_, err := u.conn.Write(sealed)
	return err
}

// recv reads and opens one datagram.
func (u *udpChannel) recv(buf []byte) (seq uint32, plaintext []byte, err error) {
	n, err := u.conn.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	return u.cipher.Open(buf[:n])
}

func (u *udpChannel) close() error {
	close(u.stop)
	return u.conn.Close()
}
