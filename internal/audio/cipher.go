package audio

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// DatagramCipher encrypts and decrypts packets sent over the
// unreliable UDP channel. The scheme is behind an interface so an
// embedder can supply a different one; SecretboxCipher is the bundled
// concrete implementation.
type DatagramCipher interface {
	Seal(seq uint32, plaintext []byte) []byte
	Open(sealed []byte) (seq uint32, plaintext []byte, err error)
}

// ErrInvalidCiphertext is returned by SecretboxCipher.Open when the
// sealed box fails authentication or is too short to contain a nonce.
var ErrInvalidCiphertext = errors.New("audio: datagram authentication failed")

// SecretboxCipher implements DatagramCipher using NaCl secretbox
// (XSalsa20-Poly1305), keyed by a session secret established out of
// band. The 24-byte nonce is the packet sequence number, zero-padded.
type SecretboxCipher struct {
	key [32]byte
}

// NewSecretboxCipher returns a cipher keyed by key.
func NewSecretboxCipher(key [32]byte) *SecretboxCipher {
	return &SecretboxCipher{key: key}
}

// RandomKey generates a fresh 32-byte key, for tests and standalone use.
func RandomKey() ([32]byte, error) {
	var k [32]byte
	_, err := rand.Read(k[:])
	return k, err
}

func nonceFor(seq uint32) [24]byte {
	var nonce [24]byte
	binary.BigEndian.PutUint32(nonce[0:4], seq)
	return nonce
}

// Seal authenticates and encrypts plaintext, returning the nonce seq
// prefix followed by the sealed box.
func (c *SecretboxCipher) Seal(seq uint32, plaintext []byte) []byte {
	nonce := nonceFor(seq)
	out := make([]byte, 4, 4+len(plaintext)+secretbox.Overhead)
	binary.BigEndian.PutUint32(out, seq)
	return secretbox.Seal(out, plaintext, &nonce, &c.key)
}

// Open verifies and decrypts a packet produced by Seal.
func (c *SecretboxCipher) Open(sealed []byte) (uint32, []byte, error) {
	if len(sealed) < 4 {
		return 0, nil, ErrInvalidCiphertext
	}
	seq := binary.BigEndian.Uint32(sealed[:4])
	nonce := nonceFor(seq)

	plaintext, ok := secretbox.Open(nil, sealed[4:], &nonce, &c.key)
	if !ok {
		return 0, nil, ErrInvalidCiphertext
	}
	return seq, plaintext, nil
}
