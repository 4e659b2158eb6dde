// Package chat implements the ephemeral Diffie-Hellman exchange that keys
// each connection's encrypted channel.
package chat

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// PublicValueSize is the width in bytes of a serialized public value and of
// the derived shared secret. Both peers must use the same width; a partial
// block is never accepted as a key.
const PublicValueSize = 16

// Fixed domain parameters. The modulus is the Mersenne prime 2^127 - 1,
// which fills the 16-byte wire block exactly.
var (
	domainP = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	domainG = big.NewInt(5)
)

// ErrWeakPublicValue reports a degenerate peer public value that would yield
// a predictable shared secret.
var ErrWeakPublicValue = errors.New("chat: weak peer public value")

// KeyPair is a single-use ephemeral key pair. SharedSecret consumes the
// private scalar; a KeyPair never keys more than one connection.
type KeyPair struct {
	priv *big.Int
	pub  *big.Int
}

// GenerateKeyPair creates an ephemeral key pair over the fixed domain
// parameters.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rand.Int(rand.Reader, new(big.Int).Sub(domainP, big.NewInt(3)))
	if err != nil {
		return nil, fmt.Errorf("chat: generating private scalar: %w", err)
	}
	// Scalar in [2, P-2].
	priv.Add(priv, big.NewInt(2))

	return &KeyPair{
		priv: priv,
		pub:  new(big.Int).Exp(domainG, priv, domainP),
	}, nil
}

// PublicValue returns the public value as a fixed-width big-endian block,
// ready for the wire.
func (kp *KeyPair) PublicValue() []byte {
	buf := make([]byte, PublicValueSize)
	kp.pub.FillBytes(buf)
	return buf
}

// SharedSecret derives the shared secret from the peer's serialized public
// value and destroys the private scalar. Nothing authenticates the peer
// value: the exchange is open to an active interceptor, a documented
// limitation of the protocol.
func (kp *KeyPair) SharedSecret(peerPublic []byte) ([]byte, error) {
	if kp.priv == nil {
		return nil, errors.New("chat: key pair already consumed")
	}
	if len(peerPublic) != PublicValueSize {
		return nil, fmt.Errorf("chat: peer public value is %d bytes, want %d", len(peerPublic), PublicValueSize)
	}

	peer := new(big.Int).SetBytes(peerPublic)
	if peer.Cmp(big.NewInt(2)) < 0 {
		return nil, ErrWeakPublicValue
	}

	secret := new(big.Int).Exp(peer, kp.priv, domainP)
	kp.priv.SetInt64(0)
	kp.priv = nil

	buf := make([]byte, PublicValueSize)
	secret.FillBytes(buf)
	return buf, nil
}

// deriveFrameKey stretches the raw shared secret into the AES-128 frame key.
// Both peers derive the same key from the same secret.
func deriveFrameKey(secret []byte) ([]byte, error) {
	key := make([]byte, PublicValueSize)
	kdf := hkdf.New(sha256.New, secret, nil, []byte("chat frame key v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("chat: deriving frame key: %w", err)
	}
	return key, nil
}
