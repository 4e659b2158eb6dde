// Package chat implements the fixed-frame encrypted transport shared by the
// server and client ends of a connection.
package chat

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"unicode/utf8"
)

// FrameSize is the width of one encrypted frame. One Send produces exactly
// one frame; there is no length prefix and no multi-frame message support,
// so payloads beyond this width are truncated. Kept for wire compatibility.
const FrameSize = 16

// ErrHandshake reports a failed key exchange. No Connected event may be
// emitted for a connection whose handshake failed.
var ErrHandshake = errors.New("chat: handshake failed")

// Channel is one endpoint of an encrypted connection. The read side and the
// write side share the same secret and framing parameters; one goroutine may
// read while another writes.
type Channel struct {
	conn  net.Conn
	block cipher.Block
}

// Establish performs the key exchange on conn and returns the encrypted
// channel. Each side writes its ephemeral public value as one fixed-width
// block and reads the peer's block of the same width; a short or empty
// exchange fails the handshake rather than producing a partial key.
func Establish(conn net.Conn) (*Channel, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	if _, err := conn.Write(kp.PublicValue()); err != nil {
		return nil, fmt.Errorf("%w: sending public value: %v", ErrHandshake, err)
	}

	peer := make([]byte, PublicValueSize)
	if _, err := io.ReadFull(conn, peer); err != nil {
		return nil, fmt.Errorf("%w: reading peer public value: %v", ErrHandshake, err)
	}

	secret, err := kp.SharedSecret(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	return newChannel(conn, secret)
}

func newChannel(conn net.Conn, secret []byte) (*Channel, error) {
	key, err := deriveFrameKey(secret)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("chat: creating frame cipher: %w", err)
	}
	return &Channel{conn: conn, block: block}, nil
}

// RemoteAddr returns the address of the peer endpoint.
func (c *Channel) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Send encrypts text into exactly one frame and writes it. Text longer than
// FrameSize bytes is truncated; shorter text is padded with spaces, which
// the receiving side trims. The transform carries no MAC and no nonce.
func (c *Channel) Send(text string) error {
	frame := make([]byte, FrameSize)
	for i := range frame {
		frame[i] = ' '
	}
	copy(frame, text)

	c.block.Encrypt(frame, frame)
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("chat: writing frame: %w", err)
	}
	return nil
}

// Recv blocks until one frame arrives and returns its decoded text with
// trailing whitespace trimmed. A frame whose plaintext is not valid UTF-8
// yields ok=false; the caller skips it and keeps reading. Any read error,
// including EOF, is connection-fatal.
func (c *Channel) Recv() (text string, ok bool, err error) {
	frame := make([]byte, FrameSize)
	if _, err := io.ReadFull(c.conn, frame); err != nil {
		return "", false, err
	}

	c.block.Decrypt(frame, frame)
	if !utf8.Valid(frame) {
		return "", false, nil
	}
	return strings.TrimRight(string(frame), " \t\r\n\x00"), true, nil
}

// CloseRead half-closes the read side where the transport supports it, so
// the owning worker's next read observes EOF while in-flight writes still
// drain. Transports without half-close fall back to a full close.
func (c *Channel) CloseRead() error {
	if cr, ok := c.conn.(interface{ CloseRead() error }); ok {
		return cr.CloseRead()
	}
	return c.conn.Close()
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}
