package chat

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// newChannelPair builds two channel endpoints over an in-memory pipe that
// share the same frame key, skipping the handshake.
func newChannelPair(t *testing.T) (*Channel, *Channel) {
	t.Helper()

	secret := []byte("0123456789abcdef")
	serverConn, clientConn := net.Pipe()

	server, err := newChannel(serverConn, secret)
	if err != nil {
		t.Fatalf("newChannel: %v", err)
	}
	client, err := newChannel(clientConn, secret)
	if err != nil {
		t.Fatalf("newChannel: %v", err)
	}

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return server, client
}

// transfer sends text on from and reads one frame on to. The pipe is
// synchronous, so the send runs in the background.
func transfer(t *testing.T, from, to *Channel, text string) (string, bool) {
	t.Helper()

	sent := make(chan error, 1)
	go func() { sent <- from.Send(text) }()

	got, ok, err := to.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}

	select {
	case err := <-sent:
		if err != nil {
			t.Fatalf("Send(%q): %v", text, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Send(%q) did not complete", text)
	}
	return got, ok
}

// TestFrameRoundTrip verifies that text within the frame width survives
// encrypt, transfer, and decrypt unchanged.
func TestFrameRoundTrip(t *testing.T) {
	server, client := newChannelPair(t)

	for _, text := range []string{"hello", "a", "sixteen chars!!!"} {
		got, ok := transfer(t, client, server, text)
		if !ok {
			t.Fatalf("Recv(%q) reported an undecodable frame", text)
		}
		if got != text {
			t.Errorf("round trip of %q produced %q", text, got)
		}
	}
}

// TestFrameTruncation verifies that payloads beyond the frame width are cut
// to exactly one frame, a protocol limitation that must be preserved.
func TestFrameTruncation(t *testing.T) {
	server, client := newChannelPair(t)

	long := "this message is far too long for one frame"
	want := strings.TrimRight(long[:FrameSize], " \t\r\n\x00")

	got, ok := transfer(t, client, server, long)
	if !ok {
		t.Fatal("Recv reported an undecodable frame")
	}
	if got != want {
		t.Errorf("truncated transfer produced %q, want %q", got, want)
	}
}

// TestFrameTrimsTrailingWhitespace verifies the documented lossiness: the
// decoder trims trailing whitespace, including the sender's own padding.
func TestFrameTrimsTrailingWhitespace(t *testing.T) {
	server, client := newChannelPair(t)

	got, ok := transfer(t, client, server, "hi \t")
	if !ok {
		t.Fatal("Recv reported an undecodable frame")
	}
	if got != "hi" {
		t.Errorf("got %q, want %q", got, "hi")
	}
}

// TestRecvSkipsUndecodableFrame verifies that a frame whose plaintext is not
// valid UTF-8 yields ok=false without killing the connection.
func TestRecvSkipsUndecodableFrame(t *testing.T) {
	server, client := newChannelPair(t)

	frame := make([]byte, FrameSize)
	for i := range frame {
		frame[i] = 0xff
	}
	client.block.Encrypt(frame, frame)

	go func() { _, _ = client.conn.Write(frame) }()

	if _, ok, err := server.Recv(); err != nil {
		t.Fatalf("Recv: %v", err)
	} else if ok {
		t.Error("Recv decoded a frame that is not valid UTF-8")
	}

	// The connection must still carry frames after the skipped one.
	got, ok := transfer(t, client, server, "still here")
	if !ok || got != "still here" {
		t.Errorf("after skipped frame got %q (ok=%v)", got, ok)
	}
}

// TestEstablishOverTCP verifies the full handshake between two live
// endpoints and that both derive a working, compatible frame key.
func TestEstablishOverTCP(t *testing.T) {
	server, client := newEstablishedPair(t)

	sent := make(chan error, 1)
	go func() { sent <- client.Send("ping") }()
	got, ok, err := server.Recv()
	if err != nil || !ok || got != "ping" {
		t.Fatalf("server Recv = %q, %v, %v", got, ok, err)
	}
	if err := <-sent; err != nil {
		t.Fatalf("client Send: %v", err)
	}

	go func() { sent <- server.Send("pong") }()
	got, ok, err = client.Recv()
	if err != nil || !ok || got != "pong" {
		t.Fatalf("client Recv = %q, %v, %v", got, ok, err)
	}
	if err := <-sent; err != nil {
		t.Fatalf("server Send: %v", err)
	}
}

// TestEstablishShortExchange verifies that a truncated public-value block
// fails the handshake instead of silently accepting a partial key.
func TestEstablishShortExchange(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	result := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			result <- err
			return
		}
		defer conn.Close()
		_, err = Establish(conn)
		result <- err
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.Close()

	select {
	case err := <-result:
		if !errors.Is(err, ErrHandshake) {
			t.Errorf("Establish error = %v, want ErrHandshake", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Establish did not return")
	}
}

// TestEstablishPeerGone verifies that a peer that disconnects before sending
// anything fails the handshake.
func TestEstablishPeerGone(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	result := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			result <- err
			return
		}
		defer conn.Close()
		_, err = Establish(conn)
		result <- err
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()

	select {
	case err := <-result:
		if !errors.Is(err, ErrHandshake) {
			t.Errorf("Establish error = %v, want ErrHandshake", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Establish did not return")
	}
}
