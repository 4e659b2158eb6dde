// Package chat accepts raw connections and runs one worker per connection:
// handshake first, then the decrypt-and-emit read loop that feeds the
// coordinator.
package chat

import (
	"fmt"
	"log"
	"net"
)

// ListenAndServe binds the configured listen address and serves until the
// listener dies. A bind failure is returned to the caller and is fatal;
// the caller decides how loudly to die.
func ListenAndServe(co *Coordinator) error {
	cfg := currentConfig()
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("chat: binding %s: %w", cfg.ListenAddr, err)
	}
	log.Printf("Chat server listening on %s", cfg.ListenAddr)
	return Serve(ln, co)
}

// Serve runs the accept loop on an established listener, spawning one worker
// goroutine per accepted connection. It returns nil when the listener is
// closed.
func Serve(ln net.Listener, co *Coordinator) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isExpectedCloseError(err) {
				return nil
			}
			log.Printf("Accept failed: %v", err)
			continue
		}
		go runWorker(conn, co)
	}
}

// runWorker owns one connection for its whole life. It performs the
// handshake, emits exactly one Connected on success, then turns decoded
// frames into Text events until the first read failure, which emits the
// terminal Disconnected. A failed handshake emits nothing at all.
func runWorker(conn net.Conn, co *Coordinator) {
	addr := conn.RemoteAddr().String()

	ch, err := Establish(conn)
	if err != nil {
		log.Printf("Handshake with %s failed: %v", addr, err)
		if cerr := conn.Close(); cerr != nil && !isExpectedCloseError(cerr) {
			log.Printf("Error closing %s after failed handshake: %v", addr, cerr)
		}
		return
	}
	log.Printf("Handshake with %s complete", addr)

	cfg := currentConfig()
	limiter := newFrameLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)

	events := co.Events()
	events <- Event{Addr: addr, Kind: EventConnected, Channel: ch}

	for {
		text, ok, err := ch.Recv()
		if err != nil {
			events <- Event{Addr: addr, Kind: EventDisconnected}
			if cerr := ch.Close(); cerr != nil && !isExpectedCloseError(cerr) {
				log.Printf("Error closing connection from %s: %v", addr, cerr)
			}
			return
		}
		if !ok {
			// Undecodable frame; skip it, the connection stays up.
			continue
		}
		if !limiter.allow() {
			co.notice("Rate limit exceeded for %s; discarding frame", addr)
			continue
		}
		events <- Event{Addr: addr, Kind: EventText, Text: text}
	}
}
