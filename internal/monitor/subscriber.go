// Package monitor manages individual feed subscribers, each with a write
// pump and keepalive pings.
package monitor

import (
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	addr   string
	closed bool
}

func newSubscriber(conn *websocket.Conn, hub *Hub, addr string) *subscriber {
	return &subscriber{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  hub,
		addr: addr,
	}
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with pings. The feed is one-way; inbound messages are discarded by a
// companion goroutine so close frames still get processed.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	go s.discardReads()
	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing subscriber connection from %s: %v", s.addr, err)
		}
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", s.addr, err)
				return
			}
			if !ok {
				// The hub dropped us; tell the peer and go away.
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing notice to %s: %v", s.addr, err)
				}
				s.leave()
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.leave()
				return
			}

		case <-s.hub.ctx.Done():
			return
		}
	}
}

// discardReads drains inbound messages until the connection dies, then
// unregisters the subscriber.
func (s *subscriber) discardReads() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.leave()
			return
		}
	}
}

func (s *subscriber) leave() {
	select {
	case s.hub.unregister <- s:
	case <-s.hub.ctx.Done():
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
