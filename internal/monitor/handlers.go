// Package monitor exposes HTTP handlers for the operator feed: the
// WebSocket upgrade and a health check.
package monitor

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// FeedHandler returns a handler that upgrades the request and subscribes it
// to the hub's notice feed.
func FeedHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. Feed endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Feed upgrade failed: %v", err)
			return
		}

		sub := newSubscriber(conn, hub, r.RemoteAddr)

		// Register with the hub; the hub launches the write pump.
		select {
		case hub.register <- sub:
		case <-hub.ctx.Done():
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that reports the
// monitor is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "CipherChat monitor is running!")
}
