package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// startFeed runs a hub behind a test HTTP server and returns the WebSocket
// URL of its feed endpoint.
func startFeed(t *testing.T, hub *Hub) string {
	t.Helper()

	go hub.Run()
	srv := httptest.NewServer(SetupRoutes(hub))

	t.Cleanup(func() {
		srv.Close()
		if err := hub.Shutdown(2 * time.Second); err != nil {
			t.Errorf("hub.Shutdown: %v", err)
		}
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/feed"
}

// TestNewHub verifies that a fresh hub is fully initialized.
func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.subscribers == nil || hub.publish == nil || hub.register == nil || hub.unregister == nil {
		t.Fatal("NewHub left channels or maps uninitialized")
	}
}

// TestNoticeNeverBlocks verifies that publishing with no running hub drops
// notices instead of stalling the caller.
func TestNoticeNeverBlocks(t *testing.T) {
	hub := NewHub()

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 256; i++ {
			hub.Notice("notice %d", i)
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Notice blocked with no consumer")
	}
}

// TestFeedDeliversNotices verifies the full path: publish on the hub, fan
// out to a connected WebSocket subscriber, JSON payload intact.
func TestFeedDeliversNotices(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"http://localhost:6060"}})

	hub := NewHub()
	url := startFeed(t, hub)

	header := http.Header{"Origin": []string{"http://localhost:6060"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	// Let the handler hand the subscriber to the hub before publishing.
	time.Sleep(100 * time.Millisecond)

	hub.Notice("broadcast to %s failed", "alice")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var n Notice
	if err := json.Unmarshal(payload, &n); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	if n.Message != "broadcast to alice failed" {
		t.Errorf("message = %q, want %q", n.Message, "broadcast to alice failed")
	}
	if n.Time.IsZero() {
		t.Error("notice carries no timestamp")
	}
}

// TestFeedRejectsDisallowedOrigin verifies that the upgrade is refused for
// origins outside the allow-list.
func TestFeedRejectsDisallowedOrigin(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"http://localhost:6060"}})

	hub := NewHub()
	url := startFeed(t, hub)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		_ = conn.Close()
		t.Fatal("dial from disallowed origin succeeded")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

// TestHubShutdown verifies that Shutdown terminates the Run loop and its
// subscriber goroutines within the timeout.
func TestHubShutdown(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	if err := hub.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
