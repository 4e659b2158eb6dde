// Package chat defines the coordinator's event stream and the per-session
// state it guards.
package chat

// EventKind discriminates the events a connection worker can emit.
type EventKind int

const (
	// EventConnected announces a completed handshake. The event carries the
	// session's channel, which the coordinator keeps as its write handle.
	EventConnected EventKind = iota
	// EventText carries one decoded frame from the peer.
	EventText
	// EventDisconnected is the terminal event for an address, emitted exactly
	// once when the worker's read loop fails.
	EventDisconnected
)

// Event is one entry in the coordinator's ordered stream. Addr identifies
// the connection it concerns; events for one address arrive in emission
// order.
type Event struct {
	Addr    string
	Kind    EventKind
	Channel *Channel // set for EventConnected
	Text    string   // set for EventText
}

// Session is the coordinator-owned state for one connection: the channel
// write handle and the username once negotiated. Only the coordinator
// goroutine ever touches a Session.
type Session struct {
	channel  *Channel
	username string
	named    bool
}
