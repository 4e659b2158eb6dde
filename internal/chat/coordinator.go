// Package chat coordinates session registration, username negotiation,
// message broadcast, and connection cleanup via the Coordinator type.
package chat

import (
	"context"
	"log"
	"strings"
	"time"
)

// Reply literals. The two invalid-command strings really do differ in
// punctuation; existing clients test against the exact bytes.
const (
	promptUsername = "Enter username: "
	promptTaken    = "Username taken!\nEnter username: "
	replyList      = "Invalid command. Type /help for help.\n"
	replyInvalid   = "Invalid command! Type /help for help.\n"
	replyHelp      = "/quit - quit the chat\n/list - list usernames\n/help - show this help message\n"
)

// OpsSink receives operator-facing notices: delivery failures, dropped
// frames, session anomalies. Implementations must not block.
type OpsSink interface {
	Notice(format string, args ...any)
}

// Coordinator is the single consumer of the connection workers' event
// stream. It exclusively owns the session registry; no lock guards the map
// because no other goroutine ever touches it.
type Coordinator struct {
	events   chan Event
	sessions map[string]*Session
	ops      OpsSink
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCoordinator creates a Coordinator ready to run. sink may be nil, in
// which case operator notices go to the log only.
func NewCoordinator(sink OpsSink) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		events:   make(chan Event, 128),
		sessions: make(map[string]*Session),
		ops:      sink,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Events returns the channel workers push their events into. Events for one
// address must be pushed in emission order; the channel preserves FIFO per
// producer.
func (co *Coordinator) Events() chan<- Event {
	return co.events
}

// Run drains the event stream until Shutdown is called. It must run on
// exactly one goroutine; everything it owns relies on that.
func (co *Coordinator) Run() {
	defer close(co.done)

	for {
		select {
		case <-co.ctx.Done():
			co.closeSessions()
			return
		case ev := <-co.events:
			co.handleEvent(ev)
		}
	}
}

func (co *Coordinator) handleEvent(ev Event) {
	switch ev.Kind {
	case EventConnected:
		sess := &Session{channel: ev.Channel}
		co.sessions[ev.Addr] = sess
		// A failed prompt write comes back to us as a Disconnected later.
		co.send(ev.Addr, sess, promptUsername)
		log.Printf("Session connected from %s. Total sessions: %d", ev.Addr, len(co.sessions))

	case EventDisconnected:
		// Removing an absent address is a no-op.
		delete(co.sessions, ev.Addr)
		log.Printf("Session disconnected from %s. Total sessions: %d", ev.Addr, len(co.sessions))

	case EventText:
		sess, ok := co.sessions[ev.Addr]
		if !ok {
			co.notice("Dropping text from unknown session %s", ev.Addr)
			return
		}
		if !sess.named {
			co.negotiateUsername(ev.Addr, sess, ev.Text)
			return
		}
		co.handleChat(ev.Addr, sess, ev.Text)
	}
}

// negotiateUsername applies a proposed username, rejecting it when any other
// session already holds the exact same name.
func (co *Coordinator) negotiateUsername(addr string, sess *Session, proposed string) {
	for _, other := range co.sessions {
		if other.named && other.username == proposed {
			co.send(addr, sess, promptTaken)
			return
		}
	}
	sess.username = proposed
	sess.named = true
	log.Printf("Session %s is now %q", addr, proposed)
}

func (co *Coordinator) handleChat(addr string, sess *Session, text string) {
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		co.handleCommand(addr, sess, text)
		return
	}
	co.broadcast(addr, sess.username+": "+text)
}

func (co *Coordinator) handleCommand(addr string, sess *Session, cmd string) {
	switch cmd {
	case "/quit":
		// Half-close the read side only. The worker's failing read emits the
		// Disconnected that actually removes the session; removal is never
		// synchronous here.
		if err := sess.channel.CloseRead(); err != nil && !isExpectedCloseError(err) {
			co.notice("Error closing read side for %s: %v", addr, err)
		}
	case "/help":
		co.send(addr, sess, replyHelp)
	case "/list":
		co.send(addr, sess, replyList)
	default:
		co.send(addr, sess, replyInvalid)
	}
}

// broadcast delivers text to every registered session except the sender.
// One failed recipient is reported and skipped; the rest are still served.
func (co *Coordinator) broadcast(sender string, text string) {
	for addr, sess := range co.sessions {
		if addr == sender {
			continue
		}
		co.send(addr, sess, text)
	}
}

func (co *Coordinator) send(addr string, sess *Session, text string) {
	if err := sess.channel.Send(text); err != nil {
		co.notice("Error sending to %s: %v", addr, err)
	}
}

// notice reports an operator-facing condition to the log and, when wired, to
// the monitor feed. Safe to call from worker goroutines.
func (co *Coordinator) notice(format string, args ...any) {
	log.Printf(format, args...)
	if co.ops != nil {
		co.ops.Notice(format, args...)
	}
}

// closeSessions closes every registered connection during shutdown.
func (co *Coordinator) closeSessions() {
	log.Println("Closing all chat sessions...")
	for addr, sess := range co.sessions {
		if err := sess.channel.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing session %s: %v", addr, err)
		}
		delete(co.sessions, addr)
	}
}

// Shutdown stops the Run loop and closes all sessions. It returns once Run
// has exited or the timeout is reached.
func (co *Coordinator) Shutdown(timeout time.Duration) error {
	co.cancel()

	select {
	case <-co.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
