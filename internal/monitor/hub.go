// Package monitor fans operator notices out to WebSocket subscribers via
// the Hub type.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// Notice is one operator-facing event, serialized as JSON on the feed.
type Notice struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Hub owns the subscriber set and distributes published notices. Slow
// subscribers are dropped rather than allowed to block the publisher.
type Hub struct {
	subscribers map[*subscriber]bool
	publish     chan Notice
	register    chan *subscriber
	unregister  chan *subscriber
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewHub creates and initializes a new Hub instance ready to run.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		subscribers: make(map[*subscriber]bool),
		publish:     make(chan Notice, 64),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Notice formats and publishes one operator notice. It never blocks: when
// the feed is saturated the notice is dropped, since it is already in the
// server log. Notice satisfies the chat package's OpsSink.
func (h *Hub) Notice(format string, args ...any) {
	n := Notice{Time: time.Now(), Message: fmt.Sprintf(format, args...)}
	select {
	case h.publish <- n:
	default:
	}
}

// Run starts the hub's main event loop, handling subscriber registration,
// unregistration, and notice fan-out. This method should be called in a
// separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownSubscribers()
			return

		case sub := <-h.register:
			h.mutex.Lock()
			sub.closed = false
			h.subscribers[sub] = true
			count := len(h.subscribers)
			h.mutex.Unlock()
			log.Printf("Monitor subscriber from %s. Total subscribers: %d", sub.addr, count)

			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				sub.writePump()
			}()

		case sub := <-h.unregister:
			h.drop(sub)

		case n := <-h.publish:
			h.fanOut(n)
		}
	}
}

func (h *Hub) safeSend(sub *subscriber, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.subscribers[sub]; !exists || sub.closed {
		return false
	}

	select {
	case sub.send <- payload:
		return true
	default:
		return false
	}
}

// fanOut delivers one notice to every subscriber and drops the ones whose
// buffers are full.
func (h *Hub) fanOut(n Notice) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("Error encoding notice: %v", err)
		return
	}

	h.mutex.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mutex.RUnlock()

	var stale []*subscriber
	for _, sub := range subs {
		if !h.safeSend(sub, payload) {
			stale = append(stale, sub)
		}
	}
	for _, sub := range stale {
		h.drop(sub)
	}
}

func (h *Hub) drop(sub *subscriber) {
	h.mutex.Lock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		sub.closed = true
		count := len(h.subscribers)
		h.mutex.Unlock()
		// Close the channel after releasing the lock.
		close(sub.send)
		log.Printf("Monitor subscriber from %s removed. Total subscribers: %d", sub.addr, count)
		return
	}
	h.mutex.Unlock()
}

// shutdownSubscribers closes all active subscriber connections.
func (h *Hub) shutdownSubscribers() {
	log.Println("Shutting down monitor subscribers...")

	h.mutex.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mutex.Unlock()

	for _, sub := range subs {
		if sub.conn != nil {
			if err := sub.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing subscriber connection from %s: %v", sub.addr, err)
			}
		}
	}

	log.Printf("Closed %d subscriber connections", len(subs))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// subscriber goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()

	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(timeout):
		log.Println("Monitor shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
