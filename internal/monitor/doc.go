// Package monitor exposes the server's operator-facing notices as a
// WebSocket feed on a fixed loopback address.
//
// The chat service reports conditions such as failed broadcast deliveries
// through the Hub, which fans them out to any connected observers. The feed
// is strictly one-way and best-effort: a slow or dead subscriber is dropped,
// and the chat service keeps running if the monitor endpoint cannot bind.
package monitor
