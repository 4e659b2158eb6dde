// Package chat implements the core of the CipherChat server: the ephemeral
// Diffie-Hellman handshake, the fixed-frame encrypted transport, and the
// session coordinator that serializes every state transition.
//
// The implementation is organized into specialized files for key exchange,
// framing, configuration, the coordinator, and the connection listener to
// keep the codebase maintainable and testable as the project grows.
package chat
