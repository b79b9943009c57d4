// Package session establishes and tracks DM sessions.
//
// It runs the initiator and recipient halves of the handshake, stores the
// resulting session under the DM channel id and again under the peer's user
// id, and reuses a stored session until it is reset.
package session
