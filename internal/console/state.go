// Package console owns the lifecycle of a single VM console session:
// connect, detect drop, reconnect after a fixed delay, relay mid-session
// password challenges, and tear the session down when the upstream
// authentication expires. The RFB transport is a collaborator behind the
// Transport interface, never reimplemented here.
package console

import "time"

// State is the externally visible session state. One active value per
// session, mutated only by transport callbacks or explicit user actions.
type State int

const (
	// StateLoaded is the initial state before the first connection
	// attempt has settled.
	StateLoaded State = iota
	// StateNormal means the transport is connected and interactive.
	StateNormal
	// StateDisconnected means the transport dropped; a reconnect is
	// scheduled.
	StateDisconnected
	// StateFailed is a recoverable failure surfaced to the UI.
	StateFailed
	// StateFatal is unrecoverable; the session must be restarted
	// externally.
	StateFatal
	// StatePassword is reported by transports when the remote side asks
	// for a password mid-handshake. It is relayed to callbacks but never
	// stored as the session state.
	StatePassword
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateNormal:
		return "normal"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateFatal:
		return "fatal"
	case StatePassword:
		return "password"
	default:
		return "unknown"
	}
}

// transitionBufferSize caps the per-session transition history kept for
// debugging.
const transitionBufferSize = 32

// Transition records a single state change.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// SessionConfig holds the immutable per-session connection parameters.
type SessionConfig struct {
	Host     string
	Port     int
	Path     string
	Encrypt  bool
	Shared   bool
	ViewOnly bool
	Password string
}
