package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailure wraps any failure to open, configure, or
	// authenticate the connection. State is rolled back to disconnected
	// before it is returned.
	ErrConnectionFailure = errors.New("connection failure")

	// ErrDisconnectFailure wraps an error while closing the socket. The
	// state is forced to disconnected regardless.
	ErrDisconnectFailure = errors.New("disconnect failure")

	// ErrHandshakeRejected means the server answered the greeting phase
	// with an ERR packet.
	ErrHandshakeRejected = errors.New("handshake rejected")

	// ErrAuthRejected means the server refused the client credentials.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrUnexpectedEOF means the server sent an EOF packet where none is
	// valid (at the handshake phase).
	ErrUnexpectedEOF = errors.New("unexpected EOF packet at handshake phase")
)

// ProtocolViolationError reports a leading body byte this client cannot
// classify, which signals a protocol or version mismatch.
type ProtocolViolationError struct {
	FieldCount byte
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("unexpected packet with field_count=0x%02x", e.FieldCount)
}
