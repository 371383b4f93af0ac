package connector

import (
	"fmt"
	"net"
	"time"

	"github.com/kafitramarna/replika/internal/logger"
	"github.com/kafitramarna/replika/pkg/protocol"
)

// negotiate drives the authentication handshake: read the greeting, answer
// with the client authentication packet, classify the verdict, and fall back
// to the legacy 323 exchange when the server asks for it. Every response is
// dispatched on the first body byte with the same classification rule.
func (c *Connector) negotiate(conn net.Conn) (*protocol.Greeting, error) {
	header, body, err := c.readResponse(conn)
	if err != nil {
		return nil, err
	}

	switch protocol.ClassifyIndicator(body[0]) {
	case protocol.IndicatorData:
		// field count >= 0: this is the greeting.
	case protocol.IndicatorErr:
		e, derr := protocol.DecodeServerError(body)
		if derr != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeRejected, derr)
		}
		return nil, fmt.Errorf("%w: %w", ErrHandshakeRejected, e)
	case protocol.IndicatorEOF:
		return nil, ErrUnexpectedEOF
	default:
		return nil, &ProtocolViolationError{FieldCount: body[0]}
	}

	greeting, err := protocol.DecodeGreeting(body)
	if err != nil {
		return nil, err
	}
	logger.Debug("greeting received",
		"server_version", greeting.ServerVersion,
		"connection_id", greeting.ConnectionID,
		"legacy_auth", greeting.LegacyAuth)

	auth := &protocol.ClientAuth{
		CapabilityFlags: greeting.CapabilityFlags & clientCapabilityMask,
		MaxPacketSize:   protocol.MaxPayloadSize,
		CharacterSet:    c.charset,
		Username:        c.username,
		AuthResponse:    protocol.ScramblePassword(greeting.ScrambleBuffer(), []byte(c.password)),
		Database:        c.database,
	}
	if err := protocol.WritePacket(conn, header.SequenceID+1, auth.Encode()); err != nil {
		return nil, err
	}
	logger.Debug("client authentication packet sent", "user", c.username)

	header, body, err = c.readResponse(conn)
	if err != nil {
		return nil, err
	}

	switch protocol.ClassifyIndicator(body[0]) {
	case protocol.IndicatorData:
		if body[0] != 0x00 {
			return nil, &ProtocolViolationError{FieldCount: body[0]}
		}
		return greeting, nil
	case protocol.IndicatorErr:
		e, derr := protocol.DecodeServerError(body)
		if derr != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthRejected, derr)
		}
		return nil, fmt.Errorf("%w: %w", ErrAuthRejected, e)
	case protocol.IndicatorEOF:
		// The server insists on the pre-4.1 scramble. The legacy exchange
		// uses the greeting's original 8-byte seed, not the combined buffer.
		if err := c.auth323(conn, header.SequenceID, greeting.Seed); err != nil {
			return nil, err
		}
		return greeting, nil
	default:
		return nil, &ProtocolViolationError{FieldCount: body[0]}
	}
}

// auth323 runs the legacy authentication sub-exchange. An empty password
// sends an empty reply; the old protocol treats that as anonymous auth.
func (c *Connector) auth323(conn net.Conn, seq uint8, seed []byte) error {
	reply := &protocol.Reply323{
		AuthResponse: protocol.Scramble323(seed, []byte(c.password)),
	}
	if err := protocol.WritePacket(conn, seq+1, reply.Encode()); err != nil {
		return err
	}
	logger.Debug("legacy authentication packet sent", "user", c.username)

	_, body, err := c.readResponse(conn)
	if err != nil {
		return err
	}
	switch {
	case body[0] == 0x00:
		return nil
	case protocol.ClassifyIndicator(body[0]) == protocol.IndicatorErr:
		e, derr := protocol.DecodeServerError(body)
		if derr != nil {
			return fmt.Errorf("%w: %v", ErrAuthRejected, derr)
		}
		return fmt.Errorf("%w: %w", ErrAuthRejected, e)
	default:
		return &ProtocolViolationError{FieldCount: body[0]}
	}
}

// readResponse reads one packet under the configured read timeout and
// guarantees a non-empty body, so callers can always dispatch on body[0].
func (c *Connector) readResponse(conn net.Conn) (protocol.Header, []byte, error) {
	if c.timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	header, err := protocol.ReadHeader(conn)
	if err != nil {
		return protocol.Header{}, nil, err
	}
	body, err := protocol.ReadBody(conn, header.Length)
	if err != nil {
		return protocol.Header{}, nil, err
	}
	if len(body) == 0 {
		return protocol.Header{}, nil, fmt.Errorf("empty packet body from server")
	}
	return header, body, nil
}

// clientCapabilityMask is the slice of server capabilities this client echoes
// back; everything else (SSL, compression, plugin auth) is never claimed.
const clientCapabilityMask = protocol.ClientLongPassword | protocol.ClientLongFlag |
	protocol.ClientProtocol41 | protocol.ClientTransactions | protocol.ClientSecureConn
