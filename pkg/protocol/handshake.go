package protocol

import (
	"encoding/binary"
	"fmt"
)

// Capability flags exchanged during the handshake.
// https://dev.mysql.com/doc/internals/en/capability-flags.html
const (
	ClientLongPassword  uint32 = 0x00000001
	ClientLongFlag      uint32 = 0x00000004
	ClientConnectWithDB uint32 = 0x00000008
	ClientProtocol41    uint32 = 0x00000200
	ClientTransactions  uint32 = 0x00002000
	ClientSecureConn    uint32 = 0x00008000
	ClientPluginAuth    uint32 = 0x00080000
)

// OldPasswordPlugin is the auth plugin name announced by servers that still
// want the pre-4.1 scramble.
const OldPasswordPlugin = "mysql_old_password"

// Indicator classifies the first byte of a response body. The protocol uses
// the sign of this byte as its universal discriminator: non-negative means a
// normal result, 0xFF an error, 0xFE an EOF or auth-switch marker.
type Indicator int

const (
	IndicatorData    Indicator = iota // 0x00..0x7F
	IndicatorErr                      // 0xFF
	IndicatorEOF                      // 0xFE
	IndicatorUnknown                  // 0x80..0xFD
)

// ClassifyIndicator maps the first body byte onto its indicator class.
func ClassifyIndicator(b byte) Indicator {
	switch {
	case b < 0x80:
		return IndicatorData
	case b == 0xFF:
		return IndicatorErr
	case b == 0xFE:
		return IndicatorEOF
	default:
		return IndicatorUnknown
	}
}

// Greeting is the handshake initialization packet the server sends first.
type Greeting struct {
	ProtocolVersion uint8
	ServerVersion   string
	ConnectionID    uint32
	Seed            []byte // first 8 scramble bytes
	CapabilityFlags uint32
	CharacterSet    uint8
	StatusFlags     uint16
	RestOfScramble  []byte // remaining scramble bytes, trailing NUL stripped
	AuthPluginName  string
	LegacyAuth      bool // server wants the pre-4.1 scramble
}

// DecodeGreeting parses the greeting packet body.
func DecodeGreeting(body []byte) (*Greeting, error) {
	g := &Greeting{}
	pos := 0

	next := func(n int) ([]byte, error) {
		if pos+n > len(body) {
			return nil, fmt.Errorf("greeting truncated at offset %d (need %d bytes)", pos, n)
		}
		b := body[pos : pos+n]
		pos += n
		return b, nil
	}
	nextString := func() (string, error) {
		for i := pos; i < len(body); i++ {
			if body[i] == 0x00 {
				s := string(body[pos:i])
				pos = i + 1
				return s, nil
			}
		}
		return "", fmt.Errorf("greeting: unterminated string at offset %d", pos)
	}

	b, err := next(1)
	if err != nil {
		return nil, err
	}
	g.ProtocolVersion = b[0]

	if g.ServerVersion, err = nextString(); err != nil {
		return nil, err
	}

	if b, err = next(4); err != nil {
		return nil, err
	}
	g.ConnectionID = binary.LittleEndian.Uint32(b)

	if b, err = next(8); err != nil {
		return nil, err
	}
	g.Seed = append([]byte(nil), b...)

	if _, err = next(1); err != nil { // filler
		return nil, err
	}

	if b, err = next(2); err != nil {
		return nil, err
	}
	g.CapabilityFlags = uint32(binary.LittleEndian.Uint16(b))

	// Short pre-4.1 greetings end after the low capability bytes.
	if pos == len(body) {
		g.LegacyAuth = true
		return g, nil
	}

	if b, err = next(1); err != nil {
		return nil, err
	}
	g.CharacterSet = b[0]

	if b, err = next(2); err != nil {
		return nil, err
	}
	g.StatusFlags = binary.LittleEndian.Uint16(b)

	if b, err = next(2); err != nil {
		return nil, err
	}
	g.CapabilityFlags |= uint32(binary.LittleEndian.Uint16(b)) << 16

	if b, err = next(1); err != nil {
		return nil, err
	}
	scrambleLen := int(b[0])

	if _, err = next(10); err != nil { // reserved
		return nil, err
	}

	if g.CapabilityFlags&ClientSecureConn != 0 {
		rest := scrambleLen - 8
		if rest < 13 {
			rest = 13
		}
		if b, err = next(rest); err != nil {
			return nil, err
		}
		// Last byte is a NUL terminator, not scramble material.
		g.RestOfScramble = append([]byte(nil), b[:rest-1]...)
	}

	if g.CapabilityFlags&ClientPluginAuth != 0 && pos < len(body) {
		// Some servers omit the final NUL; tolerate both forms.
		end := pos
		for end < len(body) && body[end] != 0x00 {
			end++
		}
		g.AuthPluginName = string(body[pos:end])
	}

	g.LegacyAuth = g.CapabilityFlags&ClientSecureConn == 0 ||
		g.AuthPluginName == OldPasswordPlugin
	return g, nil
}

// ScrambleBuffer returns the full scramble the modern auth response is
// computed against: seed followed by the rest-of-scramble bytes.
func (g *Greeting) ScrambleBuffer() []byte {
	buf := make([]byte, 0, len(g.Seed)+len(g.RestOfScramble))
	buf = append(buf, g.Seed...)
	return append(buf, g.RestOfScramble...)
}

// ClientAuth is the authentication packet the client answers the greeting with.
type ClientAuth struct {
	CapabilityFlags uint32
	MaxPacketSize   uint32
	CharacterSet    uint8
	Username        string
	AuthResponse    []byte
	Database        string
}

// Encode serializes the client authentication packet body.
func (a *ClientAuth) Encode() []byte {
	capabilities := a.CapabilityFlags | ClientLongPassword | ClientLongFlag |
		ClientProtocol41 | ClientTransactions | ClientSecureConn
	if a.Database != "" {
		capabilities |= ClientConnectWithDB
	}

	buf := make([]byte, 0, 32+len(a.Username)+len(a.AuthResponse)+len(a.Database)+3)
	buf = binary.LittleEndian.AppendUint32(buf, capabilities)
	buf = binary.LittleEndian.AppendUint32(buf, a.MaxPacketSize)
	buf = append(buf, a.CharacterSet)
	buf = append(buf, make([]byte, 23)...) // reserved

	buf = append(buf, a.Username...)
	buf = append(buf, 0x00)

	buf = append(buf, byte(len(a.AuthResponse)))
	buf = append(buf, a.AuthResponse...)

	if capabilities&ClientConnectWithDB != 0 {
		buf = append(buf, a.Database...)
		buf = append(buf, 0x00)
	}
	return buf
}

// Reply323 answers an auth-switch request from a server that insists on the
// legacy scramble. The body is the 8-byte response alone; an empty response
// means anonymous (passwordless) auth.
type Reply323 struct {
	AuthResponse []byte
}

// Encode serializes the legacy reply body.
func (r *Reply323) Encode() []byte {
	return append([]byte(nil), r.AuthResponse...)
}

// ServerError is a decoded ERR packet.
type ServerError struct {
	Code     uint16
	SQLState string
	Message  string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.Code, e.SQLState, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// DecodeServerError parses an ERR packet body (first byte 0xFF).
func DecodeServerError(body []byte) (*ServerError, error) {
	if len(body) < 3 || body[0] != 0xFF {
		return nil, fmt.Errorf("not an ERR packet (%d bytes)", len(body))
	}
	e := &ServerError{Code: binary.LittleEndian.Uint16(body[1:3])}
	rest := body[3:]
	if len(rest) >= 6 && rest[0] == '#' {
		e.SQLState = string(rest[1:6])
		rest = rest[6:]
	}
	e.Message = string(rest)
	return e, nil
}
