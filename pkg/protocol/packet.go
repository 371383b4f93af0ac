package protocol

import (
	"errors"
	"fmt"
	"io"
)

// MaxPayloadSize is the largest body a single packet can carry (2^24 - 1).
const MaxPayloadSize = 16777215

// HeaderSize is the fixed size of the packet header: 3-byte little-endian
// payload length followed by a 1-byte sequence number.
const HeaderSize = 4

var (
	// ErrShortRead is returned when the stream closes before a full header
	// or body has been read.
	ErrShortRead = errors.New("short read from server")

	// ErrWriteFailure is returned when a packet could not be fully flushed.
	ErrWriteFailure = errors.New("write to server failed")

	// ErrPacketTooLarge is returned for payloads that do not fit in one packet.
	ErrPacketTooLarge = errors.New("packet payload too large")
)

// Header is the decoded 4-byte packet header.
type Header struct {
	Length     uint32
	SequenceID uint8
}

// Packet is a MySQL wire protocol packet: header plus payload.
type Packet struct {
	Header
	Payload []byte
}

// EncodeHeader writes a packet header into buf, which must hold HeaderSize bytes.
func EncodeHeader(buf []byte, length uint32, seq uint8) {
	buf[0] = byte(length)
	buf[1] = byte(length >> 8)
	buf[2] = byte(length >> 16)
	buf[3] = seq
}

// DecodeHeader parses a 4-byte packet header.
func DecodeHeader(buf []byte) Header {
	return Header{
		Length:     uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16,
		SequenceID: buf[3],
	}
}

// ReadHeader reads exactly one packet header from the stream.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("%w: reading packet header: %v", ErrShortRead, err)
	}
	return DecodeHeader(buf), nil
}

// ReadBody reads exactly length body bytes from the stream.
func ReadBody(r io.Reader, length uint32) ([]byte, error) {
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: reading %d-byte packet body: %v", ErrShortRead, length, err)
	}
	return body, nil
}

// ReadPacket reads one full packet (header and body) from the stream.
func ReadPacket(r io.Reader) (*Packet, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	payload, err := ReadBody(r, header.Length)
	if err != nil {
		return nil, err
	}
	return &Packet{Header: header, Payload: payload}, nil
}

// WritePacket frames the given buffers as a single packet and writes it out.
// The buffers are concatenated into one body; the header carries the combined
// length and the given sequence number. A partial write counts as a failure:
// net.Conn retries partial writes internally, and the byte count is verified
// here on top of that.
func WritePacket(w io.Writer, seq uint8, bufs ...[]byte) error {
	var length int
	for _, b := range bufs {
		length += len(b)
	}
	if length > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, length)
	}

	out := make([]byte, HeaderSize, HeaderSize+length)
	EncodeHeader(out, uint32(length), seq)
	for _, b := range bufs {
		out = append(out, b...)
	}

	n, err := w.Write(out)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	if n != len(out) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrWriteFailure, n, len(out))
	}
	return nil
}
