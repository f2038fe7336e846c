// Package frame implements the length-prefixed framing used to carry
// variable-length payloads over a byte stream:
//
//	| length uint32 (big endian) | payload (length bytes) |
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cyberinferno/netlab/transfer"
)

const (
	// HeaderSize is the size of the length prefix in bytes.
	HeaderSize = 4

	// MaxPayloadSize is the largest payload a peer may declare.
	MaxPayloadSize uint32 = 10 * 1024 * 1024
)

// ErrFrameTooLarge is returned when a declared payload length exceeds the
// allowed maximum. The stream position can no longer be trusted afterwards,
// so the connection must be dropped.
var ErrFrameTooLarge = errors.New("frame: payload too large")

// Encode returns the frame for payload: the 4-byte big-endian length
// followed by the payload bytes.
func Encode(payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// DecodeHeader returns the payload length declared by a frame header.
func DecodeHeader(header [HeaderSize]byte) uint32 {
	return binary.BigEndian.Uint32(header[:])
}

// CheckLength rejects declared lengths above max.
func CheckLength(declared, max uint32) error {
	if declared > max {
		return fmt.Errorf("%w: declared %d bytes, max %d", ErrFrameTooLarge, declared, max)
	}

	return nil
}

// ReadHeader reads and decodes one frame header from r.
func ReadHeader(r io.Reader) (uint32, error) {
	var header [HeaderSize]byte
	if err := transfer.RecvFull(r, header[:]); err != nil {
		return 0, fmt.Errorf("frame header: %w", err)
	}

	return DecodeHeader(header), nil
}

// ReadFrame reads one frame from r. The declared length is validated against
// max before any payload byte is allocated or read.
//
// Parameters:
//   - r: The source stream
//   - max: Largest acceptable payload length
//
// Returns:
//   - The payload bytes (empty, never nil, for a zero-length frame)
//   - ErrFrameTooLarge, or a transfer error from the header or body read
func ReadFrame(r io.Reader, max uint32) ([]byte, error) {
	declared, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	if err := CheckLength(declared, max); err != nil {
		return nil, err
	}

	payload, err := transfer.RecvAll(r, int(declared))
	if err != nil {
		return nil, fmt.Errorf("frame body: %w", err)
	}

	return payload, nil
}

// WriteFrame encodes payload and sends the whole frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if err := transfer.SendAll(w, Encode(payload)); err != nil {
		return fmt.Errorf("frame write: %w", err)
	}

	return nil
}
