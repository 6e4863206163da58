// Package protocol defines the length-prefixed text framing and the
// command grammar spoken between parley clients and the server.
//
// Every frame is a 4-byte big-endian length followed by exactly that
// many bytes of UTF-8 text. Server-to-client frames carry a tag prefix
// ("OK:", "ERR:", ...) so clients can route display logic without
// parsing free text.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	// headerSize is the byte size of the length prefix.
	headerSize = 4

	// DefaultMaxFrameSize is the payload cap applied when a caller
	// passes no explicit limit. Matches the cap the terminal client
	// assumes.
	DefaultMaxFrameSize = 4096
)

var (
	// ErrFrameTooLarge is returned when a length prefix exceeds the
	// configured cap. The payload is never read, so a hostile peer
	// cannot make the server allocate or consume an unbounded frame.
	ErrFrameTooLarge = errors.New("protocol: frame exceeds size limit")

	// ErrFrameMalformed is returned when a payload is not valid UTF-8.
	ErrFrameMalformed = errors.New("protocol: frame payload is not valid UTF-8")

	// ErrFrameEmpty is returned when writing a frame with no payload.
	ErrFrameEmpty = errors.New("protocol: refusing to write empty frame")
)

// WriteFrame writes one framed message. The header and payload go out
// in a single Write call so frames from concurrent senders to the same
// connection never interleave mid-frame.
func WriteFrame(w io.Writer, maxSize int, text string) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	data := []byte(text)
	if len(data) == 0 {
		return ErrFrameEmpty
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}

	buf := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint32(buf[:headerSize], uint32(len(data)))
	copy(buf[headerSize:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one framed message. A peer that closes the stream
// cleanly between frames yields io.EOF; a close mid-frame yields
// io.ErrUnexpectedEOF. Both are distinct from ErrFrameTooLarge and
// ErrFrameMalformed so callers can tell a gone peer from a hostile one.
//
// ReadFrame blocks until a full frame arrives; the caller bounds that
// wait with a read deadline on the underlying connection.
func ReadFrame(r io.Reader, maxSize int) (string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return "", err
		}
		return "", fmt.Errorf("protocol: read header: %w", err)
	}

	length := binary.BigEndian.Uint32(header)
	if length == 0 || length > uint32(maxSize) {
		return "", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return "", io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("protocol: read payload: %w", err)
	}

	if !utf8.Valid(data) {
		return "", ErrFrameMalformed
	}
	return string(data), nil
}
