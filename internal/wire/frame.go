// Package wire implements the framed protocol spoken between the daemon
// and an attached client over the session's Unix socket.
//
// Every message is [type:1][length:4 LE][payload:length]. Client and
// server message spaces reuse the same numeric values for different
// purposes — callers must not cross the two without going through the
// Client*/Server* constants below.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed header length: 1 type byte + 4 length bytes.
const HeaderSize = 5

// Client → server message types.
const (
	ClientInput  byte = 0x01 // payload: raw bytes to write to the PTY
	ClientResize byte = 0x02 // payload: 4-byte resize payload
	ClientDetach byte = 0x03 // payload: empty, advisory
)

// Server → client message types.
const (
	ServerOutput     byte = 0x01 // payload: raw PTY output bytes
	ServerExit       byte = 0x02 // payload: 4-byte i32 LE exit code
	ServerScrollback byte = 0x80 // payload: sanitized accumulated scrollback
)

// Encode serializes type and payload into a single frame.
func Encode(msgType byte, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = msgType
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf
}

// DecodeHeader splits a 5-byte header into its type and payload length.
func DecodeHeader(header [HeaderSize]byte) (msgType byte, length uint32) {
	return header[0], binary.LittleEndian.Uint32(header[1:5])
}

// EncodeResize packs cols/rows into the 4-byte resize payload.
func EncodeResize(cols, rows uint16) [4]byte {
	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[0:2], cols)
	binary.LittleEndian.PutUint16(buf[2:4], rows)
	return buf
}

// DecodeResize unpacks a 4-byte resize payload into cols/rows.
func DecodeResize(payload [4]byte) (cols, rows uint16) {
	return binary.LittleEndian.Uint16(payload[0:2]), binary.LittleEndian.Uint16(payload[2:4])
}

// Frame is a decoded message, used by readers that parse a whole stream
// (tests read from a blocking io.Reader with ReadFrame; the daemon and
// the bridge parse greedily out of a byte buffer instead — see
// ParseFrame).
type Frame struct {
	Type    byte
	Payload []byte
}

// ReadFrame reads one frame from r. It is used by tests and by any
// consumer that wants blocking, whole-stream framing instead of the
// non-blocking buffer parsing the daemon and bridge use internally.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	msgType, length := DecodeHeader(header)
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return Frame{Type: msgType, Payload: payload}, nil
}

// ParseFrame extracts the first complete frame from buf, if any. It
// returns the frame, the number of bytes consumed, and whether a
// complete frame was found. Incomplete trailing bytes are left alone —
// callers keep them in the buffer for the next read.
func ParseFrame(buf []byte) (frame Frame, consumed int, ok bool) {
	if len(buf) < HeaderSize {
		return Frame{}, 0, false
	}
	var header [HeaderSize]byte
	copy(header[:], buf[:HeaderSize])
	msgType, length := DecodeHeader(header)
	total := HeaderSize + int(length)
	if len(buf) < total {
		return Frame{}, 0, false
	}
	payload := make([]byte, length)
	copy(payload, buf[HeaderSize:total])
	return Frame{Type: msgType, Payload: payload}, total, true
}
