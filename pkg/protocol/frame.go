package protocol

import (
	"errors"
	"io"
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameSnapshot FrameType = 0x01 // Server → Client full list
	FramePatches  FrameType = 0x02 // Server → Client incremental patches
	FrameControl  FrameType = 0x03 // Ping, pong, resync
	FrameError    FrameType = 0x05 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameSnapshot:
		return "Snapshot"
	case FramePatches:
		return "Patches"
	case FrameControl:
		return "Control"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Valid reports whether ft is a known frame type.
func (ft FrameType) Valid() bool {
	switch ft {
	case FrameSnapshot, FramePatches, FrameControl, FrameError:
		return true
	}
	return false
}

// ErrInvalidFrameType is returned for unknown frame types.
var ErrInvalidFrameType = errors.New("protocol: invalid frame type")

// EncodeFrame prefixes payload with its frame type.
func EncodeFrame(ft FrameType, payload []byte) []byte {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(ft)
	copy(buf[1:], payload)
	return buf
}

// DecodeFrame splits a message into its type and payload. The payload
// aliases data.
func DecodeFrame(data []byte) (FrameType, []byte, error) {
	if len(data) < 1 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	ft := FrameType(data[0])
	if !ft.Valid() {
		return 0, nil, ErrInvalidFrameType
	}
	return ft, data[1:], nil
}
