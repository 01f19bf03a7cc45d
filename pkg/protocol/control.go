package protocol

import "fmt"

// ControlType identifies the type of control message.
type ControlType uint8

const (
	ControlPing   ControlType = 0x01 // Client/server ping
	ControlPong   ControlType = 0x02 // Response to ping
	ControlResync ControlType = 0x10 // Client requests a fresh snapshot
)

// String returns the string representation of the control type.
func (ct ControlType) String() string {
	switch ct {
	case ControlPing:
		return "Ping"
	case ControlPong:
		return "Pong"
	case ControlResync:
		return "Resync"
	default:
		return "Unknown"
	}
}

// EncodeControl encodes a control payload.
func EncodeControl(ct ControlType) []byte {
	return []byte{byte(ct)}
}

// DecodeControl decodes a control payload.
func DecodeControl(data []byte) (ControlType, error) {
	d := NewDecoder(data)
	b, err := d.ReadByte()
	if err != nil {
		return 0, err
	}
	ct := ControlType(b)
	switch ct {
	case ControlPing, ControlPong, ControlResync:
		return ct, nil
	}
	return 0, fmt.Errorf("protocol: unknown control type 0x%02x", b)
}
