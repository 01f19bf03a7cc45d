// Package protocol implements the binary wire format the live host uses to
// stream list patches to browsers.
//
// # Wire Format
//
// Every WebSocket message is one frame:
//
//	┌─────────────┬───────────────────────────────┐
//	│ Frame Type  │ Payload (variable length)     │
//	│ (1 byte)    │                               │
//	└─────────────┴───────────────────────────────┘
//
// The WebSocket message boundary delimits the payload, so frames carry no
// length header.
//
// # Frame Types
//
//   - FrameSnapshot (0x01): patches that rebuild the list from empty
//   - FramePatches (0x02): incremental patches
//   - FrameControl (0x03): ping, pong, resync
//   - FrameError (0x05): error message
//
// # Patch Batches
//
// Snapshot and patch payloads share one layout: a uvarint patch count,
// then for each patch an op byte, a uvarint node id and the op's fields:
//
//	SetText     value
//	SetAttr     key value
//	RemoveAttr  key
//	InsertNode  after tag value
//	RemoveNode  -
//	MoveNode    after
//
// Strings are a uvarint byte length followed by UTF-8 bytes. Node id 0 is
// the list anchor.
//
// # Usage
//
//	data := protocol.EncodeFrame(protocol.FramePatches, protocol.EncodePatches(patches))
//
//	ft, payload, err := protocol.DecodeFrame(data)
//	patches, err := protocol.DecodePatches(payload)
package protocol
