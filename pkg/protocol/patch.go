package protocol

import (
	"errors"
	"fmt"

	"github.com/vango-dev/vbind/pkg/vdom"
)

// ErrUnknownPatchOp is returned when a batch contains an unknown op byte.
var ErrUnknownPatchOp = errors.New("protocol: unknown patch op")

// EncodePatches encodes a patch batch to bytes.
func EncodePatches(patches []vdom.Patch) []byte {
	e := NewEncoderWithCap(1 + len(patches)*8)
	EncodePatchesTo(e, patches)
	return e.Bytes()
}

// EncodePatchesTo encodes a patch batch using the provided encoder.
func EncodePatchesTo(e *Encoder, patches []vdom.Patch) {
	e.WriteUvarint(uint64(len(patches)))
	for i := range patches {
		encodePatch(e, &patches[i])
	}
}

func encodePatch(e *Encoder, p *vdom.Patch) {
	e.WriteByte(byte(p.Op))
	e.WriteUvarint(p.ID)

	switch p.Op {
	case vdom.PatchSetText:
		e.WriteString(p.Value)
	case vdom.PatchSetAttr:
		e.WriteString(p.Key)
		e.WriteString(p.Value)
	case vdom.PatchRemoveAttr:
		e.WriteString(p.Key)
	case vdom.PatchInsertNode:
		e.WriteUvarint(p.After)
		e.WriteString(p.Tag)
		e.WriteString(p.Value)
	case vdom.PatchRemoveNode:
		// No additional data
	case vdom.PatchMoveNode:
		e.WriteUvarint(p.After)
	}
}

// DecodePatches decodes a patch batch from bytes.
func DecodePatches(data []byte) ([]vdom.Patch, error) {
	d := NewDecoder(data)
	return DecodePatchesFrom(d)
}

// DecodePatchesFrom decodes a patch batch from a decoder.
func DecodePatchesFrom(d *Decoder) ([]vdom.Patch, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	patches := make([]vdom.Patch, count)
	for i := range patches {
		if err := decodePatch(d, &patches[i]); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
	}
	return patches, nil
}

func decodePatch(d *Decoder, p *vdom.Patch) error {
	op, err := d.ReadByte()
	if err != nil {
		return err
	}
	p.Op = vdom.PatchOp(op)

	if p.ID, err = d.ReadUvarint(); err != nil {
		return err
	}

	switch p.Op {
	case vdom.PatchSetText:
		p.Value, err = d.ReadString()
	case vdom.PatchSetAttr:
		if p.Key, err = d.ReadString(); err != nil {
			return err
		}
		p.Value, err = d.ReadString()
	case vdom.PatchRemoveAttr:
		p.Key, err = d.ReadString()
	case vdom.PatchInsertNode:
		if p.After, err = d.ReadUvarint(); err != nil {
			return err
		}
		if p.Tag, err = d.ReadString(); err != nil {
			return err
		}
		p.Value, err = d.ReadString()
	case vdom.PatchRemoveNode:
	case vdom.PatchMoveNode:
		p.After, err = d.ReadUvarint()
	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnknownPatchOp, op)
	}
	return err
}
