package vdom

import "fmt"

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchSetText    PatchOp = 0x01 // Update text content
	PatchSetAttr    PatchOp = 0x02 // Set/update attribute
	PatchRemoveAttr PatchOp = 0x03 // Remove attribute
	PatchInsertNode PatchOp = 0x04 // Insert new node
	PatchRemoveNode PatchOp = 0x05 // Remove node
	PatchMoveNode   PatchOp = 0x06 // Move node to new position
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "SetText"
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	case PatchInsertNode:
		return "InsertNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchMoveNode:
		return "MoveNode"
	default:
		return "Unknown"
	}
}

// Patch represents a single DOM operation to apply.
type Patch struct {
	Op    PatchOp // Operation type
	ID    uint64  // Target node ID
	After uint64  // Node the target now follows (InsertNode/MoveNode); 0 is the anchor
	Tag   string  // Element tag (InsertNode)
	Key   string  // Attribute key (SetAttr/RemoveAttr)
	Value string  // Text or attribute value
}

// String returns a one-line description of the patch.
func (p Patch) String() string {
	switch p.Op {
	case PatchSetText:
		return fmt.Sprintf("SetText #%d %q", p.ID, p.Value)
	case PatchSetAttr:
		return fmt.Sprintf("SetAttr #%d %s=%q", p.ID, p.Key, p.Value)
	case PatchRemoveAttr:
		return fmt.Sprintf("RemoveAttr #%d %s", p.ID, p.Key)
	case PatchInsertNode:
		return fmt.Sprintf("InsertNode #%d after #%d <%s> %q", p.ID, p.After, p.Tag, p.Value)
	case PatchRemoveNode:
		return fmt.Sprintf("RemoveNode #%d", p.ID)
	case PatchMoveNode:
		return fmt.Sprintf("MoveNode #%d after #%d", p.ID, p.After)
	}
	return fmt.Sprintf("%v #%d", p.Op, p.ID)
}
