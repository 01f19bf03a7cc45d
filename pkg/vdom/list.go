package vdom

import (
	"fmt"
	"maps"
	"slices"
)

// List is an ordered sequence of nodes following an anchor. It records
// visible changes as patches. A List is not safe for concurrent use.
type List struct {
	anchor  *VNode
	tail    *VNode
	nextID  uint64
	length  int
	patches []Patch
}

// NewList creates an empty list.
func NewList() *List {
	l := &List{}
	l.anchor = &VNode{Kind: KindAnchor, list: l, attached: true}
	l.tail = l.anchor
	return l
}

// Anchor returns the placeholder node every item follows.
func (l *List) Anchor() *VNode {
	return l.anchor
}

// CreateNode builds a detached node. template may be a Template, a
// *VNode to clone, a tag string, or nil for a bare text node.
func (l *List) CreateNode(template any) *VNode {
	l.nextID++
	switch t := template.(type) {
	case Template:
		return t.clone(l.nextID, l)
	case *Template:
		return t.clone(l.nextID, l)
	case *VNode:
		return Template{Kind: t.Kind, Tag: t.Tag, Props: t.Props, Text: t.Text}.clone(l.nextID, l)
	case string:
		return Template{Kind: KindElement, Tag: t}.clone(l.nextID, l)
	case nil:
		return Template{Kind: KindText}.clone(l.nextID, l)
	default:
		panic(fmt.Sprintf("vdom: unsupported template type %T", template))
	}
}

// InsertAfter places node directly after anchor. An attached node is
// moved and recorded as MoveNode; a detached node is recorded as
// InsertNode.
func (l *List) InsertAfter(anchor, node *VNode) {
	if node == nil || node == anchor || node.Kind == KindAnchor {
		return
	}
	if anchor == nil {
		anchor = l.anchor
	}
	if node.list != l || anchor.list != l || !anchor.attached {
		panic("vdom: InsertAfter with a node from another list or a detached anchor")
	}

	moved := node.attached
	if moved {
		if node.prev == anchor {
			return
		}
		l.unlink(node)
	}

	node.prev = anchor
	node.next = anchor.next
	if anchor.next != nil {
		anchor.next.prev = node
	} else {
		l.tail = node
	}
	anchor.next = node
	node.attached = true
	l.length++

	if moved {
		l.record(Patch{Op: PatchMoveNode, ID: node.ID, After: anchor.ID})
		return
	}
	l.record(Patch{Op: PatchInsertNode, ID: node.ID, After: anchor.ID, Tag: node.Tag, Value: node.Text})
	for _, k := range slices.Sorted(maps.Keys(node.Props)) {
		v := node.Props[k]
		l.record(Patch{Op: PatchSetAttr, ID: node.ID, Key: k, Value: v})
	}
}

// Remove detaches node. Removing a detached node is a no-op.
func (l *List) Remove(node *VNode) {
	if node == nil || !node.attached || node.Kind == KindAnchor {
		return
	}
	l.unlink(node)
	node.prev, node.next = nil, nil
	l.record(Patch{Op: PatchRemoveNode, ID: node.ID})
}

// Next returns the node following node, or nil at the end.
func (l *List) Next(node *VNode) *VNode {
	if node == nil || !node.attached {
		return nil
	}
	return node.next
}

// SetText changes a node's text, recording a patch when it differs.
// Changes to detached nodes are folded into their insertion patch.
func (l *List) SetText(node *VNode, text string) {
	if node.Text == text {
		return
	}
	node.Text = text
	if node.attached {
		l.record(Patch{Op: PatchSetText, ID: node.ID, Value: text})
	}
}

// SetAttr sets an attribute, recording a patch when it differs.
func (l *List) SetAttr(node *VNode, key, value string) {
	if old, ok := node.Props[key]; ok && old == value {
		return
	}
	if node.Props == nil {
		node.Props = make(Props)
	}
	node.Props[key] = value
	if node.attached {
		l.record(Patch{Op: PatchSetAttr, ID: node.ID, Key: key, Value: value})
	}
}

// RemoveAttr deletes an attribute, recording a patch when present.
func (l *List) RemoveAttr(node *VNode, key string) {
	if _, ok := node.Props[key]; !ok {
		return
	}
	delete(node.Props, key)
	if node.attached {
		l.record(Patch{Op: PatchRemoveAttr, ID: node.ID, Key: key})
	}
}

// Len returns the number of attached nodes, excluding the anchor.
func (l *List) Len() int {
	return l.length
}

// Nodes returns the attached nodes in order.
func (l *List) Nodes() []*VNode {
	out := make([]*VNode, 0, l.length)
	for n := l.anchor.next; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

// Texts returns the text of every attached node in order.
func (l *List) Texts() []string {
	out := make([]string, 0, l.length)
	for n := l.anchor.next; n != nil; n = n.next {
		out = append(out, n.Text)
	}
	return out
}

// Snapshot returns the patches that rebuild the current list from empty.
func (l *List) Snapshot() []Patch {
	var out []Patch
	after := l.anchor.ID
	for n := l.anchor.next; n != nil; n = n.next {
		out = append(out, Patch{Op: PatchInsertNode, ID: n.ID, After: after, Tag: n.Tag, Value: n.Text})
		for _, k := range slices.Sorted(maps.Keys(n.Props)) {
			v := n.Props[k]
			out = append(out, Patch{Op: PatchSetAttr, ID: n.ID, Key: k, Value: v})
		}
		after = n.ID
	}
	return out
}

// Patches returns the recorded patches without clearing them.
func (l *List) Patches() []Patch {
	return l.patches
}

// Drain returns and clears the recorded patches.
func (l *List) Drain() []Patch {
	p := l.patches
	l.patches = nil
	return p
}

func (l *List) unlink(node *VNode) {
	node.prev.next = node.next
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.attached = false
	l.length--
}

func (l *List) record(p Patch) {
	l.patches = append(l.patches, p)
}
