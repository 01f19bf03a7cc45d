// Package vdom provides an in-memory render target for vbind.
//
// A List is a flat, ordered sequence of VNodes that follows a fixed anchor
// node. It implements the reconciler's target contract (create, insert
// after, remove, next sibling) and records every visible change as a
// Patch, so a host can forward the changes to a real DOM.
//
// # Core Types
//
// VNode is one rendered node: an element with a tag, props and text.
// Template describes the node the reconciler clones for each new item.
//
// # Patches
//
// Drain returns the patches recorded since the last call:
//
//	list := vdom.NewList()
//	// ... reconcile into list ...
//	for _, p := range list.Drain() {
//	    fmt.Println(p.Op, p.ID, p.After)
//	}
//
// Moving an attached node with InsertAfter records a MoveNode patch rather
// than a removal and an insertion, so node identity survives reordering.
package vdom
