package reconcile

// Target is the render target a Reconciler drives. N is the node handle
// type; the zero N means "no node".
//
// Next must return the node currently following node, so the reconciler
// can skip moves for nodes that are already in place.
type Target[N comparable] interface {
	// Anchor returns the node every list item is placed after.
	Anchor() N

	// CreateNode returns a new detached node built from template.
	CreateNode(template any) N

	// InsertAfter places node directly after anchor, moving it if it
	// is already attached.
	InsertAfter(anchor, node N)

	// Remove detaches node.
	Remove(node N)

	// Next returns the node after node, or the zero N.
	Next(node N) N
}
