package reactive

// handle addresses a node in the graph arena. The generation is bumped each
// time a slot is released, so handles held past disposal resolve to nil.
type handle struct {
	index uint32
	gen   uint32
}

// valid reports whether h was ever issued. The zero handle means "none".
func (h handle) valid() bool {
	return h.gen != 0
}

// nodeKind discriminates the three kinds of reactive node.
type nodeKind uint8

const (
	kindSignal nodeKind = iota + 1
	kindComputed
	kindEffect
)

// String returns a human-readable name for the node kind.
func (k nodeKind) String() string {
	switch k {
	case kindSignal:
		return "signal"
	case kindComputed:
		return "computed"
	case kindEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// nodeFlags is the state bitset of a node.
type nodeFlags uint8

const (
	// flagDirty marks a Computed whose cached value is stale.
	flagDirty nodeFlags = 1 << iota
	// flagQueued marks an Effect sitting in the flush queue.
	flagQueued
	// flagRunning marks a Computed or Effect currently evaluating.
	flagRunning
)

// runner is implemented by effects so the flush loop can re-run them
// without knowing their concrete type.
type runner interface {
	run()
}

// node is one arena slot. Edge sets are handle slices kept in insertion
// order so notification order is deterministic.
type node struct {
	kind    nodeKind
	flags   nodeFlags
	gen     uint32
	live    bool
	version uint64
	label   string

	// sources are the nodes this node read during its last evaluation.
	sources []handle

	// observers are the nodes that read this node.
	observers []handle

	// effect is set for kindEffect nodes.
	effect runner
}

// graph is the arena that owns every node and edge of a Runtime.
// Nodes are stored by pointer so a *node stays valid while the arena grows.
type graph struct {
	nodes []*node
	free  []uint32
	live  int
}

// alloc reserves a slot for a new node and returns its handle.
func (g *graph) alloc(kind nodeKind, label string) handle {
	var idx uint32
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		idx = uint32(len(g.nodes))
		g.nodes = append(g.nodes, &node{})
	}

	n := g.nodes[idx]
	n.gen++
	n.kind = kind
	n.flags = 0
	n.live = true
	n.version = 0
	n.label = label
	n.sources = n.sources[:0]
	n.observers = n.observers[:0]
	n.effect = nil
	g.live++

	return handle{index: idx, gen: n.gen}
}

// get resolves a handle, returning nil for stale or zero handles.
func (g *graph) get(h handle) *node {
	if !h.valid() || int(h.index) >= len(g.nodes) {
		return nil
	}
	n := g.nodes[h.index]
	if !n.live || n.gen != h.gen {
		return nil
	}
	return n
}

// release detaches every edge of h and returns its slot to the free list.
func (g *graph) release(h handle) {
	n := g.get(h)
	if n == nil {
		return
	}
	g.unlinkSources(h)
	g.unlinkObservers(h)
	n.live = false
	n.effect = nil
	n.gen++
	g.free = append(g.free, h.index)
	g.live--
}

// link records that obs read src. Duplicate edges are ignored.
func (g *graph) link(src, obs handle) {
	s := g.get(src)
	o := g.get(obs)
	if s == nil || o == nil {
		return
	}
	for _, existing := range o.sources {
		if existing == src {
			return
		}
	}
	o.sources = append(o.sources, src)
	s.observers = append(s.observers, obs)
}

// unlinkSources removes every upstream edge of obs.
func (g *graph) unlinkSources(obs handle) {
	o := g.get(obs)
	if o == nil {
		return
	}
	for _, src := range o.sources {
		if s := g.get(src); s != nil {
			s.observers = removeHandle(s.observers, obs)
		}
	}
	o.sources = o.sources[:0]
}

// unlinkObservers removes every downstream edge of src.
func (g *graph) unlinkObservers(src handle) {
	s := g.get(src)
	if s == nil {
		return
	}
	for _, obs := range s.observers {
		if o := g.get(obs); o != nil {
			o.sources = removeHandle(o.sources, src)
		}
	}
	s.observers = s.observers[:0]
}

// removeHandle deletes h from hs preserving order.
func removeHandle(hs []handle, h handle) []handle {
	for i, existing := range hs {
		if existing == h {
			copy(hs[i:], hs[i+1:])
			return hs[:len(hs)-1]
		}
	}
	return hs
}
