// Package reconcile projects an ordered collection onto a sequence of
// render-target nodes.
//
// A Reconciler keys every item, keeps exactly one RenderedItem per live
// key, and on each pass removes vanished keys, creates nodes for new keys
// and moves retained nodes only when they are out of place. Each item gets
// its own reactive Owner, so effects created by the bind callback are torn
// down exactly once when the key disappears.
//
// Basic usage:
//
//	rt := reactive.NewRuntime()
//	items := reactive.NewSignal[any](rt, []Todo{...})
//	list := vdom.NewList()
//
//	r := reconcile.New[*vdom.VNode](rt, list,
//	    reconcile.Source(func() any { return items.Get() }),
//	    reconcile.KeyExpr("item.id", expr.Path),
//	    reconcile.Bind(func(n *vdom.VNode, s *reconcile.Scope, it *reconcile.RenderedItem[*vdom.VNode]) {
//	        rt.Watch(func() { list.SetText(n, s.Item().(Todo).Title) })
//	    }),
//	)
//	r.Start()
//	defer r.Dispose()
//
// Without a key function the item index is the key. Reordering such a list
// updates item values in place instead of moving nodes.
package reconcile
