// Package live serves a reconciled list to browsers.
//
// A Host owns one reactive Runtime and runs it on a single event-loop
// goroutine. Every mutation, whether it arrives over HTTP or from Go code
// through Dispatch, runs on that goroutine inside a batch. After each
// dispatch the patches recorded by the list are encoded with package
// protocol and broadcast to every connected WebSocket client.
//
// Endpoints:
//
//	GET    /ws              binary frames: snapshot, then patch batches
//	GET    /items           JSON array of the current items
//	PUT    /items           replace the list
//	POST   /items           append one item
//	DELETE /items/{key}     remove the item with that key
//	POST   /items/reverse   reverse the list
//	GET    /healthz         liveness
//	GET    /metrics         Prometheus metrics
//	GET    /                minimal browser client
package live
