package live

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vbind/internal/config"
	"github.com/vango-dev/vbind/internal/telemetry"
	"github.com/vango-dev/vbind/pkg/expr"
	"github.com/vango-dev/vbind/pkg/reactive"
	"github.com/vango-dev/vbind/pkg/reconcile"
	"github.com/vango-dev/vbind/pkg/vdom"
)

var (
	// ErrClosed is returned by Dispatch and Do after Close.
	ErrClosed = stderrors.New("live: host closed")

	// ErrQueueFull is returned by Dispatch when the queue is full.
	ErrQueueFull = stderrors.New("live: dispatch queue full")
)

// Host serves one reconciled list.
type Host struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	registry  *prometheus.Registry
	tracer    trace.Tracer

	// Owned by the event loop.
	rt      *reactive.Runtime
	items   *reactive.Signal[any]
	list    *vdom.List
	rec     *reconcile.Reconciler[*vdom.VNode]
	key     reconcile.KeyFunc
	clients map[*client]struct{}

	dispatchCh chan job
	done       chan struct{}
	loopDone   chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup

	connMu sync.Mutex
	conns  map[*client]struct{}
	closed bool

	upgrader   websocket.Upgrader
	router     chi.Router
	sendBuffer int
}

// NewHost builds a host from cfg and starts its event loop. A nil cfg
// uses config.Default().
func NewHost(cfg *config.Config, opts ...Option) *Host {
	if cfg == nil {
		cfg = config.Default()
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(cfg.TracerName)
	}

	h := &Host{
		cfg:        cfg,
		logger:     o.logger.With("component", "live"),
		telemetry:  telemetry.New(telemetry.WithRegistry(o.registry), telemetry.WithTracer(o.tracer)),
		registry:   o.registry,
		tracer:     o.tracer,
		clients:    make(map[*client]struct{}),
		conns:      make(map[*client]struct{}),
		dispatchCh: make(chan job, o.queueSize),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		sendBuffer: o.sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	h.rt = reactive.NewRuntime(
		reactive.WithLogger(h.logger),
		reactive.WithObserver(h.telemetry),
		reactive.WithStrict(cfg.Strict),
		reactive.WithEffectBudget(cfg.RuntimeBudget()),
	)
	h.list = vdom.NewList()
	h.key = reconcile.KeyByField(cfg.KeyField)
	h.items = reactive.NewSignal[any](h.rt, h.validItems(o.items)).WithLabel("items")

	h.rec = reconcile.New[*vdom.VNode](h.rt, h.list,
		reconcile.Source(func() any { return h.items.Get() }),
		reconcile.Key(h.key),
		reconcile.Template(vdom.Element(cfg.ItemTag, nil)),
		reconcile.Bind[*vdom.VNode](h.bind),
		reconcile.Logger(h.logger),
		reconcile.WithObserver(h.telemetry),
		reconcile.Label("items"),
	).Start()
	h.list.Drain()

	h.router = h.routes()

	go h.loop()
	return h
}

// validItems drops an initial list that cannot be keyed.
func (h *Host) validItems(items []any) []any {
	if items == nil {
		return []any{}
	}
	if err := h.checkKeys(items); err != nil {
		h.logger.Warn("initial items rejected", "error", err)
		return []any{}
	}
	return items
}

// bind renders one item.
func (h *Host) bind(node *vdom.VNode, scope *reconcile.Scope, item *reconcile.RenderedItem[*vdom.VNode]) {
	h.list.SetAttr(node, "data-key", fmt.Sprint(item.Key()))
	h.rt.Watch(func() {
		h.list.SetText(node, h.text(scope.Item()))
	}, reactive.EffectLabel("item-text"))
}

// text renders an item with the configured text field.
func (h *Host) text(item any) string {
	if h.cfg.TextField == "" {
		return fmt.Sprint(item)
	}
	v, err := expr.Get(item, h.cfg.TextField)
	if err != nil || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// checkKeys computes every key of items without mutating anything.
func (h *Host) checkKeys(items []any) error {
	for i, item := range items {
		if _, err := h.key(item, i); err != nil {
			return fmt.Errorf("live: key for index %d: %w", i, err)
		}
	}
	return nil
}

// Handler returns the HTTP handler.
func (h *Host) Handler() http.Handler {
	return h.router
}

// Telemetry returns the host telemetry.
func (h *Host) Telemetry() *telemetry.Telemetry {
	return h.telemetry
}

// Registry returns the metrics registry.
func (h *Host) Registry() *prometheus.Registry {
	return h.registry
}

// job is one unit of event-loop work. fn runs inside a batch; after runs
// once the batch has flushed; the error is delivered on result.
type job struct {
	fn     func() error
	after  func()
	result chan error
}

// Dispatch queues fn to run on the event loop inside a batch. Patches
// produced by fn are broadcast when it returns.
func (h *Host) Dispatch(fn func()) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	j := job{fn: func() error { fn(); return nil }}
	select {
	case h.dispatchCh <- j:
		return nil
	case <-h.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// Do runs fn on the event loop and waits for it. It returns fn's error,
// ctx's error, or ErrClosed.
func (h *Host) Do(ctx context.Context, fn func() error) error {
	return h.submit(ctx, job{fn: fn})
}

// submit queues j and waits for its result.
func (h *Host) submit(ctx context.Context, j job) error {
	j.result = make(chan error, 1)
	select {
	case h.dispatchCh <- j:
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.result:
		return err
	case <-h.loopDone:
		select {
		case err := <-j.result:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop runs queued jobs until Close.
func (h *Host) loop() {
	defer close(h.loopDone)
	for {
		select {
		case j := <-h.dispatchCh:
			h.execute(j)
		case <-h.done:
			return
		}
	}
}

// execute runs one job and broadcasts the resulting patches.
func (h *Host) execute(j job) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("live: dispatch panic: %v", r)
		}
		h.sweep()
		h.flushPatches()
		if j.result != nil {
			j.result <- err
		}
	}()

	h.rt.Batch(func() {
		err = j.fn()
	})
	if err == nil && j.after != nil {
		j.after()
	}
}

// flushPatches drains the list and sends the batch to every client.
func (h *Host) flushPatches() {
	patches := h.list.Drain()
	if len(patches) == 0 {
		return
	}
	frame := patchFrame(patches)
	for c := range h.clients {
		h.sendTo(c, frame)
	}
	h.telemetry.PatchesSent(len(patches))
}

// Items returns the current list.
func (h *Host) Items(ctx context.Context) ([]any, error) {
	var out []any
	err := h.Do(ctx, func() error {
		out = slices.Clone(h.current())
		return nil
	})
	return out, err
}

// Replace sets the list. Items that cannot be keyed reject the whole list.
func (h *Host) Replace(ctx context.Context, items []any) (reconcile.Stats, error) {
	return h.mutate(ctx, func([]any) ([]any, error) {
		if items == nil {
			return []any{}, nil
		}
		return slices.Clone(items), nil
	})
}

// Append adds one item at the end.
func (h *Host) Append(ctx context.Context, item any) (reconcile.Stats, error) {
	return h.mutate(ctx, func(cur []any) ([]any, error) {
		return append(slices.Clone(cur), item), nil
	})
}

// Reverse reverses the list.
func (h *Host) Reverse(ctx context.Context) (reconcile.Stats, error) {
	return h.mutate(ctx, func(cur []any) ([]any, error) {
		next := slices.Clone(cur)
		slices.Reverse(next)
		return next, nil
	})
}

// ErrNotFound is returned by Remove for an unknown key.
var ErrNotFound = stderrors.New("live: no item with that key")

// Remove deletes every item whose key prints as key.
func (h *Host) Remove(ctx context.Context, key string) (reconcile.Stats, error) {
	return h.mutate(ctx, func(cur []any) ([]any, error) {
		next := make([]any, 0, len(cur))
		for i, item := range cur {
			k, err := h.key(item, i)
			if err == nil && fmt.Sprint(k) == key {
				continue
			}
			next = append(next, item)
		}
		if len(next) == len(cur) {
			return nil, ErrNotFound
		}
		return next, nil
	})
}

// mutate computes the next list on the loop, checks its keys and writes
// the items signal. The returned stats are those of the pass it caused.
func (h *Host) mutate(ctx context.Context, next func(cur []any) ([]any, error)) (reconcile.Stats, error) {
	var stats reconcile.Stats
	var passes int
	err := h.submit(ctx, job{
		fn: func() error {
			items, err := next(h.current())
			if err != nil {
				return err
			}
			if err := h.checkKeys(items); err != nil {
				return err
			}
			passes = h.rec.Passes()
			h.items.Set(items)
			return nil
		},
		after: func() {
			if h.rec.Passes() != passes {
				stats = h.rec.Stats()
			}
		},
	})
	return stats, err
}

// current returns the list held by the items signal.
func (h *Host) current() []any {
	items, _ := h.items.Peek().([]any)
	return items
}

// Close stops the event loop, disconnects clients and disposes the
// reconciler. It is idempotent.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		<-h.loopDone
		for c := range h.clients {
			delete(h.clients, c)
			h.telemetry.ClientDisconnected()
		}
		h.rec.Dispose()

		h.connMu.Lock()
		h.closed = true
		for c := range h.conns {
			c.close()
		}
		h.connMu.Unlock()
		h.wg.Wait()
	})
}
