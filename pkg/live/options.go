package live

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// DefaultQueueSize is the capacity of the dispatch queue.
const DefaultQueueSize = 256

// DefaultSendBuffer is the number of frames buffered per client.
const DefaultSendBuffer = 64

// Option configures a Host.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	registry   *prometheus.Registry
	tracer     trace.Tracer
	items      []any
	queueSize  int
	sendBuffer int
}

func defaultOptions() options {
	return options{
		logger:     slog.Default(),
		queueSize:  DefaultQueueSize,
		sendBuffer: DefaultSendBuffer,
	}
}

// WithLogger sets the host logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegistry registers host metrics on registry and serves it on the
// metrics path. The default is a fresh registry per host.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithTracer sets the tracer used for flush and reconcile spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithItems sets the initial list.
func WithItems(items []any) Option {
	return func(o *options) {
		o.items = items
	}
}

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithSendBuffer sets the per-client frame buffer.
func WithSendBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sendBuffer = n
		}
	}
}
