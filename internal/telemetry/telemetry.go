// Package telemetry records reactive and reconcile activity as Prometheus
// metrics and OpenTelemetry spans.
//
// A *Telemetry implements both reactive.Observer and reconcile.Observer:
//
//	tel := telemetry.New(telemetry.WithRegistry(reg))
//	rt := reactive.NewRuntime(reactive.WithObserver(tel))
//	r := reconcile.New[*vdom.VNode](rt, list, reconcile.WithObserver(tel))
//
// The tracer comes from the global OpenTelemetry provider unless WithTracer
// is given. Configure the provider in main() before creating the runtime.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vbind/pkg/reactive"
	"github.com/vango-dev/vbind/pkg/reconcile"
)

// DefaultTracerName is used when no tracer name is configured.
const DefaultTracerName = "vbind"

// Config configures a Telemetry.
type Config struct {
	// Namespace is the metrics namespace (default: "vbind").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// TracerName is the name of the tracer (default: "vbind").
	TracerName string

	// Tracer overrides the tracer resolved from the global provider.
	Tracer trace.Tracer
}

// Option configures a Telemetry.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithTracer sets the tracer directly.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}

func defaultConfig() Config {
	return Config{
		Namespace:  "vbind",
		Buckets:    prometheus.DefBuckets,
		Registry:   prometheus.DefaultRegisterer,
		TracerName: DefaultTracerName,
	}
}

// Telemetry holds the collectors and tracer.
type Telemetry struct {
	tracer trace.Tracer
	ctx    context.Context

	effectRuns      *prometheus.CounterVec
	effectDuration  *prometheus.HistogramVec
	computedEvals   *prometheus.CounterVec
	flushesTotal    prometheus.Counter
	flushDuration   prometheus.Histogram
	flushRuns       prometheus.Histogram
	budgetTrips     prometheus.Counter
	budgetPending   prometheus.Gauge
	passesTotal     *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
	operationsTotal *prometheus.CounterVec
	diagnostics     *prometheus.CounterVec
	patchesSent     prometheus.Counter
	activeClients   prometheus.Gauge
	wsErrors        *prometheus.CounterVec
}

// New creates a Telemetry and registers its collectors.
func New(opts ...Option) *Telemetry {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Buckets == nil {
		config.Buckets = prometheus.DefBuckets
	}

	tracer := config.Tracer
	if tracer == nil {
		name := config.TracerName
		if name == "" {
			name = DefaultTracerName
		}
		tracer = otel.Tracer(name)
	}

	factory := promauto.With(config.Registry)
	counterOpts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}
	histogramOpts := func(name, help string, buckets []float64) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
			Buckets:     buckets,
		}
	}
	gaugeOpts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Telemetry{
		tracer: tracer,
		ctx:    context.Background(),

		effectRuns: factory.NewCounterVec(
			counterOpts("effect_runs_total", "Total number of effect runs"),
			[]string{"effect"}),
		effectDuration: factory.NewHistogramVec(
			histogramOpts("effect_duration_seconds", "Effect run duration in seconds", config.Buckets),
			[]string{"effect"}),
		computedEvals: factory.NewCounterVec(
			counterOpts("computed_evaluations_total", "Total number of computed evaluations"),
			[]string{"computed"}),
		flushesTotal: factory.NewCounter(
			counterOpts("flushes_total", "Total number of effect queue flushes")),
		flushDuration: factory.NewHistogram(
			histogramOpts("flush_duration_seconds", "Flush duration in seconds", config.Buckets)),
		flushRuns: factory.NewHistogram(
			histogramOpts("flush_effect_runs", "Effects run per flush", prometheus.ExponentialBuckets(1, 4, 8))),
		budgetTrips: factory.NewCounter(
			counterOpts("effect_budget_exceeded_total", "Flushes stopped by the effect budget")),
		budgetPending: factory.NewGauge(
			gaugeOpts("effect_budget_pending", "Effects left queued by the last budget stop")),
		passesTotal: factory.NewCounterVec(
			counterOpts("reconcile_passes_total", "Total number of reconcile passes"),
			[]string{"reconciler"}),
		passDuration: factory.NewHistogramVec(
			histogramOpts("reconcile_duration_seconds", "Reconcile pass duration in seconds", config.Buckets),
			[]string{"reconciler"}),
		operationsTotal: factory.NewCounterVec(
			counterOpts("reconcile_operations_total", "Target operations performed by reconcile passes"),
			[]string{"reconciler", "op"}),
		diagnostics: factory.NewCounterVec(
			counterOpts("reconcile_diagnostics_total", "Structural diagnostics raised by reconcile passes"),
			[]string{"reconciler", "code"}),
		patchesSent: factory.NewCounter(
			counterOpts("patches_sent_total", "Total number of patches sent to clients")),
		activeClients: factory.NewGauge(
			gaugeOpts("active_clients", "Number of connected WebSocket clients")),
		wsErrors: factory.NewCounterVec(
			counterOpts("websocket_errors_total", "Total number of WebSocket errors"),
			[]string{"kind"}),
	}
}

// WithContext returns a copy whose spans are children of the span in ctx.
func (t *Telemetry) WithContext(ctx context.Context) *Telemetry {
	cp := *t
	cp.ctx = ctx
	return &cp
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

// EffectRan implements reactive.Observer.
func (t *Telemetry) EffectRan(label string, d time.Duration) {
	label = labelOr(label, "anonymous")
	t.effectRuns.WithLabelValues(label).Inc()
	t.effectDuration.WithLabelValues(label).Observe(d.Seconds())
}

// ComputedEvaluated implements reactive.Observer.
func (t *Telemetry) ComputedEvaluated(label string, d time.Duration) {
	t.computedEvals.WithLabelValues(labelOr(label, "anonymous")).Inc()
}

// Flushed implements reactive.Observer.
func (t *Telemetry) Flushed(runs int, d time.Duration) {
	t.flushesTotal.Inc()
	t.flushDuration.Observe(d.Seconds())
	t.flushRuns.Observe(float64(runs))
	t.span("vbind.flush", d, attribute.Int("vbind.effect_runs", runs))
}

// BudgetExceeded implements reactive.Observer.
func (t *Telemetry) BudgetExceeded(pending int) {
	t.budgetTrips.Inc()
	t.budgetPending.Set(float64(pending))
}

// Reconciled implements reconcile.Observer.
func (t *Telemetry) Reconciled(label string, stats reconcile.Stats, d time.Duration) {
	label = labelOr(label, "reconcile")
	t.passesTotal.WithLabelValues(label).Inc()
	t.passDuration.WithLabelValues(label).Observe(d.Seconds())

	ops := []struct {
		op string
		n  int
	}{
		{"create", stats.Created},
		{"move", stats.Moved},
		{"remove", stats.Removed},
		{"update", stats.Updated},
	}
	for _, o := range ops {
		if o.n > 0 {
			t.operationsTotal.WithLabelValues(label, o.op).Add(float64(o.n))
		}
	}

	t.span("vbind.reconcile", d,
		attribute.String("vbind.reconciler", label),
		attribute.Int("vbind.created", stats.Created),
		attribute.Int("vbind.reused", stats.Reused),
		attribute.Int("vbind.moved", stats.Moved),
		attribute.Int("vbind.removed", stats.Removed),
		attribute.Int("vbind.updated", stats.Updated),
	)
}

// Diagnosed implements reconcile.Observer.
func (t *Telemetry) Diagnosed(label string, diag reconcile.Diagnostic) {
	t.diagnostics.WithLabelValues(labelOr(label, "reconcile"), diag.Code).Inc()
}

// PatchesSent records patches written to a client.
func (t *Telemetry) PatchesSent(n int) {
	t.patchesSent.Add(float64(n))
}

// ClientConnected records a new WebSocket client.
func (t *Telemetry) ClientConnected() {
	t.activeClients.Inc()
}

// ClientDisconnected records a closed WebSocket client.
func (t *Telemetry) ClientDisconnected() {
	t.activeClients.Dec()
}

// WebSocketError records a WebSocket failure by kind ("upgrade", "read",
// "write", "protocol").
func (t *Telemetry) WebSocketError(kind string) {
	t.wsErrors.WithLabelValues(kind).Inc()
}

// span records a finished span covering the d that just elapsed.
func (t *Telemetry) span(name string, d time.Duration, attrs ...attribute.KeyValue) {
	end := time.Now()
	_, span := t.tracer.Start(t.ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(attrs...),
	)
	span.End(trace.WithTimestamp(end))
}

var (
	_ reactive.Observer  = (*Telemetry)(nil)
	_ reconcile.Observer = (*Telemetry)(nil)
)
