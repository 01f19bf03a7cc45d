package middleware

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordingTracer records what the middleware does to its spans.
type recordingTracer struct {
	trace.Tracer
	spans []*recordingSpan
}

func newRecordingTracer() *recordingTracer {
	return &recordingTracer{Tracer: noop.NewTracerProvider().Tracer("test")}
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, inner := r.Tracer.Start(ctx, name, opts...)
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{Span: inner, name: name, kind: cfg.SpanKind()}
	span.attrs = append(span.attrs, cfg.Attributes()...)
	r.spans = append(r.spans, span)
	return trace.ContextWithSpan(ctx, span), span
}

type recordingSpan struct {
	trace.Span
	name   string
	kind   trace.SpanKind
	attrs  []attribute.KeyValue
	status codes.Code
	ended  bool
}

func (s *recordingSpan) SetName(name string)                    { s.name = name }
func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) { s.attrs = append(s.attrs, kv...) }
func (s *recordingSpan) SetStatus(code codes.Code, _ string)    { s.status = code }
func (s *recordingSpan) End(...trace.SpanEndOption)             { s.ended = true }

func (s *recordingSpan) attr(key string) attribute.Value {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestTracingNamesSpanByRoute(t *testing.T) {
	tracer := newRecordingTracer()
	h := testRouter(Tracing(WithTracer(tracer)))

	serve(h, http.MethodGet, "/items/a")
	serve(h, http.MethodGet, "/boom")

	if len(tracer.spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(tracer.spans))
	}

	ok := tracer.spans[0]
	if ok.name != "HTTP GET /items/{key}" {
		t.Errorf("span name = %q", ok.name)
	}
	if ok.kind != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", ok.kind)
	}
	if got := ok.attr("http.status_code").AsInt64(); got != 200 {
		t.Errorf("status attribute = %d, want 200", got)
	}
	if got := ok.attr("http.target").AsString(); got != "/items/a" {
		t.Errorf("target attribute = %q", got)
	}
	if ok.status != codes.Ok || !ok.ended {
		t.Errorf("expected an ended ok span, got status=%v ended=%v", ok.status, ok.ended)
	}

	failed := tracer.spans[1]
	if failed.status != codes.Error {
		t.Errorf("5xx should mark the span failed, got %v", failed.status)
	}
}

func TestTracingSpanInRequestContext(t *testing.T) {
	tracer := newRecordingTracer()
	var seen trace.Span
	h := Tracing(WithTracer(tracer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanFromContext(r.Context())
	}))

	serve(h, http.MethodGet, "/raw")
	if len(tracer.spans) != 1 || seen != trace.Span(tracer.spans[0]) {
		t.Fatal("handler should see the request span")
	}
	if got := tracer.spans[0].attr("http.route").AsString(); got != unmatchedRoute {
		t.Errorf("route without chi = %q, want %q", got, unmatchedRoute)
	}
}

func TestTracingFilterAndExtractor(t *testing.T) {
	tracer := newRecordingTracer()
	h := testRouter(Tracing(
		WithTracer(tracer),
		WithFilter(func(r *http.Request) bool { return r.URL.Path != "/boom" }),
		WithAttributeExtractor(func(*http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	))

	serve(h, http.MethodGet, "/boom")
	serve(h, http.MethodGet, "/items/a")

	if len(tracer.spans) != 1 {
		t.Fatalf("filtered request was traced: %d spans", len(tracer.spans))
	}
	if got := tracer.spans[0].attr("test.attr").AsString(); got != "ok" {
		t.Errorf("extractor attribute = %q", got)
	}
}
