package reconcile

import (
	"log/slog"
	"time"

	"github.com/vango-dev/vbind/pkg/expr"
)

// Observer receives pass statistics and diagnostics.
type Observer interface {
	// Reconciled is called after every completed pass.
	Reconciled(label string, stats Stats, d time.Duration)

	// Diagnosed is called for every diagnostic.
	Diagnosed(label string, diag Diagnostic)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) Reconciled(string, Stats, time.Duration) {}
func (NopObserver) Diagnosed(string, Diagnostic)            {}

// Option configures a Reconciler.
type Option func(*settings)

type settings struct {
	source       func() any
	itemVar      string
	indexVar     string
	key          KeyFunc
	keyExpr      string
	evaluator    expr.Evaluator
	bind         any
	template     any
	logger       *slog.Logger
	onDiagnostic func(Diagnostic)
	observer     Observer
	parent       expr.Scope
	label        string
}

func defaults() settings {
	return settings{
		itemVar:   "item",
		evaluator: expr.Path,
		logger:    slog.Default(),
		observer:  NopObserver{},
		label:     "reconcile",
	}
}

// Source sets the function read by Start on every pass. Reads inside fn
// are tracked.
func Source(fn func() any) Option {
	return func(s *settings) {
		s.source = fn
	}
}

// ItemVar names the item variable in binding scopes. The default is "item".
func ItemVar(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.itemVar = name
		}
	}
}

// IndexVar names the index variable. Items get an index signal only when
// it is set.
func IndexVar(name string) Option {
	return func(s *settings) {
		s.indexVar = name
	}
}

// Key sets the key function.
func Key(fn KeyFunc) Option {
	return func(s *settings) {
		s.key = fn
		s.keyExpr = ""
	}
}

// KeyExpr keys items by evaluating src with the item and index variables
// in scope. A nil evaluator means expr.Path.
func KeyExpr(src string, ev expr.Evaluator) Option {
	return func(s *settings) {
		s.key = nil
		s.keyExpr = src
		if ev != nil {
			s.evaluator = ev
		}
	}
}

// Bind sets the callback run once for every newly created item.
func Bind[N comparable](fn BindFunc[N]) Option {
	return func(s *settings) {
		s.bind = fn
	}
}

// Template sets the value passed to Target.CreateNode.
func Template(t any) Option {
	return func(s *settings) {
		s.template = t
	}
}

// Logger sets the logger. The default is slog.Default().
func Logger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// OnDiagnostic registers a diagnostic callback.
func OnDiagnostic(fn func(Diagnostic)) Option {
	return func(s *settings) {
		s.onDiagnostic = fn
	}
}

// WithObserver sets the observer.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// Context sets the enclosing scope consulted for names other than the item
// and index variables.
func Context(parent expr.Scope) Option {
	return func(s *settings) {
		s.parent = parent
	}
}

// Label names the reconciler in logs and telemetry.
func Label(label string) Option {
	return func(s *settings) {
		s.label = label
	}
}
