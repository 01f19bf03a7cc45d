package live

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/vbind/internal/errors"
	"github.com/vango-dev/vbind/pkg/middleware"
	"github.com/vango-dev/vbind/pkg/reconcile"
)

// maxBodySize bounds item request bodies.
const maxBodySize = 1 << 20

func (h *Host) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(h.requestLogger)
	r.Use(middleware.Metrics(middleware.WithRegistry(h.registry)))
	r.Use(middleware.Tracing(
		middleware.WithTracer(h.tracer),
		middleware.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != h.cfg.MetricsPath
		}),
	))

	r.Get("/", h.handleIndex)
	r.Get("/ws", h.handleWebSocket)
	r.Get("/healthz", h.handleHealth)

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Put("/", h.handleReplace)
		r.Post("/", h.handleAppend)
		r.Post("/reverse", h.handleReverse)
		r.Delete("/{key}", h.handleRemove)
	})

	if path := h.cfg.MetricsPath; path != "" && path != "-" {
		r.Method(http.MethodGet, path, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// requestLogger logs each request at debug level.
func (h *Host) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.LogAttrs(r.Context(), slog.LevelDebug, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func (h *Host) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, ClientPage)
}

func (h *Host) handleHealth(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "closed", http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func (h *Host) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.Items(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Host) handleReplace(w http.ResponseWriter, r *http.Request) {
	var items []any
	if err := decodeBody(r, &items); err != nil {
		h.writeError(w, err)
		return
	}
	stats, err := h.Replace(r.Context(), items)
	h.writeStats(w, stats, err)
}

func (h *Host) handleAppend(w http.ResponseWriter, r *http.Request) {
	var item any
	if err := decodeBody(r, &item); err != nil {
		h.writeError(w, err)
		return
	}
	stats, err := h.Append(r.Context(), item)
	h.writeStats(w, stats, err)
}

func (h *Host) handleReverse(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reverse(r.Context())
	h.writeStats(w, stats, err)
}

func (h *Host) handleRemove(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Remove(r.Context(), chi.URLParam(r, "key"))
	h.writeStats(w, stats, err)
}

// statsBody is the response to a mutation.
type statsBody struct {
	Created int `json:"created"`
	Reused  int `json:"reused"`
	Moved   int `json:"moved"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
}

func (h *Host) writeStats(w http.ResponseWriter, stats reconcile.Stats, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsBody{
		Created: stats.Created,
		Reused:  stats.Reused,
		Moved:   stats.Moved,
		Removed: stats.Removed,
		Updated: stats.Updated,
	})
}

// writeError maps err to a status and writes it as a coded JSON error.
func (h *Host) writeError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	code := "VB102"
	switch {
	case stderrors.Is(err, errBadBody):
		status, code = http.StatusBadRequest, "VB304"
	case stderrors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "VB305"
	case stderrors.Is(err, ErrClosed), stderrors.Is(err, ErrQueueFull):
		status, code = http.StatusServiceUnavailable, "VB502"
	}
	e := errors.FromError(err, code)
	if status == http.StatusUnprocessableEntity {
		e = e.WithSuggestion("Every item needs a key at the configured key field.")
	}
	h.logger.Debug("request rejected", "code", e.Code, "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, e.FormatJSON())
}

var errBadBody = stderrors.New("live: invalid request body")

// decodeBody decodes one JSON value, keeping numbers as json.Number so
// keys print the way the client sent them.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.New("VB304").Wrap(stderrors.Join(errBadBody, err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
