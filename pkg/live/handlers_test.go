package live

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vango-dev/vbind/internal/config"
)

func do(t *testing.T, h *Host, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeStats(t *testing.T, rec *httptest.ResponseRecorder) statsBody {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats statsBody
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	return stats
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Code
}

func TestItemEndpoints(t *testing.T) {
	h := newTestHost(t)

	stats := decodeStats(t, do(t, h, http.MethodPut, "/items",
		`[{"id": 1, "title": "one"}, {"id": 2, "title": "two"}]`))
	if stats.Created != 2 {
		t.Errorf("PUT: expected 2 created, got %+v", stats)
	}

	stats = decodeStats(t, do(t, h, http.MethodPost, "/items", `{"id": 3, "title": "three"}`))
	if stats.Created != 1 || stats.Reused != 2 {
		t.Errorf("POST: unexpected stats %+v", stats)
	}

	stats = decodeStats(t, do(t, h, http.MethodPost, "/items/reverse", ""))
	if stats.Moved != 2 {
		t.Errorf("reverse: expected 2 moves, got %+v", stats)
	}

	stats = decodeStats(t, do(t, h, http.MethodDelete, "/items/1", ""))
	if stats.Removed != 1 {
		t.Errorf("DELETE: expected 1 removed, got %+v", stats)
	}

	rec := do(t, h, http.MethodGet, "/items", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET: %d", rec.Code)
	}
	var items []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 2 || items[0]["title"] != "three" || items[1]["title"] != "two" {
		t.Errorf("unexpected items %v", items)
	}
}

func TestItemEndpointErrors(t *testing.T) {
	h := newTestHost(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPut, "/items", `[{"id": 1`, http.StatusBadRequest, "VB304"},
		{"not an array", http.MethodPut, "/items", `{"id": 1}`, http.StatusBadRequest, "VB304"},
		{"unkeyable item", http.MethodPost, "/items", `5`, http.StatusUnprocessableEntity, "VB102"},
		{"unknown key", http.MethodDelete, "/items/99", "", http.StatusNotFound, "VB305"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestHealthMetricsAndPage(t *testing.T) {
	h := newTestHost(t)

	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	for _, name := range []string{"vbind_flushes_total", `vbind_http_requests_total{method="GET",route="/healthz",status="200"} 1`} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("metrics output is missing %s", name)
		}
	}

	rec = do(t, h, http.MethodGet, "/", "")
	if !strings.Contains(rec.Body.String(), `<ul id="list">`) {
		t.Errorf("index page missing list element")
	}

	h.Close()
	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz after close: %d", rec.Code)
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.MetricsPath = "-"
	h := NewHost(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer h.Close()

	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with metrics disabled, got %d", rec.Code)
	}
}
