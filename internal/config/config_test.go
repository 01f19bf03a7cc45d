package config

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/vango-dev/vbind/internal/errors"
	"github.com/vango-dev/vbind/pkg/reactive"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func codeOf(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestDefault(t *testing.T) {
	cfg := Default()

	want := &Config{
		Addr:            DefaultAddr,
		MetricsPath:     DefaultMetricsPath,
		LogLevel:        DefaultLogLevel,
		LogFormat:       "text",
		EffectBudget:    reactive.DefaultEffectBudget,
		TracerName:      DefaultTracerName,
		KeyField:        DefaultKeyField,
		ItemTag:         DefaultItemTag,
		ShutdownTimeout: "5s",
	}
	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	if codeOf(err) != "VB401" {
		t.Errorf("missing config: got %v, want VB401", err)
	}

	writeFile(t, dir, ConfigFileName, `{
  "addr": "127.0.0.1:9000",
  "logLevel": "debug",
  "strict": true,
  "effectBudget": -1,
  "keyField": "sku",
  "itemsFile": "items.json"
}
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" || !cfg.Strict || cfg.KeyField != "sku" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", cfg.Level())
	}
	if cfg.RuntimeBudget() != 0 {
		t.Errorf("negative budget should disable the cap, got %d", cfg.RuntimeBudget())
	}
	if cfg.MetricsPath != DefaultMetricsPath {
		t.Errorf("MetricsPath default not applied: %q", cfg.MetricsPath)
	}
	if cfg.ItemsPath() != filepath.Join(dir, "items.json") {
		t.Errorf("ItemsPath() = %q", cfg.ItemsPath())
	}
	if cfg.Path() != filepath.Join(dir, ConfigFileName) || cfg.Dir() != dir {
		t.Errorf("Path() = %q, Dir() = %q", cfg.Path(), cfg.Dir())
	}
}

func TestLoadSyntaxErrorHasLocation(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ConfigFileName, "{\n  \"addr\": \":1\",\n}\n")

	_, err := LoadFile(path)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Code != "VB402" {
		t.Fatalf("expected VB402, got %v", err)
	}
	if e.Location == nil || e.Location.Line != 3 {
		t.Errorf("expected location on line 3, got %v", e.Location)
	}
}

func TestLoadTypeAndUnknownFieldErrors(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "type.json", `{"strict": "yes"}`)
	if _, err := LoadFile(path); codeOf(err) != "VB402" {
		t.Errorf("type error: got %v", err)
	}

	path = writeFile(t, dir, "unknown.json", `{"port": 3000}`)
	if _, err := LoadFile(path); codeOf(err) != "VB402" {
		t.Errorf("unknown field: got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad timeout", func(c *Config) { c.ShutdownTimeout = "soon" }},
		{"negative timeout", func(c *Config) { c.ShutdownTimeout = "-1s" }},
		{"relative metrics path", func(c *Config) { c.MetricsPath = "metrics" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); codeOf(err) != "VB403" {
				t.Errorf("Validate() = %v, want VB403", err)
			}
		})
	}

	cfg := Default()
	cfg.MetricsPath = "-"
	if err := cfg.Validate(); err != nil {
		t.Errorf("\"-\" should disable metrics: %v", err)
	}
}

func TestLoggerFormat(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "json"

	var buf bytes.Buffer
	cfg.Logger(&buf).Info("hello", "k", 1)
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	cfg.LogLevel = "error"
	cfg.Logger(&buf).Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at error level, got %q", buf.String())
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Addr = ":9999"
	path := filepath.Join(dir, ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadItems(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	items, err := cfg.LoadItems()
	if err != nil || len(items) != 0 {
		t.Errorf("no items file: got %v, %v", items, err)
	}

	path := writeFile(t, dir, "items.json", `[{"id": 1, "title": "a"}, {"id": 2, "title": "b"}]`)
	items, err = ReadItems(path)
	if err != nil {
		t.Fatalf("ReadItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	bad := writeFile(t, dir, "bad.json", `{"id": 1}`)
	if _, err := ReadItems(bad); codeOf(err) != "VB501" {
		t.Errorf("non-array: got %v, want VB501", err)
	}
	if _, err := ReadItems(filepath.Join(dir, "missing.json")); codeOf(err) != "VB501" {
		t.Errorf("missing file: got %v, want VB501", err)
	}
}
