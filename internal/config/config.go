package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/vbind/internal/errors"
	"github.com/vango-dev/vbind/pkg/reactive"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vbind.json"

	// DefaultAddr is the default live host listen address.
	DefaultAddr = ":8080"

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultLogLevel is the default slog level name.
	DefaultLogLevel = "info"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "vbind"

	// DefaultKeyField is the item field used as the reconcile key.
	DefaultKeyField = "id"

	// DefaultItemTag is the element tag rendered for each item.
	DefaultItemTag = "li"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// Config represents the complete vbind.json configuration.
type Config struct {
	// Addr is the live host listen address.
	Addr string `json:"addr,omitempty"`

	// MetricsPath is the HTTP path of the Prometheus handler. "-" disables it.
	MetricsPath string `json:"metricsPath,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty"`

	// LogFormat is text or json.
	LogFormat string `json:"logFormat,omitempty"`

	// Strict makes writes to disposed signals panic.
	Strict bool `json:"strict,omitempty"`

	// EffectBudget caps effect runs per flush. Zero means the runtime
	// default; a negative value disables the cap.
	EffectBudget int `json:"effectBudget,omitempty"`

	// TracerName is the OpenTelemetry tracer name.
	TracerName string `json:"tracerName,omitempty"`

	// KeyField is the path, relative to each item, used as its key.
	// "-" keys items by position.
	KeyField string `json:"keyField,omitempty"`

	// TextField is the path rendered as each item's text. Empty renders
	// the whole item.
	TextField string `json:"textField,omitempty"`

	// ItemTag is the element tag for each item.
	ItemTag string `json:"itemTag,omitempty"`

	// ItemsFile is a JSON array loaded as the initial list, relative to
	// the config file.
	ItemsFile string `json:"itemsFile,omitempty"`

	// ShutdownTimeout is a Go duration string such as "5s".
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// Default creates a Config with default values.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from dir/vbind.json.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path, applies
// defaults and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("VB401").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Create the file or run without --config to use defaults")
		}
		return nil, errors.New("VB402").Wrap(err)
	}

	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, decodeError(path, data, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeError points at the offending byte when the decoder reports one.
func decodeError(path string, data []byte, err error) error {
	e := errors.New("VB402").Wrap(err)

	var offset int64 = -1
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
		e.WithSuggestion("Check for trailing commas and unquoted keys")
	case stderrors.As(err, &typeErr):
		offset = typeErr.Offset
		e.WithSuggestion(fmt.Sprintf("Field %q must be a %s", typeErr.Field, typeErr.Type))
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		e.WithSuggestion("Remove the field; see the package documentation for the supported keys")
	}

	if offset >= 0 {
		line, col := position(data, offset)
		e.WithLocation(path, line, col)
	}
	return e
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line = bytes.Count(before, []byte{'\n'}) + 1
	col = int(offset) - (bytes.LastIndexByte(before, '\n') + 1)
	if col < 1 {
		col = 1
	}
	return line, col
}

// SaveTo writes the configuration as indented JSON.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("VB402").Wrap(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("VB402").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MetricsPath == "" {
		c.MetricsPath = DefaultMetricsPath
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.EffectBudget == 0 {
		c.EffectBudget = reactive.DefaultEffectBudget
	}
	if c.TracerName == "" {
		c.TracerName = DefaultTracerName
	}
	if c.KeyField == "" {
		c.KeyField = DefaultKeyField
	}
	if c.ItemTag == "" {
		c.ItemTag = DefaultItemTag
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = DefaultShutdownTimeout.String()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := c.level(); err != nil {
		return errors.New("VB403").
			WithDetail(fmt.Sprintf("logLevel %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.New("VB403").
			WithDetail(fmt.Sprintf("logFormat %q is not text or json", c.LogFormat))
	}
	if d, err := time.ParseDuration(c.ShutdownTimeout); err != nil || d < 0 {
		return errors.New("VB403").
			WithDetail(fmt.Sprintf("shutdownTimeout %q is not a non-negative duration", c.ShutdownTimeout))
	}
	if c.MetricsPath != "-" && !strings.HasPrefix(c.MetricsPath, "/") {
		return errors.New("VB403").
			WithDetail("metricsPath must start with / or be -")
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// Level returns the slog level, defaulting to Info when invalid.
func (c *Config) Level() slog.Level {
	l, err := c.level()
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// Logger builds a logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// RuntimeBudget returns the value for reactive.WithEffectBudget.
func (c *Config) RuntimeBudget() int {
	if c.EffectBudget < 0 {
		return 0
	}
	return c.EffectBudget
}

// Shutdown returns the parsed shutdown timeout.
func (c *Config) Shutdown() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return DefaultShutdownTimeout
	}
	return d
}

// ItemsPath resolves ItemsFile against the config directory.
func (c *Config) ItemsPath() string {
	if c.ItemsFile == "" || filepath.IsAbs(c.ItemsFile) || c.configPath == "" {
		return c.ItemsFile
	}
	return filepath.Join(c.Dir(), c.ItemsFile)
}

// LoadItems reads ItemsFile. No file yields an empty list.
func (c *Config) LoadItems() ([]any, error) {
	path := c.ItemsPath()
	if path == "" {
		return []any{}, nil
	}
	return ReadItems(path)
}

// ReadItems reads a JSON array from path.
func ReadItems(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("VB501").Wrap(err)
	}
	var items []any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, errors.New("VB501").Wrap(err)
	}
	if items == nil {
		items = []any{}
	}
	return items, nil
}
