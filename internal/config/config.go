package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "SIGNALS_"

// Executor kinds.
const (
	KindSerial     = "serial"
	KindConcurrent = "concurrent"
)

// Config is the process configuration of the signals tooling.
type Config struct {
	Log       LogConfig        `toml:"log"`
	Metrics   MetricsConfig    `toml:"metrics"`
	Tracing   TracingConfig    `toml:"tracing"`
	Watch     WatchConfig      `toml:"watch"`
	Executors []ExecutorConfig `toml:"executor"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `toml:"level"`  // trace, debug, info, warn, error
	Format string `toml:"format"` // console or json
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Namespace string `toml:"namespace"`
}

// TracingConfig configures delivery tracing.
type TracingConfig struct {
	Enabled bool   `toml:"enabled"`
	Tracer  string `toml:"tracer"`
}

// WatchConfig configures live reload.
type WatchConfig struct {
	Enabled  bool   `toml:"enabled"`
	Debounce string `toml:"debounce"`
}

// DebounceDuration parses Debounce. An empty value yields the default.
func (w WatchConfig) DebounceDuration() (time.Duration, error) {
	if w.Debounce == "" {
		return DefaultDebounce, nil
	}
	return time.ParseDuration(w.Debounce)
}

// ExecutorConfig declares a named background queue.
type ExecutorConfig struct {
	Name      string `toml:"name"`
	Kind      string `toml:"kind"`
	Workers   int    `toml:"workers"`
	QueueSize int    `toml:"queue_size"`
}

// DefaultDebounce is the reload debounce used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Addr:      ":9090",
			Namespace: "signals",
		},
		Tracing: TracingConfig{
			Tracer: "github.com/dshills/signals",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: DefaultDebounce.String(),
		},
		Executors: []ExecutorConfig{
			{Name: "main", Kind: KindSerial, QueueSize: 1024},
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides
// and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyEnv(os.LookupEnv)
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults. Unknown keys are rejected.
// source names the data in errors.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default()
	defaultExecutors := cfg.Executors
	cfg.Executors = nil

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		perr := &ParseError{Path: source, Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}

	if cfg.Executors == nil {
		cfg.Executors = defaultExecutors
	}
	return cfg, nil
}

// ApplyEnv overrides settings from SIGNALS_* variables found by lookup.
// Malformed boolean values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	str("METRICS_ADDR", &c.Metrics.Addr)
	boolean("TRACING_ENABLED", &c.Tracing.Enabled)
	boolean("WATCH_ENABLED", &c.Watch.Enabled)
	str("WATCH_DEBOUNCE", &c.Watch.Debounce)
}

// Validate checks the configuration and returns every problem found,
// joined. Each problem is a *ValidationError.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil || c.Log.Level == "" {
		add("log.level", "unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		add("log.format", "must be console or json, got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		add("metrics.addr", "required when metrics are enabled")
	}

	if d, err := c.Watch.DebounceDuration(); err != nil {
		add("watch.debounce", "%v", err)
	} else if d < 0 {
		add("watch.debounce", "cannot be negative")
	}

	seen := make(map[string]bool, len(c.Executors))
	for i, e := range c.Executors {
		field := fmt.Sprintf("executor[%d]", i)
		switch {
		case e.Name == "":
			add(field+".name", "required")
		case e.Name == "immediate":
			add(field+".name", "%q is reserved", e.Name)
		case seen[e.Name]:
			add(field+".name", "duplicate executor %q", e.Name)
		}
		seen[e.Name] = true

		switch e.Kind {
		case KindSerial:
			if e.Workers > 1 {
				add(field+".workers", "serial executors have one worker")
			}
		case KindConcurrent:
			if e.Workers < 1 {
				add(field+".workers", "concurrent executors need at least one worker")
			}
		default:
			add(field+".kind", "must be serial or concurrent, got %q", e.Kind)
		}
		if e.QueueSize < 0 {
			add(field+".queue_size", "cannot be negative")
		}
	}

	return errors.Join(errs...)
}
