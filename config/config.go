// Package config loads tickrunner settings from YAML or TOML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Swind/go-tick-runner/core"
	"github.com/Swind/go-tick-runner/logging"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the file configuration for a dispatcher and its host loop.
type Config struct {
	Dispatcher DispatcherConfig `yaml:"dispatcher" toml:"dispatcher"`
	Loop       LoopConfig       `yaml:"loop" toml:"loop"`
	Log        LogConfig        `yaml:"log" toml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

type DispatcherConfig struct {
	Name            string `yaml:"name" toml:"name"`
	HistoryCapacity int    `yaml:"history_capacity" toml:"history_capacity"`
}

type LoopConfig struct {
	// Interval between ticks, e.g. "16ms".
	Interval Duration `yaml:"interval" toml:"interval"`
}

type LogConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // zap, slog, std or none
	Level   string `yaml:"level" toml:"level"`
	Format  string `yaml:"format" toml:"format"` // text or json, slog only
	Output  string `yaml:"output" toml:"output"` // zap output path
}

type MetricsConfig struct {
	Enabled      bool     `yaml:"enabled" toml:"enabled"`
	Namespace    string   `yaml:"namespace" toml:"namespace"`
	Addr         string   `yaml:"addr" toml:"addr"`
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval"`
}

// Duration is a time.Duration written as a Go duration string in files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{
			Name:            "tickrunner",
			HistoryCapacity: 100,
		},
		Loop: LoopConfig{
			Interval: Duration{16 * time.Millisecond},
		},
		Log: LogConfig{
			Backend: logging.BackendZap,
			Level:   "info",
			Format:  "text",
		},
		Metrics: MetricsConfig{
			Namespace:    "tickrunner",
			Addr:         ":2112",
			PollInterval: Duration{time.Second},
		},
	}
}

// Load reads path on top of Default. The format follows the extension:
// .yaml/.yml or .toml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the given format ("yaml", "yml" or "toml") on top
// of Default and validates the result. Keys that map to no field are
// rejected in both formats.
func Parse(data []byte, format string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case "toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Dispatcher.HistoryCapacity < 0 {
		errs = append(errs, fmt.Errorf("dispatcher.history_capacity must be >= 0, got %d", c.Dispatcher.HistoryCapacity))
	}
	if c.Loop.Interval.Duration <= 0 {
		errs = append(errs, fmt.Errorf("loop.interval must be positive, got %s", c.Loop.Interval))
	}
	switch strings.ToLower(c.Log.Backend) {
	case "", logging.BackendZap, logging.BackendSlog, logging.BackendStd, logging.BackendNone:
	default:
		errs = append(errs, fmt.Errorf("log.backend %q is not one of zap, slog, std, none", c.Log.Backend))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
		}
		if c.Metrics.PollInterval.Duration <= 0 {
			errs = append(errs, fmt.Errorf("metrics.poll_interval must be positive, got %s", c.Metrics.PollInterval))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LoggingOptions converts the log section for logging.New.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Backend: c.Log.Backend,
		Level:   c.Log.Level,
		Format:  c.Log.Format,
		Output:  c.Log.Output,
	}
}

// CoreDispatcherConfig returns a core config carrying the file settings.
// Logger, Metrics and pools are left for the caller.
func (c *Config) CoreDispatcherConfig() *core.DispatcherConfig {
	dc := core.DefaultDispatcherConfig()
	dc.Name = c.Dispatcher.Name
	dc.HistoryCapacity = c.Dispatcher.HistoryCapacity
	return dc
}
