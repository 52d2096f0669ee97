// Package config provides process configuration loading and parsing for
// edgegate. The routing document itself is NOT configured here: only its
// path is. Everything about routes lives in the document (see store).
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied by the getters when a field is left empty.
const (
	DefaultListen       = ":8080"
	DefaultDocumentPath = "gateway-routes.json"
	DefaultPollInterval = 2 * time.Second
	DefaultBootstrap    = "admin"

	DefaultGateInterval  = 1 * time.Second
	DefaultGateTimeout   = 180 * time.Second
	DefaultGateFreshness = 24 * time.Hour

	markerFileName   = ".sync-complete"
	progressFileName = ".sync-progress.json"
)

// Config is the complete edgegate process configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Document DocumentConfig `yaml:"document" toml:"document"`
	Gate     GateConfig     `yaml:"gate" toml:"gate"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig defines listener-level settings.
type ServerConfig struct {
	Listen      string `yaml:"listen" toml:"listen"`
	EnableHTTP2 bool   `yaml:"enable_http2" toml:"enable_http2"`
}

// GetListen returns the listen address with the default applied.
func (s ServerConfig) GetListen() string {
	if s.Listen == "" {
		return DefaultListen
	}
	return s.Listen
}

// DocumentConfig locates the canonical routing document and tunes the
// watcher that follows it.
type DocumentConfig struct {
	// Path of the canonical document, shared with the sync subsystem.
	Path string `yaml:"path" toml:"path"`
	// PollInterval is the watcher's detection-latency knob, as a Go
	// duration string ("2s", "500ms").
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"`
	// BootstrapPassword seeds the admin credential when no document exists
	// yet. Supports ${ENV} expansion like every other field.
	BootstrapPassword string `yaml:"bootstrap_password" toml:"bootstrap_password"`
}

// GetPath returns the document path with the default applied.
func (d DocumentConfig) GetPath() string {
	if d.Path == "" {
		return DefaultDocumentPath
	}
	return d.Path
}

// GetPollInterval parses the poll interval, falling back to the default on
// empty or unparsable input (Validate reports the latter).
func (d DocumentConfig) GetPollInterval() time.Duration {
	return parseDuration(d.PollInterval, DefaultPollInterval)
}

// GetBootstrapPassword returns the bootstrap credential with the default
// applied.
func (d DocumentConfig) GetBootstrapPassword() string {
	if d.BootstrapPassword == "" {
		return DefaultBootstrap
	}
	return d.BootstrapPassword
}

// GateConfig locates the sync readiness marker and tunes the startup gate.
// Empty paths default to sitting next to the routing document, which is
// where the sync daemon writes them.
type GateConfig struct {
	MarkerPath   string `yaml:"marker_path" toml:"marker_path"`
	ProgressPath string `yaml:"progress_path" toml:"progress_path"`
	Interval     string `yaml:"interval" toml:"interval"`
	Timeout      string `yaml:"timeout" toml:"timeout"`
	Freshness    string `yaml:"freshness" toml:"freshness"`
}

// GetMarkerPath returns the marker path, defaulting to the document's
// directory.
func (g GateConfig) GetMarkerPath(documentPath string) string {
	if g.MarkerPath != "" {
		return g.MarkerPath
	}
	return filepath.Join(filepath.Dir(documentPath), markerFileName)
}

// GetProgressPath returns the progress descriptor path, defaulting to the
// document's directory.
func (g GateConfig) GetProgressPath(documentPath string) string {
	if g.ProgressPath != "" {
		return g.ProgressPath
	}
	return filepath.Join(filepath.Dir(documentPath), progressFileName)
}

// GetInterval parses the gate poll interval.
func (g GateConfig) GetInterval() time.Duration {
	return parseDuration(g.Interval, DefaultGateInterval)
}

// GetTimeout parses the gate wait budget.
func (g GateConfig) GetTimeout() time.Duration {
	return parseDuration(g.Timeout, DefaultGateTimeout)
}

// GetFreshness parses the marker freshness window.
func (g GateConfig) GetFreshness() time.Duration {
	return parseDuration(g.Freshness, DefaultGateFreshness)
}

// LoggingConfig defines log output settings.
type LoggingConfig struct {
	// Level: debug, info, warn, error. Empty means info.
	Level string `yaml:"level" toml:"level"`
	// Format: json, console, pretty. Empty auto-detects a terminal.
	Format string `yaml:"format" toml:"format"`
	// Output: stdout, stderr, or a file path.
	Output string `yaml:"output" toml:"output"`
	// Pretty forces the console writer regardless of Format.
	Pretty bool `yaml:"pretty" toml:"pretty"`
}

// ParseLevel maps the configured level to a zerolog level, defaulting to
// info on empty or unknown input.
func (l LoggingConfig) ParseLevel() zerolog.Level {
	switch l.Level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Validate checks everything that would otherwise fail silently at runtime.
func (c *Config) Validate() error {
	var errs []error

	for _, f := range []struct{ name, value string }{
		{"document.poll_interval", c.Document.PollInterval},
		{"gate.interval", c.Gate.Interval},
		{"gate.timeout", c.Gate.Timeout},
		{"gate.freshness", c.Gate.Freshness},
	} {
		if f.value == "" {
			continue
		}
		if _, err := time.ParseDuration(f.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "json", "console", "pretty":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
