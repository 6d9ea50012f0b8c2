// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/consult-tui/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the main configuration structure for consult-tui.
type Config struct {
	// Version is the config file format version.
	Version string `toml:"version" json:"version"`

	Backend       BackendConfig       `toml:"backend" json:"backend"`
	Endpoints     map[string]string   `toml:"endpoints" json:"endpoints,omitempty"`
	Collaboration CollaborationConfig `toml:"collaboration" json:"collaboration"`
	Extraction    ExtractionConfig    `toml:"extraction" json:"extraction"`
	UI            UIConfig            `toml:"ui" json:"ui"`
	Logging       LoggingConfig       `toml:"logging" json:"logging"`
	Telemetry     TelemetryConfig     `toml:"telemetry" json:"telemetry"`
	Storage       StorageConfig       `toml:"storage" json:"storage"`
}

// BackendConfig contains the consultation backend settings.
type BackendConfig struct {
	// URL is the base URL of the backend (e.g. "http://localhost:8000").
	URL string `toml:"url" json:"url"`

	// APIKeyHeader is the header the LLM API key travels in.
	APIKeyHeader string `toml:"api_key_header" json:"api_key_header"`

	// TimeoutSecs bounds non-streaming requests. Streams are context-controlled.
	TimeoutSecs int `toml:"timeout" json:"timeout"`

	// RequestsPerSecond limits non-streaming requests. 0 disables the limiter.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`

	// Burst is the limiter burst size.
	Burst int `toml:"burst" json:"burst"`
}

// CollaborationConfig contains collaborative mode settings.
type CollaborationConfig struct {
	// PollIntervalSecs is the collaborative poll period.
	PollIntervalSecs float64 `toml:"poll_interval" json:"poll_interval"`
}

// ExtractionConfig contains incremental extraction settings.
type ExtractionConfig struct {
	// Threshold is the number of new visible messages between extractions.
	Threshold int `toml:"threshold" json:"threshold"`

	// TimeoutSecs bounds a single background extraction.
	TimeoutSecs int `toml:"timeout" json:"timeout"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Language selects the topic keyword table ("en" or "de").
	Language string `toml:"language" json:"language"`

	// WordWrap wraps chat messages at the terminal width.
	WordWrap bool `toml:"word_wrap" json:"word_wrap"`
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	Level     string `toml:"level" json:"level"`
	File      string `toml:"file" json:"file"`
	MaxSizeMB int    `toml:"max_size_mb" json:"max_size_mb"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	// MetricsAddr serves Prometheus metrics when non-empty (e.g. "127.0.0.1:9464").
	MetricsAddr string `toml:"metrics_addr" json:"metrics_addr"`
}

// StorageConfig contains local preference storage settings.
type StorageConfig struct {
	// Path is the SQLite preferences file.
	Path string `toml:"path" json:"path"`
}

// Timeout returns the backend request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// PollInterval returns the collaborative poll period.
func (c CollaborationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs * float64(time.Second))
}

// Timeout returns the background extraction timeout.
func (e ExtractionConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			URL:               "http://127.0.0.1:8000",
			APIKeyHeader:      "X-API-Key",
			TimeoutSecs:       60,
			RequestsPerSecond: 5,
			Burst:             10,
		},

		Collaboration: CollaborationConfig{
			PollIntervalSecs: 3,
		},

		Extraction: ExtractionConfig{
			Threshold:   4,
			TimeoutSecs: 120,
		},

		UI: UIConfig{
			Language: "en",
			WordWrap: true,
		},

		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the consult-tui configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".consult-tui"), nil
}

// ConfigPath returns the path to the TOML config file. CONSULT_CONFIG wins
// over the default location.
func ConfigPath() (string, error) {
	if p := os.Getenv("CONSULT_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// DefaultLogFile returns the default log file location.
func DefaultLogFile() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "consult-tui.log")
	}
	return filepath.Join(dir, "logs", "consult.log")
}

// DefaultStoragePath returns the default preferences database location.
func DefaultStoragePath() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "consult-tui.db")
	}
	return filepath.Join(dir, "prefs.db")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file and applies environment
// overrides. A missing file is not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		return cfg, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills in zero values that have no meaningful zero setting.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Backend.APIKeyHeader == "" {
		c.Backend.APIKeyHeader = d.Backend.APIKeyHeader
	}
	if c.Backend.TimeoutSecs <= 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Backend.Burst <= 0 {
		c.Backend.Burst = d.Backend.Burst
	}
	if c.Collaboration.PollIntervalSecs <= 0 {
		c.Collaboration.PollIntervalSecs = d.Collaboration.PollIntervalSecs
	}
	if c.Extraction.Threshold <= 0 {
		c.Extraction.Threshold = d.Extraction.Threshold
	}
	if c.Extraction.TimeoutSecs <= 0 {
		c.Extraction.TimeoutSecs = d.Extraction.TimeoutSecs
	}
	if c.UI.Language == "" {
		c.UI.Language = d.UI.Language
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.File == "" {
		c.Logging.File = DefaultLogFile()
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath()
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# consult-tui configuration file\n")
	buf.WriteString("# Generated by consult-tui - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// validLanguages are the languages with a topic keyword table.
var validLanguages = map[string]bool{"en": true, "de": true}

// validLevels are the accepted log levels.
var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Backend.URL)
	if c.Backend.URL == "" || err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Backend.URL),
		})
	}

	if strings.ContainsAny(c.Backend.APIKeyHeader, " \t:") {
		errs = append(errs, ValidationError{
			Field:   "backend.api_key_header",
			Message: fmt.Sprintf("invalid header name '%s'", c.Backend.APIKeyHeader),
		})
	}

	if c.Backend.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.requests_per_second",
			Message: "must not be negative",
		})
	}

	if c.Collaboration.PollIntervalSecs < 0.5 || c.Collaboration.PollIntervalSecs > 60 {
		errs = append(errs, ValidationError{
			Field:   "collaboration.poll_interval",
			Message: fmt.Sprintf("%.1f out of range, must be between 0.5 and 60 seconds", c.Collaboration.PollIntervalSecs),
		})
	}

	if !validLanguages[strings.ToLower(c.UI.Language)] {
		errs = append(errs, ValidationError{
			Field:   "ui.language",
			Message: fmt.Sprintf("unsupported language '%s', must be one of: en, de", c.UI.Language),
		})
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	for name, path := range c.Endpoints {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, ValidationError{
				Field:   "endpoints." + name,
				Message: fmt.Sprintf("path '%s' must start with /", path),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - CONSULT_BACKEND_URL: overrides backend.url
//   - CONSULT_LANGUAGE: overrides ui.language
//   - CONSULT_LOG_LEVEL: overrides logging.level
//   - CONSULT_POLL_INTERVAL: overrides collaboration.poll_interval
//
// CONSULT_API_KEY is read by the apikey package and never lands in Config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CONSULT_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("CONSULT_LANGUAGE"); v != "" {
		c.UI.Language = strings.ToLower(v)
	}
	if v := os.Getenv("CONSULT_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CONSULT_POLL_INTERVAL"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			c.Collaboration.PollIntervalSecs = secs
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Endpoints != nil {
		clone.Endpoints = make(map[string]string, len(c.Endpoints))
		for k, v := range c.Endpoints {
			clone.Endpoints[k] = v
		}
	}
	return &clone
}

// String returns a JSON representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil || cfg == nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
