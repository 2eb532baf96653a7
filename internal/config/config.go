// Package config loads and validates the BlankTrace YAML configuration
// file described in the system design's data model.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// defaultAcceptLanguages mirrors the Rust prototype's
// default_accept_languages(): a small, realistic pool used when the
// config omits fingerprint.accept_languages.
var defaultAcceptLanguages = []string{"en-US,en;q=0.9", "en-GB,en;q=0.8"}

const (
	defaultPort             = 8080
	defaultRetentionDays    = 7
	defaultCleanupIntervalS = 3600
	defaultLogChannelBuffer = 1024
)

// RotationMode enumerates the fingerprint rotation strategies.
type RotationMode string

const (
	RotationEveryRequest RotationMode = "every_request"
	RotationInterval     RotationMode = "interval"
	RotationLaunch       RotationMode = "launch"
)

// FingerprintConfig controls User-Agent / Accept-Language randomization.
type FingerprintConfig struct {
	RotationMode            RotationMode `yaml:"rotation_mode"`
	RotationIntervalSeconds uint64       `yaml:"rotation_interval_seconds"`
	RandomizeUserAgent      bool         `yaml:"randomize_user_agent"`
	RandomizeAcceptLanguage bool         `yaml:"randomize_accept_language"`
	StripReferer            bool         `yaml:"strip_referer"`
	AcceptLanguages         []string     `yaml:"accept_languages"`
}

// CookiesConfig controls cookie stripping behavior.
type CookiesConfig struct {
	BlockAll          bool     `yaml:"block_all"`
	LogAttempts       bool     `yaml:"log_attempts"`
	AutoBlockTrackers bool     `yaml:"auto_block_trackers"`
	AllowList         []string `yaml:"allow_list"`
	BlockList         []string `yaml:"block_list"`
}

// BlockingConfig controls tracker-domain blocking.
type BlockingConfig struct {
	AutoBlock          bool     `yaml:"auto_block"`
	AutoBlockThreshold uint64   `yaml:"auto_block_threshold"`
	BlockPatterns      []string `yaml:"block_patterns"`

	// compiled holds the patterns compiled once at validation time.
	// Unexported so it never round-trips through YAML.
	compiled []*regexp.Regexp
}

// Compiled returns the block_patterns compiled as regular expressions.
// Validate must have been called first.
func (b *BlockingConfig) Compiled() []*regexp.Regexp {
	return b.compiled
}

// CleanupConfig controls the retention-based purge scheduler. Enabled is a
// pointer so that an omitted `enabled` key can be defaulted to true
// (matching the Rust prototype's serde default_cleanup_enabled) while an
// explicit `enabled: false` is still honored — a plain bool can't tell
// those two cases apart.
type CleanupConfig struct {
	Enabled         *bool  `yaml:"enabled"`
	RetentionDays   uint64 `yaml:"retention_days"`
	IntervalSeconds uint64 `yaml:"interval_seconds"`
}

// IsEnabled reports whether periodic cleanup is enabled, defaulting to
// true when unset.
func (c *CleanupConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Config is the root BlankTrace configuration, loaded from YAML.
type Config struct {
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Cookies     CookiesConfig     `yaml:"cookies"`
	Blocking    BlockingConfig    `yaml:"blocking"`
	Cleanup     CleanupConfig     `yaml:"cleanup"`
	Port        *int              `yaml:"port"`
	DBPath      string            `yaml:"db_path"`

	// LogChannelBuffer sizes the async log sink's channel. Not part of
	// the documented schema; defaulted, never required in YAML.
	LogChannelBuffer int `yaml:"log_channel_buffer"`
}

// EffectivePort returns the configured port, or 8080 if omitted.
func (c *Config) EffectivePort() int {
	if c.Port == nil {
		return defaultPort
	}
	return *c.Port
}

// Load reads and validates a YAML configuration file at path. Unknown
// fields are rejected, matching the documented schema exactly.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Fingerprint.AcceptLanguages) == 0 {
		c.Fingerprint.AcceptLanguages = append([]string{}, defaultAcceptLanguages...)
	}
	if c.Fingerprint.RotationMode == "" {
		c.Fingerprint.RotationMode = RotationLaunch
	}
	if c.Cleanup.IntervalSeconds == 0 {
		c.Cleanup.IntervalSeconds = defaultCleanupIntervalS
	}
	if c.Cleanup.RetentionDays == 0 {
		c.Cleanup.RetentionDays = defaultRetentionDays
	}
	if c.LogChannelBuffer == 0 {
		c.LogChannelBuffer = defaultLogChannelBuffer
	}
}

// Validate compiles block_patterns and checks cross-field invariants. A
// pattern that fails to compile is a configuration error: the proxy must
// refuse to start rather than run with a silently-dropped rule.
func (c *Config) Validate() error {
	switch c.Fingerprint.RotationMode {
	case RotationEveryRequest, RotationInterval, RotationLaunch:
	default:
		return fmt.Errorf("fingerprint.rotation_mode %q is not one of every_request, interval, launch", c.Fingerprint.RotationMode)
	}

	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}

	compiled := make([]*regexp.Regexp, 0, len(c.Blocking.BlockPatterns))
	for _, p := range c.Blocking.BlockPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("blocking.block_patterns %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	c.Blocking.compiled = compiled

	return nil
}

