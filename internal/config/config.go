// Package config provides the configuration structure for the narrator service.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied to zero-valued settings.
const (
	DefaultSubjectPrefix         = "narrator"
	DefaultInboxBucket           = "NARRATOR_INBOX"
	DefaultRequestTimeoutSeconds = 3 * 60 * 60
	DefaultMaxTextChars          = 3000
	DefaultPresignExpirySeconds  = 3600
	DefaultPollIntervalSeconds   = 30
	DefaultStatusUpdateInterval  = "SECONDS_60"
	DefaultInboxTTLSeconds       = 24 * 60 * 60
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                   string `toml:"url"`
	SubjectPrefix         string `toml:"subject_prefix"`
	InboxBucket           string `toml:"inbox_bucket"`
	InboxTTLSeconds       int    `toml:"inbox_ttl_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// SynthesisConfig holds the settings for the speech synthesis client.
type SynthesisConfig struct {
	MaxTextChars  int  `toml:"max_text_chars"`
	NormalizeText bool `toml:"normalize_text"`
}

// StorageConfig holds the settings for the object storage gateway.
type StorageConfig struct {
	PresignExpirySeconds int `toml:"presign_expiry_seconds"`
}

// TranscodeConfig holds the settings for the transcode orchestrator.
type TranscodeConfig struct {
	PollIntervalSeconds  int    `toml:"poll_interval_seconds"`
	MaxWaitSeconds       int    `toml:"max_wait_seconds"`
	StatusUpdateInterval string `toml:"status_update_interval"`
	Priority             int32  `toml:"priority"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	TempDir     string `toml:"temp_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS      NATSConfig      `toml:"nats"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Storage   StorageConfig   `toml:"storage"`
	Transcode TranscodeConfig `toml:"transcode"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the configuration for the narrator service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills every unset setting with its default value.
func (c *Config) ApplyDefaults() {
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = DefaultSubjectPrefix
	}

	if c.NATS.InboxBucket == "" {
		c.NATS.InboxBucket = DefaultInboxBucket
	}

	if c.NATS.InboxTTLSeconds <= 0 {
		c.NATS.InboxTTLSeconds = DefaultInboxTTLSeconds
	}

	if c.NATS.RequestTimeoutSeconds <= 0 {
		c.NATS.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}

	if c.Synthesis.MaxTextChars <= 0 {
		c.Synthesis.MaxTextChars = DefaultMaxTextChars
	}

	if c.Storage.PresignExpirySeconds <= 0 {
		c.Storage.PresignExpirySeconds = DefaultPresignExpirySeconds
	}

	if c.Transcode.PollIntervalSeconds <= 0 {
		c.Transcode.PollIntervalSeconds = DefaultPollIntervalSeconds
	}

	if c.Transcode.MaxWaitSeconds < 0 {
		c.Transcode.MaxWaitSeconds = 0
	}

	if c.Transcode.StatusUpdateInterval == "" {
		c.Transcode.StatusUpdateInterval = DefaultStatusUpdateInterval
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = os.TempDir()
	}

	if c.Paths.TempDir == "" {
		c.Paths.TempDir = os.TempDir()
	}
}

// PresignExpiry returns the lifetime of generated download links.
func (c *Config) PresignExpiry() time.Duration {
	return time.Duration(c.Storage.PresignExpirySeconds) * time.Second
}

// PollInterval returns the delay between transcode status checks.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Transcode.PollIntervalSeconds) * time.Second
}

// MaxWait returns the transcode wait ceiling. Zero means no ceiling.
func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.Transcode.MaxWaitSeconds) * time.Second
}

// RequestTimeout returns how long a client waits for a workflow reply.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.NATS.RequestTimeoutSeconds) * time.Second
}

// InboxTTL returns how long staged operator files live in the inbox.
func (c *Config) InboxTTL() time.Duration {
	return time.Duration(c.NATS.InboxTTLSeconds) * time.Second
}
