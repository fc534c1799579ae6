// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidSubmitMode is returned when SUBMIT_MODE is not poll or single.
	ErrInvalidSubmitMode = errors.New("config: SUBMIT_MODE must be poll or single")
	// ErrInvalidStatusShape is returned when STATUS_SHAPE is not task or records.
	ErrInvalidStatusShape = errors.New("config: STATUS_SHAPE must be task or records")
	// ErrInvalidAuthScheme is returned when AUTH_SCHEME is not bearer or raw.
	ErrInvalidAuthScheme = errors.New("config: AUTH_SCHEME must be bearer or raw")
	// ErrInvalidSuccessCheck is returned when SUCCESS_CHECK is not http, code or http_and_code.
	ErrInvalidSuccessCheck = errors.New("config: SUCCESS_CHECK must be http, code or http_and_code")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
	// ErrNegativeValue is returned for negative counts or durations.
	ErrNegativeValue = errors.New("config: value must not be negative")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Generation service settings
	A2EBaseURL    string `env:"A2E_BASE_URL, default=https://video.a2e.ai" json:"a2e_base_url"`
	A2EAPIToken   string `env:"A2E_API_TOKEN" json:"-"` // Masked in JSON
	SubmitPath    string `env:"SUBMIT_PATH, default=/api/v1/userImage2Video/start" json:"submit_path"`
	StatusPath    string `env:"STATUS_PATH, default=/api/v1/userImage2Video" json:"status_path"`
	StatusAllPath string `env:"STATUS_ALL_PATH, default=/api/v1/userImage2Video/allRecords" json:"status_all_path"`
	SubmitMode    string `env:"SUBMIT_MODE, default=poll" json:"submit_mode"`       // "poll" or "single"
	StatusShape   string `env:"STATUS_SHAPE, default=task" json:"status_shape"`     // "task" or "records"
	AuthScheme    string `env:"AUTH_SCHEME, default=bearer" json:"auth_scheme"`     // "bearer" or "raw"
	SuccessCheck  string `env:"SUCCESS_CHECK, default=http_and_code" json:"success_check"`

	// Polling settings. A zero interval selects the default for the status shape.
	PollIntervalMS   int `env:"POLL_INTERVAL_MS, default=0" json:"poll_interval_ms"`
	PollMaxAttempts  int `env:"POLL_MAX_ATTEMPTS, default=360" json:"poll_max_attempts"`
	PollTimeoutSec   int `env:"POLL_TIMEOUT_SEC, default=3600" json:"poll_timeout_sec"`
	StatusMaxRetries int `env:"STATUS_MAX_RETRIES, default=0" json:"status_max_retries"`
	HTTPTimeoutSec   int `env:"HTTP_TIMEOUT_SEC, default=30" json:"http_timeout_sec"`

	// Credential storage. Redis is used when REDIS_ADDR is set.
	CredentialFile string `env:"CREDENTIAL_FILE" json:"credential_file,omitempty"`
	RedisAddr      string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword  string `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB        int    `env:"REDIS_DB, default=0" json:"redis_db"`

	// Archive settings
	ArchiveResults bool   `env:"ARCHIVE_RESULTS, default=false" json:"archive_results"`
	ArchiveDir     string `env:"ARCHIVE_DIR" json:"archive_dir,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Tracing settings
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" json:"otlp_endpoint,omitempty"`
	ServiceName  string `env:"OTEL_SERVICE_NAME, default=i2v-orchestrator" json:"service_name"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RedisEnabled returns true if credentials should be kept in Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// PollInterval returns the configured interval, or zero to use the default
// of the status shape.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// PollTimeout returns the wall-clock polling ceiling.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSec) * time.Second
}

// HTTPTimeout returns the per-request timeout for the generation service.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// CredentialPath returns CREDENTIAL_FILE, defaulting to a file in the
// user's config directory.
func (c *Config) CredentialPath() string {
	if c.CredentialFile != "" {
		return c.CredentialFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "i2v", "credentials.json")
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks enumerated settings and numeric ranges.
func (c *Config) Validate() error {
	switch c.SubmitMode {
	case "poll", "single":
	default:
		return ErrInvalidSubmitMode
	}
	switch c.StatusShape {
	case "task", "records":
	default:
		return ErrInvalidStatusShape
	}
	switch c.AuthScheme {
	case "bearer", "raw":
	default:
		return ErrInvalidAuthScheme
	}
	switch c.SuccessCheck {
	case "http", "code", "http_and_code":
	default:
		return ErrInvalidSuccessCheck
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	for name, v := range map[string]int{
		"POLL_INTERVAL_MS":   c.PollIntervalMS,
		"POLL_MAX_ATTEMPTS":  c.PollMaxAttempts,
		"POLL_TIMEOUT_SEC":   c.PollTimeoutSec,
		"STATUS_MAX_RETRIES": c.StatusMaxRetries,
		"HTTP_TIMEOUT_SEC":   c.HTTPTimeoutSec,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s=%d", ErrNegativeValue, name, v)
		}
	}
	return nil
}

// NewLogger creates a structured logger writing to stdout.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger writing to w.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, A2EBaseURL: %s, A2EAPIToken: %s, SubmitMode: %s, StatusShape: %s, AuthScheme: %s, SuccessCheck: %s, PollIntervalMS: %d, PollMaxAttempts: %d, PollTimeoutSec: %d, RedisAddr: %s, RedisPassword: %s, ArchiveResults: %t, S3Bucket: %s, S3Region: %s, AWSSecretAccessKey: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.A2EBaseURL,
		mask(c.A2EAPIToken),
		c.SubmitMode,
		c.StatusShape,
		c.AuthScheme,
		c.SuccessCheck,
		c.PollIntervalMS,
		c.PollMaxAttempts,
		c.PollTimeoutSec,
		c.RedisAddr,
		mask(c.RedisPassword),
		c.ArchiveResults,
		c.S3Bucket,
		c.S3Region,
		mask(c.AWSSecretAccessKey),
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
