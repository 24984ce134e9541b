// Package config implements layered configuration loading for
// webhookflow: a defaults struct overridden by an optional YAML file,
// overridden by CLI flags, overridden by environment variables, with
// struct-tag and business-rule validation and optional hot reload of the
// YAML layer.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the root configuration tree. Every subsection carries
// `koanf` tags matching its dotted key path (e.g. "server.host") and
// `validate` tags consumed by Validate.
type Config struct {
	// Mode selects the deployment topology: ModeStandalone keeps
	// history and scheduling in-process; ModeDistributed backs history
	// with Postgres so multiple processes can share query access.
	Mode string `koanf:"mode" validate:"omitempty,oneof=standalone distributed"`

	Server    ServerConfig    `koanf:"server"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Queue     QueueConfig     `koanf:"queue"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Execution ExecutionConfig `koanf:"execution"`
	History   HistoryConfig   `koanf:"history"`
	Database  DatabaseConfig  `koanf:"database"`
	GitHub    GitHubConfig    `koanf:"github"`
}

// GitHubConfig authenticates the github_comment built-in action against
// the GitHub REST API.
type GitHubConfig struct {
	Token SensitiveString `koanf:"token"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host        string        `koanf:"host"         validate:"required"`
	Port        int           `koanf:"port"          validate:"required,min=1,max=65535"`
	CORSEnabled bool          `koanf:"cors_enabled"`
	Timeout     time.Duration `koanf:"timeout"`
}

// RuntimeConfig configures process-wide behavior: the deployment
// environment and logger verbosity.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"required,oneof=development staging production"`
	LogLevel    string `koanf:"log_level"   validate:"required,oneof=debug info warn error"`
}

// WebhookConfig configures signature verification for C9 ingress.
type WebhookConfig struct {
	Secret          SensitiveString `koanf:"secret"`
	VerifyStrategy  string          `koanf:"verify_strategy" validate:"omitempty,oneof=none hmac github stripe"`
	SignatureHeader string          `koanf:"signature_header"`
}

// QueueConfig configures the bounded in-memory event queue (C7).
type QueueConfig struct {
	Capacity   int `koanf:"capacity"    validate:"required,min=1"`
	MaxRetries int `koanf:"max_retries" validate:"min=0"`
}

// DedupConfig configures the deduplication cache (C8).
type DedupConfig struct {
	TTL      time.Duration `koanf:"ttl"`
	Capacity int           `koanf:"capacity" validate:"required,min=1"`
}

// ExecutionConfig configures workflow execution (C6) defaults.
type ExecutionConfig struct {
	DefaultTimeout time.Duration `koanf:"default_timeout"`
}

// HistoryConfig configures execution history retention (C10).
type HistoryConfig struct {
	RetentionDays int    `koanf:"retention_days" validate:"min=0"`
	CacheCapacity int    `koanf:"cache_capacity" validate:"required,min=1"`
	Driver        string `koanf:"driver"         validate:"omitempty,oneof=memory postgres"`
}

// DatabaseConfig configures the Postgres-backed history store used when
// Mode is distributed (or History.Driver explicitly says postgres).
type DatabaseConfig struct {
	ConnString string          `koanf:"conn_string"`
	Host       string          `koanf:"host"`
	Port       string          `koanf:"port"`
	User       string          `koanf:"user"`
	Password   SensitiveString `koanf:"password"`
	DBName     string          `koanf:"dbname"`
	SSLMode    string          `koanf:"sslmode"`
}

// DSN returns the connection string pgxpool should dial: ConnString
// verbatim if set, otherwise assembled from the individual components.
func (d DatabaseConfig) DSN() string {
	if d.ConnString != "" {
		return d.ConnString
	}
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password.Value(), d.Host, d.Port, d.DBName, sslmode,
	)
}

// SensitiveString never reveals its value through String, Printf "%v"/"%s",
// or JSON marshaling — only Value returns the underlying secret.
type SensitiveString string

const redactedPlaceholder = "[REDACTED]"

// String implements fmt.Stringer, redacting non-empty values.
func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redactedPlaceholder
}

// Value returns the underlying secret value.
func (s SensitiveString) Value() string { return string(s) }

// MarshalJSON redacts the value instead of emitting it verbatim.
func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a plain JSON string as the secret value.
func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}

// historyDriverMemory and historyDriverPostgres name the two history
// store backends EffectiveHistoryDriver can resolve to.
const (
	historyDriverMemory   = "memory"
	historyDriverPostgres = "postgres"
)

// EffectiveHistoryDriver resolves the history store backend: an explicit
// History.Driver wins, otherwise ModeDistributed implies postgres and
// everything else implies the in-memory store.
func (c *Config) EffectiveHistoryDriver() string {
	if c == nil {
		return historyDriverMemory
	}
	if c.History.Driver != "" {
		return c.History.Driver
	}
	if normalizeMode(c.Mode) == ModeDistributed {
		return historyDriverPostgres
	}
	return historyDriverMemory
}

// configEqual reports whether two configurations are equal by value,
// used by Manager to suppress reload callbacks when a watched file
// changes without altering the effective configuration.
func configEqual(a, b *Config) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
