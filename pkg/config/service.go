package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Service loads, validates, and reports the provenance of configuration.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(cfg *Config) error
	GetSource(key string) SourceType
	Watch(ctx context.Context, callback func(*Config)) error
}

// service is the concrete Service: a koanf instance layering defaults,
// file-based sources in caller-given precedence order, then environment
// variables (which always win — env overrides belong to whoever starts
// the process, not whoever wrote the config file).
type service struct {
	validate *validator.Validate
}

// NewService constructs the default koanf-backed Service.
func NewService() Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &service{validate: v}
}

// Default returns webhookflow's built-in configuration.
func Default() *Config {
	return &Config{
		Mode: ModeStandalone,
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5001,
			CORSEnabled: true,
			Timeout:     30 * time.Second,
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		Webhook: WebhookConfig{
			VerifyStrategy:  "hmac",
			SignatureHeader: "X-Hub-Signature-256",
		},
		Queue: QueueConfig{
			Capacity:   1000,
			MaxRetries: 3,
		},
		Dedup: DedupConfig{
			TTL:      300 * time.Second,
			Capacity: 10000,
		},
		Execution: ExecutionConfig{
			DefaultTimeout: 300 * time.Second,
		},
		History: HistoryConfig{
			RetentionDays: 30,
			CacheCapacity: 1000,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "webhookflow",
			DBName:  "webhookflow",
			SSLMode: "disable",
		},
	}
}

// Load merges Default() with each source in order (later sources
// override earlier ones for overlapping keys), then environment
// variables (which always take final precedence), then validates the
// result. A nil source is skipped.
func (s *service) Load(_ context.Context, sources ...Source) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(*Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		data, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load from source %s: %w", src.Type(), err)
		}
		if len(data) == 0 {
			continue
		}
		if err := k.Load(confmap.Provider(data, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load from source %s: %w", src.Type(), err)
		}
	}
	if err := k.Load(envprovider.Provider(envprovider.Opt{
		TransformFunc: func(key string, value string) (string, any) {
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load from source env: %w", err)
	}

	cfg := &Config{}
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(extendedDurationHookFunc()),
			Metadata:         nil,
		},
	}
	if err := k.UnmarshalWithConf("", cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Mode = normalizeMode(cfg.Mode)
	if err := s.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs struct-tag validation followed by business rules that
// span multiple fields.
func (s *service) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if cfg.Database.ConnString == "" {
		if cfg.Database.Host == "" || cfg.Database.Port == "" || cfg.Database.User == "" || cfg.Database.DBName == "" {
			return fmt.Errorf(
				"validation failed: database.host, database.port, database.user and database.dbname " +
					"are required when database.conn_string is not set",
			)
		}
	}
	return nil
}

// GetSource always returns SourceDefault: provenance tracking per key is
// handled internally by koanf's layered merge, not surfaced per key.
func (s *service) GetSource(_ string) SourceType { return SourceDefault }

// Watch registers callback for future configuration changes. The
// bare Service does not itself poll for changes — Manager composes
// Service with a Watcher to provide hot reload; Watch here only
// validates the callback.
func (s *service) Watch(_ context.Context, callback func(*Config)) error {
	if callback == nil {
		return fmt.Errorf("callback cannot be nil")
	}
	return nil
}

// extendedDurationHookFunc decodes a string into time.Duration using
// go-str2duration instead of Go's own time.ParseDuration, so a config
// file, env var, or CLI flag can express a duration with day/week/month/
// year units ("7d", "2w") in addition to the stdlib's h/m/s/ms/us/ns.
func extendedDurationHookFunc() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != durationType {
			return data, nil
		}
		s, _ := data.(string)
		if s == "" {
			return time.Duration(0), nil
		}
		d, err := str2duration.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return d, nil
	}
}

// transformEnvKey converts an environment variable name into a dotted
// koanf key: the first underscore-delimited segment becomes the top-
// level section, and the remainder (with its own underscores preserved)
// becomes the nested key, e.g. "LIMITS_MAX_NESTING_DEPTH" ->
// "limits.max_nesting_depth".
func transformEnvKey(input string) string {
	trimmed := strings.Trim(input, "_")
	if trimmed == "" {
		return ""
	}
	idx := strings.IndexByte(trimmed, '_')
	if idx == -1 {
		return strings.ToLower(trimmed)
	}
	head := trimmed[:idx]
	rest := strings.TrimLeft(trimmed[idx:], "_")
	if rest == "" {
		return strings.ToLower(head)
	}
	return strings.ToLower(head) + "." + strings.ToLower(rest)
}
