// Package logger provides structured logging built on charmbracelet/log,
// with context propagation so any layer of the engine can log without
// threading a *Logger through every call signature.
package logger

import (
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel is a string-typed severity accepted from configuration files
// and environment variables.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// ToCharmlogLevel maps a LogLevel onto the charmbracelet/log severity scale.
// Unknown values default to InfoLevel rather than erroring, since this is
// almost always fed user-supplied configuration.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch strings.ToLower(string(l)) {
	case string(DebugLevel):
		return charmlog.DebugLevel
	case string(InfoLevel):
		return charmlog.InfoLevel
	case string(WarnLevel):
		return charmlog.WarnLevel
	case string(ErrorLevel):
		return charmlog.ErrorLevel
	case string(DisabledLevel):
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

// Config controls how a Logger is constructed.
type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns the configuration used for production processes:
// human-readable, info level, writing to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig returns a configuration suitable for unit tests: logging is
// disabled and output is discarded so test runs stay quiet by default.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// IsTestEnvironment reports whether the process is running under `go test`.
func IsTestEnvironment() bool {
	for _, arg := range os.Args {
		if strings.HasSuffix(arg, ".test") || strings.Contains(arg, "/_test/") {
			return true
		}
	}
	return strings.HasSuffix(os.Args[0], ".test") || strings.Contains(os.Args[0], "-test.")
}

// Logger is the logging surface the rest of the engine depends on. It is
// satisfied by *charmLogger; tests may substitute their own implementation.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger builds a Logger from the given config. A nil config falls back
// to DefaultConfig, except under `go test` where TestConfig is used so
// package tests don't spam stdout unless they opt in explicitly.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		if IsTestEnvironment() {
			cfg = TestConfig()
		} else {
			cfg = DefaultConfig()
		}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		ReportCaller:    cfg.AddSource,
	}
	if cfg.JSON {
		opts.Formatter = charmlog.JSONFormatter
	}
	l := charmlog.NewWithOptions(out, opts)
	l.SetLevel(cfg.Level.ToCharmlogLevel())
	return &charmLogger{l: l}
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}
