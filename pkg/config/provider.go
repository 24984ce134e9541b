package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
)

// SourceType identifies where a loaded configuration layer came from.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceCLI     SourceType = "cli"
)

// Source is one layer of configuration. Load returns a nested map keyed
// the same way Config's koanf tags are keyed ("server.host" becomes
// {"server": {"host": ...}}). Watch registers onChange to fire when the
// underlying source changes; sources that cannot change (defaults, CLI
// flags) return nil without error.
type Source interface {
	Load() (map[string]any, error)
	Watch(ctx context.Context, onChange func()) error
	Type() SourceType
	Close() error
}

// defaultProvider supplies Config's zero-value defaults via reflection
// over struct tags, so the Default() struct literal stays the single
// source of truth.
type defaultProvider struct{}

// NewDefaultProvider returns the built-in defaults layer.
func NewDefaultProvider() Source { return &defaultProvider{} }

func (p *defaultProvider) Load() (map[string]any, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(*Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	return k.Raw(), nil
}

func (p *defaultProvider) Watch(_ context.Context, _ func()) error { return nil }
func (p *defaultProvider) Type() SourceType                       { return SourceDefault }
func (p *defaultProvider) Close() error                            { return nil }

// yamlProvider loads a YAML file and, on request, watches it for
// changes via a shared fsnotify-backed Watcher. File access goes through
// an afero.Fs so tests can substitute an in-memory filesystem instead of
// touching disk.
type yamlProvider struct {
	path    string
	fs      afero.Fs
	watcher *Watcher
}

// NewYAMLProvider returns a Source backed by the YAML file at path on the
// real OS filesystem. A missing file loads as an empty layer rather than
// an error, so a deployment without a config file still starts on
// defaults + env.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path, fs: afero.NewOsFs()}
}

// NewYAMLProviderFS returns a Source backed by the YAML file at path on
// fs, for tests exercising config loading against an in-memory
// filesystem instead of the real one.
func NewYAMLProviderFS(path string, fs afero.Fs) Source {
	return &yamlProvider{path: path, fs: fs}
}

func (p *yamlProvider) Load() (map[string]any, error) {
	exists, err := afero.Exists(p.fs, p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat YAML file %q: %w", p.path, err)
	}
	if !exists {
		return map[string]any{}, nil
	}
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %q: %w", p.path, err)
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file %q: %w", p.path, err)
	}
	return k.Raw(), nil
}

func (p *yamlProvider) Watch(ctx context.Context, onChange func()) error {
	if p.watcher == nil {
		w, err := NewWatcher()
		if err != nil {
			return err
		}
		p.watcher = w
	}
	p.watcher.OnChange(onChange)
	return p.watcher.Watch(ctx, p.path)
}

func (p *yamlProvider) Type() SourceType { return SourceYAML }

func (p *yamlProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Close()
}

// envProvider is a marker Source: koanf's env/v2 provider is wired
// directly into Service.Load (it needs the live key-transform callback),
// so this Source's Load is always empty — it exists only so callers can
// list SourceEnv alongside the others when composing a precedence chain.
type envProvider struct{}

// NewEnvProvider returns the environment-variable layer marker.
func NewEnvProvider() Source { return &envProvider{} }

func (p *envProvider) Load() (map[string]any, error)             { return map[string]any{}, nil }
func (p *envProvider) Watch(_ context.Context, _ func()) error   { return nil }
func (p *envProvider) Type() SourceType                          { return SourceEnv }
func (p *envProvider) Close() error                              { return nil }

// cliProvider maps flat CLI flag names to Config's nested key paths.
type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider returns a Source mapping flags (flat, kebab-case flag
// name -> value) onto Config's nested koanf keys.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{flags: flags}
}

// cliFlagKeys maps a CLI flag name to its dotted Config key.
var cliFlagKeys = map[string]string{
	"host":                    "server.host",
	"port":                    "server.port",
	"cors":                    "server.cors_enabled",
	"environment":             "runtime.environment",
	"log-level":               "runtime.log_level",
	"webhook-secret":          "webhook.secret",
	"queue-capacity":          "queue.capacity",
	"queue-max-retries":       "queue.max_retries",
	"dedup-ttl":                "dedup.ttl",
	"dedup-capacity":          "dedup.capacity",
	"execution-timeout":       "execution.default_timeout",
	"history-retention-days":  "history.retention_days",
	"history-cache-capacity":  "history.cache_capacity",
}

func (p *cliProvider) Load() (map[string]any, error) {
	out := map[string]any{}
	for flag, value := range p.flags {
		key, ok := cliFlagKeys[flag]
		if !ok {
			continue
		}
		if err := setNested(out, key, value); err != nil {
			return nil, fmt.Errorf("failed to map CLI flag %q: %w", flag, err)
		}
	}
	return out, nil
}

func (p *cliProvider) Watch(_ context.Context, _ func()) error { return nil }
func (p *cliProvider) Type() SourceType                        { return SourceCLI }
func (p *cliProvider) Close() error                            { return nil }

// setNested assigns value at the dotted path into m, creating
// intermediate maps as needed. An empty path is a no-op. It returns an
// error if an existing non-map value occupies part of the path.
func setNested(m map[string]any, path string, value any) error {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	cur := m
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			return nil
		}
		next, ok := cur[part]
		if !ok {
			nm := map[string]any{}
			cur[part] = nm
			cur = nm
			continue
		}
		nm, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", part)
		}
		cur = nm
	}
	return nil
}
