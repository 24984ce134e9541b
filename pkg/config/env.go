package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

// EnvMap mirrors the teacher's engine/core.EnvMap: a flat, mergeable
// environment overlay loaded from a .env file.
type EnvMap map[string]string

// NewEnvFromFile reads a .env file at path. A missing file loads as an
// empty map rather than an error, matching NewYAMLProvider's tolerance
// for an absent config file.
func NewEnvFromFile(path string) (EnvMap, error) {
	envMap, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(EnvMap), nil
		}
		return nil, fmt.Errorf("failed to read .env file %q: %w", path, err)
	}
	return EnvMap(envMap), nil
}

// Merge combines other into e, with e's existing keys taking precedence:
// a process environment variable a deployer already set always outranks
// the same key loaded from a checked-in .env file.
func (e EnvMap) Merge(other EnvMap) (EnvMap, error) {
	result := make(EnvMap, len(e))
	for k, v := range e {
		result[k] = v
	}
	if err := mergo.Merge(&result, other); err != nil {
		return nil, fmt.Errorf("failed to merge environment layers: %w", err)
	}
	return result, nil
}

// dotenvProvider seeds the process environment from a .env file so the
// env/v2-backed layer in Service.Load picks the values up; Load itself
// always reports an empty config layer, matching envProvider's marker
// role for the real environment-variable source.
type dotenvProvider struct {
	path string
}

// NewDotenvProvider returns a Source that loads the .env file at path
// into the process environment before Service.Load reads it. Register it
// ahead of NewEnvProvider in a source chain.
func NewDotenvProvider(path string) Source { return &dotenvProvider{path: path} }

func (p *dotenvProvider) Load() (map[string]any, error) {
	fileEnv, err := NewEnvFromFile(p.path)
	if err != nil {
		return nil, err
	}
	current := processEnv()
	merged, err := current.Merge(fileEnv)
	if err != nil {
		return nil, err
	}
	for k, v := range merged {
		if _, set := current[k]; set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return nil, fmt.Errorf("failed to set environment variable %q: %w", k, err)
		}
	}
	return map[string]any{}, nil
}

func processEnv() EnvMap {
	out := make(EnvMap)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			out[kv[:idx]] = kv[idx+1:]
		}
	}
	return out
}

func (p *dotenvProvider) Watch(_ context.Context, _ func()) error { return nil }
func (p *dotenvProvider) Type() SourceType                        { return SourceEnv }
func (p *dotenvProvider) Close() error                             { return nil }
