package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// defaultDebounce matches the teacher's hot-reload debounce window:
// long enough to coalesce an editor's multiple write events, short
// enough that a reload feels immediate.
const defaultDebounce = 100 * time.Millisecond

// Manager wraps a Service with atomic storage of the current
// configuration and optional hot reload of file-backed sources.
type Manager struct {
	Service Service

	debounce  time.Duration
	current   atomic.Pointer[Config]
	sources   []Source
	callbacks []func(*Config)
	mu        sync.Mutex

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	closeOnce sync.Once
	watchCtx  context.Context
	cancel    context.CancelFunc
}

// NewManager constructs a Manager around svc, defaulting to NewService()
// when svc is nil.
func NewManager(svc Service) *Manager {
	if svc == nil {
		svc = NewService()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{Service: svc, debounce: defaultDebounce, watchCtx: ctx, cancel: cancel}
}

// SetDebounce overrides the file-change coalescing window.
func (m *Manager) SetDebounce(d time.Duration) {
	m.debounceMu.Lock()
	defer m.debounceMu.Unlock()
	m.debounce = d
}

// Load loads configuration from sources, stores it atomically, starts
// watching any watchable source for future changes, and invokes
// registered callbacks with the freshly loaded configuration.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return nil, err
	}
	m.current.Store(cfg)
	m.mu.Lock()
	m.sources = sources
	m.mu.Unlock()

	for _, src := range sources {
		if src == nil {
			continue
		}
		src := src
		_ = src.Watch(m.watchCtx, func() { m.onSourceChanged() })
	}

	m.notify(cfg)
	return cfg, nil
}

// onSourceChanged debounces a watched source's raw change notification
// and triggers a reload once the window elapses without another event.
func (m *Manager) onSourceChanged() {
	m.debounceMu.Lock()
	defer m.debounceMu.Unlock()
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.AfterFunc(m.debounce, func() {
		if err := m.Reload(m.watchCtx); err != nil {
			return
		}
	})
}

// Get returns the current configuration, or nil if Load has not yet
// succeeded.
func (m *Manager) Get() *Config { return m.current.Load() }

// Reload re-runs Load against the sources from the last successful
// Load call, swapping the stored configuration and invoking callbacks
// only if the new configuration differs from the current one.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	sources := make([]Source, len(m.sources))
	copy(sources, m.sources)
	m.mu.Unlock()

	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := m.Service.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	prev := m.current.Load()
	m.current.Store(cfg)
	if !configEqual(prev, cfg) {
		m.notify(cfg)
	}
	return nil
}

// OnChange registers callback to run on every Load and every Reload
// that changes the effective configuration.
func (m *Manager) OnChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

func (m *Manager) notify(cfg *Config) {
	m.mu.Lock()
	callbacks := make([]func(*Config), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

// Close stops watching all sources. Idempotent.
func (m *Manager) Close(_ context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.cancel()
		m.mu.Lock()
		sources := make([]Source, len(m.sources))
		copy(sources, m.sources)
		m.mu.Unlock()
		for _, src := range sources {
			if src == nil {
				continue
			}
			if cerr := src.Close(); cerr != nil {
				err = cerr
			}
		}
	})
	return err
}
