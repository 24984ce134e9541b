package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	globalMu      sync.Mutex
	globalManager *Manager
	initialized   atomic.Bool
)

// Initialize loads configuration into the process-wide global Manager.
// Passing mgr as nil constructs a default Manager internally; a non-nil
// mgr lets callers inject one already configured (custom debounce, a
// test double, etc). Initialize is a no-op on every call after the
// first successful one.
func Initialize(ctx context.Context, mgr *Manager, sources ...Source) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if initialized.Load() {
		return nil
	}
	if mgr == nil {
		mgr = NewManager(nil)
	}
	if _, err := mgr.Load(ctx, sources...); err != nil {
		return fmt.Errorf("failed to initialize global config: %w", err)
	}
	globalManager = mgr
	initialized.Store(true)
	return nil
}

// Get returns the current global configuration. Panics if called
// before Initialize succeeds.
func Get() *Config {
	mgr := currentManager()
	if mgr == nil {
		panic("config: Get called before Initialize")
	}
	cfg := mgr.Get()
	if cfg == nil {
		panic("config: Get called before Initialize")
	}
	return cfg
}

// OnChange registers a callback against the global Manager. Panics if
// called before Initialize succeeds.
func OnChange(callback func(*Config)) {
	mgr := currentManager()
	if mgr == nil {
		panic("config: OnChange called before Initialize")
	}
	mgr.OnChange(callback)
}

// Reload forces a reload of the global configuration. Panics if called
// before Initialize succeeds.
func Reload(ctx context.Context) error {
	mgr := currentManager()
	if mgr == nil {
		panic("config: Reload called before Initialize")
	}
	return mgr.Reload(ctx)
}

// Close releases resources held by the global Manager. A no-op if
// Initialize was never called; otherwise idempotent.
func Close(ctx context.Context) error {
	mgr := currentManager()
	if mgr == nil {
		return nil
	}
	return mgr.Close(ctx)
}

func currentManager() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager
}

// resetForTest clears global state so each test case starts clean.
func resetForTest() {
	globalMu.Lock()
	mgr := globalManager
	globalManager = nil
	initialized.Store(false)
	globalMu.Unlock()
	if mgr != nil {
		_ = mgr.Close(context.Background())
	}
}
