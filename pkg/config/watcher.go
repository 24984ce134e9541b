package config

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher fans out fsnotify write events for a single watched file to
// any number of registered callbacks.
type Watcher struct {
	fsw       *fsnotify.Watcher
	mu        sync.Mutex
	callbacks []func()
	started   bool
	closeOnce sync.Once
}

// NewWatcher constructs an idle Watcher; call Watch to begin observing
// a file.
func NewWatcher() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw}, nil
}

// OnChange registers callback to run on every subsequent write/create
// event for the watched file. Safe to call before or after Watch.
func (w *Watcher) OnChange(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Watch begins observing path. Calling Watch more than once is a no-op
// beyond the first call; all registered callbacks still fire.
func (w *Watcher) Watch(ctx context.Context, path string) error {
	w.mu.Lock()
	already := w.started
	w.started = true
	w.mu.Unlock()
	if already {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	go w.run(ctx, path)
	return nil
}

func (w *Watcher) run(ctx context.Context, path string) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			callbacks := make([]func(), len(w.callbacks))
			copy(callbacks, w.callbacks)
			w.mu.Unlock()
			for _, cb := range callbacks {
				cb()
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the underlying fsnotify watcher. Idempotent.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}
