// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// DefaultReloadDebounce coalesces editor write bursts into one reload.
const DefaultReloadDebounce = 250 * time.Millisecond

// Watcher reloads the configuration when the file changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onReload func(*Config)
	onError  func(error)

	mu      sync.Mutex
	pending *time.Timer
	done    chan struct{}
	closed  bool
}

// NewWatcher creates a watcher for the given config path.
// onReload receives each successfully reloaded configuration;
// onError (optional) receives reload failures.
func NewWatcher(path string, onReload func(*Config), onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace config files
	// by rename, which drops a direct file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		path:     path,
		debounce: DefaultReloadDebounce,
		onReload: onReload,
		onError:  onError,
		done:     make(chan struct{}),
	}
	go w.processEvents()
	return w, nil
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(fmt.Errorf("config watch error: %w", err))
		case <-w.done:
			return
		}
	}
}

// scheduleReload debounces reloads so a burst of writes yields one.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		w.reportError(err)
		return
	}
	SetGlobal(cfg)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}
