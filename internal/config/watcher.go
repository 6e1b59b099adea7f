package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"nebula-gateway/pkg/logging"
)

// DefaultDebounceInterval is how long the watcher waits after the last
// change to config.yaml before reloading it.
const DefaultDebounceInterval = 500 * time.Millisecond

// Watcher reloads config.yaml when it changes on disk and hands the result
// to OnChange. Invalid files are logged and skipped.
type Watcher struct {
	mu sync.Mutex

	configPath string
	debounce   time.Duration
	onChange   func(GatewayConfig)

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewWatcher creates a watcher for config.yaml in configPath.
func NewWatcher(configPath string, onChange func(GatewayConfig)) *Watcher {
	return &Watcher{
		configPath: configPath,
		debounce:   DefaultDebounceInterval,
		onChange:   onChange,
	}
}

// Start begins watching. The directory is watched rather than the file so
// editors that replace the file on save are still seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.configPath); err != nil {
		watcher.Close()
		return err
	}

	w.fsWatcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.processEvents(watcher.Events, watcher.Errors, w.stopCh)

	logging.Info("Config", "Watching %s for changes", filepath.Join(w.configPath, configFileName))
	return nil
}

func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logging.Debug("Config", "Config file changed: %s", event.Name)
			w.reloadDebounced()

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("Config", err, "fsnotify error")
		}
	}
}

func (w *Watcher) reloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()
		if !running {
			return
		}

		cfg, err := LoadConfig(w.configPath)
		if err != nil {
			logging.Error("Config", err, "Ignoring invalid configuration change")
			return
		}
		if w.onChange != nil {
			w.onChange(cfg)
		}
	})
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	w.fsWatcher.Close()

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
}
