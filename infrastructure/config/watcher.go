package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the YAML overlay when the file changes and hands the new
// overlay to the registered handlers. It is meant for development; Lambda
// deployments never start one.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.RWMutex
	current  *Overlay
	onChange []func(*Overlay)

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher loads the overlay at path and prepares to watch it.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	overlay, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors save by rename, so the directory is watched rather than the file.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:     path,
		watcher:  fw,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		current:  overlay,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Current returns the last overlay that loaded successfully.
func (w *Watcher) Current() *Overlay {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a handler called after every successful reload.
func (w *Watcher) OnChange(fn func(*Overlay)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching for changes
func (w *Watcher) Start() {
	go w.loop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		<-w.done
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	overlay, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = overlay
	handlers := append([]func(*Overlay){}, w.onChange...)
	w.mu.Unlock()

	for _, fn := range handlers {
		fn(overlay)
	}
	w.logger.Info("Configuration reloaded", zap.String("path", w.path))
}
