package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Zachdehooge/hazard-map/internal/logging"
)

// ReloadFunc receives a freshly loaded and validated configuration
type ReloadFunc func(*Config)

// Watcher reloads a config file when it changes on disk
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload ReloadFunc
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches path. The parent directory is watched so that editors
// that replace the file by rename are noticed.
func NewWatcher(path string, onReload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config file %s: %w", path, err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		watcher:  fw,
		onReload: onReload,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Run processes file events until ctx is done, then closes the watcher
func (w *Watcher) Run(ctx context.Context) {
	logger := logging.GetLogger("config")
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Info().Str("file", event.Name).Str("op", event.Op.String()).Msg("Config change detected")
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	logger := logging.GetLogger("config")

	cfg, err := Load(w.path)
	if err != nil {
		logger.Error().Err(err).Str("path", w.path).Msg("Config reload failed, keeping previous config")
		return
	}
	logger.Info().Str("path", w.path).Msg("Config reloaded")
	w.onReload(cfg)
}
