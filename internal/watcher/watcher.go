// Package watcher reloads the gateway configuration when the config file
// changes on disk, so platform credentials and limiter settings can be
// rotated without a restart.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/cencori/gateway/internal/config"
)

// ConfigWatcher observes one config file and invokes a reload callback with
// each successfully parsed revision. Editors typically replace files rather
// than write them in place, so the parent directory is watched and events
// are filtered by name.
type ConfigWatcher struct {
	path   string
	reload func(*config.Config)

	fw     *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	lastHash string
}

// New constructs a ConfigWatcher for the given file path.
func New(path string, reload func(*config.Config)) *ConfigWatcher {
	return &ConfigWatcher{path: strings.TrimSpace(path), reload: reload}
}

// Start begins watching. It is a no-op when the watcher has no path.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	if w == nil || w.path == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fw, errWatcher := fsnotify.NewWatcher()
	if errWatcher != nil {
		return fmt.Errorf("watcher: create: %w", errWatcher)
	}
	dir := filepath.Dir(w.path)
	if errAdd := fw.Add(dir); errAdd != nil {
		_ = fw.Close()
		return fmt.Errorf("watcher: watch %s: %w", dir, errAdd)
	}
	w.fw = fw

	// Seed the hash so an unchanged file does not trigger a reload on the
	// first spurious event.
	if data, errRead := os.ReadFile(w.path); errRead == nil {
		w.mu.Lock()
		w.lastHash = hashBytes(data)
		w.mu.Unlock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(runCtx)
	}()

	log.Infof("config watcher started (path=%s)", w.path)
	return nil
}

// Stop cancels the watch loop and waits for it to exit.
func (w *ConfigWatcher) Stop() error {
	if w == nil || w.fw == nil {
		return nil
	}
	if w.cancel != nil {
		w.cancel()
	}
	errClose := w.fw.Close()
	w.wg.Wait()
	return errClose
}

func (w *ConfigWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.maybeReload()
		case errWatch, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.WithError(errWatch).Warn("config watcher: watch error")
		}
	}
}

func (w *ConfigWatcher) matches(name string) bool {
	return filepath.Clean(name) == filepath.Clean(w.path) ||
		filepath.Base(name) == filepath.Base(w.path)
}

// maybeReload re-reads the file and fires the callback only when the
// contents actually changed since the last observed revision.
func (w *ConfigWatcher) maybeReload() {
	data, errRead := os.ReadFile(w.path)
	if errRead != nil || len(data) == 0 {
		return
	}
	hash := hashBytes(data)

	w.mu.Lock()
	unchanged := w.lastHash != "" && w.lastHash == hash
	if !unchanged {
		w.lastHash = hash
	}
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, errLoad := config.Load(w.path)
	if errLoad != nil {
		log.WithError(errLoad).Warn("config watcher: reload failed, keeping previous config")
		return
	}

	log.Info("config watcher: configuration reloaded")
	if w.reload != nil {
		w.reload(cfg)
	}
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
