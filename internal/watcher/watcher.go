// Package watcher watches the configuration file and triggers hot reloads.
// It supports cross-platform fsnotify event handling.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/sanaa360/creator-cli/internal/config"
)

const (
	// replaceCheckDelay is a short delay to allow atomic replace (rename) to
	// settle before deciding whether a Remove event indicates a real deletion.
	replaceCheckDelay    = 50 * time.Millisecond
	configReloadDebounce = 150 * time.Millisecond
)

// Watcher manages file watching for the configuration file.
type Watcher struct {
	configPath        string
	configMutex       sync.RWMutex
	configReloadMu    sync.Mutex
	configReloadTimer *time.Timer
	reloadCallback    func(*config.Config)
	watcher           *fsnotify.Watcher
	lastConfigHash    string
}

// NewWatcher creates a new file watcher instance.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	watcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	return &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        watcher,
	}, nil
}

// Start begins watching the configuration file. The containing directory is
// watched rather than the file itself so editors that replace the file via
// rename keep being observed.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	if data, err := os.ReadFile(w.configPath); err == nil {
		w.setConfigHash(hashOf(data))
	}

	go w.loop(ctx)
	log.Debugf("watching config file: %s", w.configPath)
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.stopConfigReloadTimer()
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.scheduleConfigReload()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Atomic replace shows up as Remove/Rename followed by Create.
		time.Sleep(replaceCheckDelay)
		if _, err := os.Stat(w.configPath); err == nil {
			w.scheduleConfigReload()
		} else {
			log.Warnf("config file removed: %s", w.configPath)
		}
	}
}

func (w *Watcher) scheduleConfigReload() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.configReloadMu.Lock()
		w.configReloadTimer = nil
		w.configReloadMu.Unlock()
		w.reloadConfigIfChanged()
	})
}

func (w *Watcher) stopConfigReloadTimer() {
	w.configReloadMu.Lock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
	w.configReloadMu.Unlock()
}

func (w *Watcher) reloadConfigIfChanged() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debugf("ignoring empty config file write event")
		return
	}
	newHash := hashOf(data)

	w.configMutex.RLock()
	currentHash := w.lastConfigHash
	w.configMutex.RUnlock()

	if currentHash != "" && currentHash == newHash {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}

	log.Infof("config file changed, reloading: %s", w.configPath)
	newConfig, errLoad := config.LoadConfig(w.configPath)
	if errLoad != nil {
		log.Errorf("failed to reload config: %v", errLoad)
		return
	}

	w.setConfigHash(newHash)
	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
}

func (w *Watcher) setConfigHash(hash string) {
	w.configMutex.Lock()
	w.lastConfigHash = hash
	w.configMutex.Unlock()
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
