package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stlalpha/chatrelay/internal/config"
	"github.com/stlalpha/chatrelay/internal/logging"
)

const reloadDebounce = 500 * time.Millisecond

// stringsTarget receives reloaded announcement text.
type stringsTarget interface {
	SetStrings(config.StringsConfig)
}

// ConfigWatcher watches the config directory and hot-reloads strings.json.
type ConfigWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watcherDone chan struct{}
	configPath  string
	target      stringsTarget
}

// NewConfigWatcher starts watching configPath.
func NewConfigWatcher(configPath string, target stringsTarget) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", configPath, err)
	}
	log.Printf("INFO: Watching %s for config changes (auto-reload enabled)", configPath)

	cw := &ConfigWatcher{
		watcher:     watcher,
		watcherDone: make(chan struct{}),
		configPath:  configPath,
		target:      target,
	}
	go cw.watchLoop(watcher)
	return cw, nil
}

// Stop stops the watcher. Safe to call more than once.
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.watcher == nil {
		return
	}
	close(cw.watcherDone)
	cw.watcher.Close()
	cw.watcher = nil
	log.Printf("INFO: Configuration file watcher stopped")
}

func (cw *ConfigWatcher) watchLoop(w *fsnotify.Watcher) {
	// Editors often write a file several times in a row
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				cw.handleConfigChange(name)
			})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR: Config file watcher error: %v", err)

		case <-cw.watcherDone:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

// handleConfigChange reloads what can change at runtime and flags the rest.
func (cw *ConfigWatcher) handleConfigChange(path string) {
	filename := filepath.Base(path)
	log.Printf("INFO: Config file change detected: %s", filename)

	switch strings.ToLower(filename) {
	case "strings.json":
		cw.reloadStrings()
	case "config.json":
		log.Printf("WARN: config.json changed - relay restart required for changes to take effect")
	case "events.json":
		log.Printf("WARN: events.json changed - relay restart required for changes to take effect")
	default:
		logging.Debug("Ignoring change to %s", filename)
	}
}

func (cw *ConfigWatcher) reloadStrings() {
	newStrings, err := config.LoadStrings(cw.configPath)
	if err != nil {
		log.Printf("ERROR: Failed to reload strings.json: %v", err)
		return
	}
	cw.target.SetStrings(newStrings)
	log.Printf("INFO: strings.json reloaded successfully")
}
