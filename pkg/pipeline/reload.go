package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
	"github.com/fsnotify/fsnotify"
)

// WatchRules reloads the extraction rules into the miner whenever the
// catalog file changes, so pattern tweaks land without a restart.
// Edits are debounced because editors fire several events per save.
func WatchRules(ctx context.Context, path string, miner *Miner) error {
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		reload := func() {
			cfg, err := LoadRules(path)
			if err != nil {
				logger.Log.WithError(err).Warn("Rules reload skipped: load failed")
				return
			}
			if err := miner.Reload(cfg); err != nil {
				logger.Log.WithError(err).Warn("Rules reload skipped: bad pattern")
				return
			}
			logger.Log.WithField("path", path).Info("Extraction rules reloaded")
		}

		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Clean(evt.Name) != filepath.Clean(path) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, reload)
			case err := <-watcher.Errors:
				logger.Log.WithError(err).Warn("Rules watcher error")
			}
		}
	}()

	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	return watcher.Add(filepath.Dir(path))
}
