package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/user/scanhub/pkg/logging"
)

// Watch reloads the config file whenever it changes on disk and hands the
// fresh config to onReload. Editors replace files rather than writing in
// place, so the parent directory is watched and events are debounced.
// Returns a stop function closing the watcher.
func Watch(path string, onReload func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	stop := make(chan struct{})
	go func() {
		var timer *time.Timer
		debounce := 300 * time.Millisecond
		trigger := func() {
			cfg, err := LoadConfigFile(path)
			if err != nil {
				logging.L().Warnw("config reload failed", "path", path, "error", err)
				return
			}
			onReload(cfg)
		}
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != filepath.Base(path) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, trigger)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.L().Warnw("config watch error", "error", err)
			}
		}
	}()

	return func() {
		close(stop)
		watcher.Close()
	}, nil
}
