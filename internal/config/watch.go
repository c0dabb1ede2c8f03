package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

// Watch reloads settings whenever the resolved config file is rewritten and
// hands the fresh copy to onChange. Editors replace files rather than write
// in place, so the parent directory is watched and events filtered by name.
// The returned stop function closes the watcher.
func Watch(logger *Logger.Logger, onChange func(*Settings)) (func(), error) {
	path := ConfigFilePath()
	if path == "" {
		// No file resolved (pure env config); nothing to watch.
		return func() {}, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	base := filepath.Base(path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				settings, err := Reload()
				if err != nil {
					logger.Errorf("config reload failed: %v", err)
					continue
				}
				logger.Infof("config file changed, reloaded %s", base)
				onChange(settings)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Errorf("config watcher error: %v", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
