package env

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the binding file whenever it changes and calls onChange
// with the fresh configuration. Unparseable intermediate states (half-written
// rotations) are logged and skipped; the previous configuration stays in
// effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*ServiceConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: binding rotations replace the file, which drops
	// a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := FromBindingFile(path)
			if err != nil {
				slog.WarnContext(ctx, "ignoring unreadable binding update", "path", path, "error", err)
				continue
			}
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "binding watcher error", "error", err)
		}
	}
}
