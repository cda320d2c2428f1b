package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"draft-analyzer/internal/logging"
)

// Watch calls fn for every JSONL file that appears in dir until ctx is
// done. Files already present when Watch starts are passed to fn first.
// A periodic rescan backs up missed events; fn must tolerate being handed
// a path that has already been consumed.
func Watch(ctx context.Context, dir string, interval time.Duration, logger *slog.Logger, fn func(path string)) (err error) {
	logger = logging.OrDiscard(logger).With("component", "watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	rescan := func() {
		files, err := WarmFiles(dir)
		if err != nil {
			logger.Warn("rescan failed", "dir", dir, "error", err)
			return
		}
		for _, f := range files {
			fn(f)
		}
	}
	rescan()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Rotation renames files into dir, which shows up as Create.
			if event.Op&fsnotify.Create == fsnotify.Create && strings.HasSuffix(event.Name, ".jsonl") {
				fn(filepath.Clean(event.Name))
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", werr)
		case <-ticker.C:
			rescan()
		}
	}
}
