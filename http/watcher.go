package http

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"textclass/logging"
)

const reloadDebounce = 500 * time.Millisecond

// WatchArtifacts hot-reloads the serving strategy whenever model artifacts
// change under the service's output directory. Blocks until ctx is done.
func WatchArtifacts(ctx context.Context, svc *Service) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(svc.OutputDir()); err != nil {
		return err
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isModelArtifact(filepath.Base(event.Name)) {
				continue
			}
			// Saves touch several files in a burst; coalesce them.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.L().Warn("artifact watcher error", zap.Error(err))
		case <-reload:
			if err := svc.Reload(); err != nil {
				logging.L().Error("artifact reload failed", zap.Error(err))
				continue
			}
			logging.L().Info("model artifacts reloaded", zap.String("dir", svc.OutputDir()))
		}
	}
}

func isModelArtifact(name string) bool {
	switch name {
	case "model.json", "model.gob", "vocab.json", "scaler.json":
		return true
	}
	return false
}
