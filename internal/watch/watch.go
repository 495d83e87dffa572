package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 200 * time.Millisecond

// Watcher calls OnChange once a burst of writes to Path has settled.
type Watcher struct {
	Path     string
	Debounce time.Duration
	OnChange func(ctx context.Context)
	Log      *zap.Logger
}

// Run blocks until ctx is done. The parent directory is watched so editors that replace
// the file by rename are still seen.
func (w Watcher) Run(ctx context.Context) error {
	path, err := filepath.Abs(w.Path)
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(path)); err != nil {
		return err
	}
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	delay := w.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}

	// OnChange runs on this goroutine, so calls never overlap and Run only returns
	// once the current one is done.
	var (
		timer   *time.Timer
		settled <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(delay)
			settled = timer.C
		case <-settled:
			timer, settled = nil, nil
			if ctx.Err() != nil {
				return nil
			}
			log.Debug("file settled", zap.String("path", path))
			w.OnChange(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}
