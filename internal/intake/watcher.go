package intake

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fairlead/apportion/internal/logging"
)

// Watcher reloads a plan file when it changes on disk. Editors often
// emit several events per save, so changes are debounced before the
// reload callback fires.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(*Plan)
	logger   *logging.Logger
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches the plan at path and calls onReload with each
// successfully parsed new version. Parse failures are logged and
// skipped; the previous plan stays in effect.
func NewWatcher(path string, debounce time.Duration, logger *logging.Logger, onReload func(*Plan)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors that save via rename replace the
	// file, which drops a direct file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	w := &Watcher{
		path:     path,
		debounce: debounce,
		onReload: onReload,
		logger:   logger.WithComponent("intake"),
		watcher:  fw,
		stopCh:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Stop halts watching and releases the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := false

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			pending = true
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			plan, err := LoadPlan(w.path)
			if err != nil {
				w.logger.Warn("plan reload failed", "path", w.path, "error", err.Error())
				continue
			}
			w.logger.Info("plan reloaded", "path", w.path, "items", len(plan.Items))
			if w.onReload != nil {
				w.onReload(plan)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err.Error())
		}
	}
}
