package bundles

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"fsal/internal/logging"
)

// settleDelay is how long a bundle file must sit quiet before import; the
// downloader may still be writing when the create event fires.
const settleDelay = time.Second

// Watcher imports bundles as they appear in the bundle directory of each
// base path. A sweep at startup catches bundles that arrived while the
// daemon was down.
type Watcher struct {
	manager *Manager

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(manager *Manager) *Watcher {
	return &Watcher{
		manager: manager,
		timers:  make(map[string]*time.Timer),
	}
}

// Run sweeps once, then watches until ctx is cancelled. Base paths without
// a bundle directory are skipped.
func (w *Watcher) Run(ctx context.Context) error {
	w.Sweep(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	watched := 0
	for _, base := range w.manager.cfg.FSAL.BasePaths {
		dir := filepath.Join(base, w.manager.cfg.Bundles.BundlesDir)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := fw.Add(dir); err != nil {
			w.manager.log.Warn("cannot watch bundle directory",
				logging.String(logging.FieldPath, dir),
				logging.Error(err))
			continue
		}
		watched++
	}
	if watched == 0 {
		w.manager.log.Warn("no bundle directories to watch")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.manager.log.Warn("bundle watcher error", logging.Error(err))
		}
	}
}

// Sweep imports every bundle already present in the bundle directories.
func (w *Watcher) Sweep(ctx context.Context) {
	for _, base := range w.manager.cfg.FSAL.BasePaths {
		dir := filepath.Join(base, w.manager.cfg.Bundles.BundlesDir)
		dirEntries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, de := range dirEntries {
			if !de.Type().IsRegular() {
				continue
			}
			rel := filepath.Join(w.manager.cfg.Bundles.BundlesDir, de.Name())
			if !w.manager.IsBundle(base, rel) {
				continue
			}
			if _, err := w.manager.Import(ctx, rel); err != nil {
				w.manager.log.Warn("bundle import failed",
					logging.String(logging.FieldPath, rel),
					logging.Error(err))
			}
		}
	}
}

// schedule arms (or re-arms) the settle timer for an absolute bundle path.
func (w *Watcher) schedule(ctx context.Context, absPath string) {
	base, rel, ok := w.split(absPath)
	if !ok || strings.HasPrefix(filepath.Base(rel), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[absPath]; ok {
		timer.Reset(settleDelay)
		return
	}
	w.timers[absPath] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.timers, absPath)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if !w.manager.IsBundle(base, rel) {
			return
		}
		if _, err := w.manager.Import(ctx, rel); err != nil {
			w.manager.log.Warn("bundle import failed",
				logging.String(logging.FieldPath, rel),
				logging.Error(err))
		}
	})
}

// split maps an absolute path back to its base path and relative form.
func (w *Watcher) split(absPath string) (base, rel string, ok bool) {
	for _, candidate := range w.manager.cfg.FSAL.BasePaths {
		prefix := candidate + string(filepath.Separator)
		if strings.HasPrefix(absPath, prefix) {
			return candidate, strings.TrimPrefix(absPath, prefix), true
		}
	}
	return "", "", false
}
