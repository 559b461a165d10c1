package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"fsal/internal/bundles"
	"fsal/internal/config"
	"fsal/internal/fsindex"
	"fsal/internal/indexer"
	"fsal/internal/logging"
	"fsal/internal/ondd"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *fsindex.Store
	indexer *indexer.Indexer
	bundles *bundles.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	BasePaths    []string
	SocketPath   string
	DBPath       string
	LockFilePath string
	Index        fsindex.Stats
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *fsindex.Store, ix *indexer.Indexer, bm *bundles.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || ix == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, indexer, and logger")
	}

	lockPath := filepath.Join(filepath.Dir(cfg.Database.Path), "fsald.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		indexer:  ix,
		bundles:  bm,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Indexer returns the directory indexer the daemon drives.
func (d *Daemon) Indexer() *indexer.Indexer {
	return d.indexer
}

// Store returns the index store.
func (d *Daemon) Store() *fsindex.Store {
	return d.store
}

// Bundles returns the bundle manager, nil when bundle support is off.
func (d *Daemon) Bundles() *bundles.Manager {
	return d.bundles
}

// Start acquires the instance lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fsal daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	if d.cfg.Index.RefreshOnStart {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.indexer.Refresh(runCtx); err != nil && runCtx.Err() == nil {
				d.logger.Error("initial refresh failed", logging.Error(err))
			}
		}()
	}

	if d.cfg.ONDD.Enabled {
		listener := ondd.NewListener(d.cfg, d.handleDownload, d.logger)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := listener.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("notification listener stopped", logging.Error(err))
			}
		}()
	}

	if d.bundles != nil && d.cfg.Bundles.Watch {
		watcher := bundles.NewWatcher(d.bundles)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("bundle watcher stopped", logging.Error(err))
			}
		}()
	}

	d.logger.Info("fsal daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("base_paths", len(d.cfg.FSAL.BasePaths)))
	return nil
}

// handleDownload routes a completed download to the deepest indexed
// ancestor of its path. Paths outside the managed roots are dropped.
func (d *Daemon) handleDownload(ctx context.Context, n ondd.Notification) error {
	if d.bundles != nil {
		for _, base := range d.cfg.FSAL.BasePaths {
			if d.bundles.IsBundle(base, n.Path) {
				_, err := d.bundles.Import(ctx, n.Path)
				return err
			}
		}
	}

	target, err := d.indexer.DeepestIndexedAncestor(ctx, n.Path)
	if err != nil {
		d.logger.Warn("cannot index downloaded path",
			logging.String(logging.FieldPath, n.Path))
		return nil
	}
	return d.indexer.RefreshPath(ctx, target)
}

// Stop halts background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fsal daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports current runtime information.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		BasePaths:    d.cfg.FSAL.BasePaths,
		SocketPath:   d.cfg.FSAL.Socket,
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		Index:        stats,
	}, nil
}
