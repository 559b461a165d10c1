package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"fsal/internal/fsindex"
	"fsal/internal/logging"
	"fsal/internal/pathfilter"
)

const pruneBatchSize = 1000

type walkTask struct {
	abs      string
	rel      string
	parentID int64
}

// Refresh reconciles the whole index with the managed base paths: a prune
// pass drops rows whose files vanished or turned blacklisted, then every
// base path is walked and reindexed.
func (ix *Indexer) Refresh(ctx context.Context) error {
	ix.refreshMu.Lock()
	defer ix.refreshMu.Unlock()

	start := time.Now()
	ix.parents.clear()

	if err := ix.prune(ctx, ""); err != nil {
		return err
	}

	for _, base := range ix.cfg.FSAL.BasePaths {
		if err := ix.walkBase(ctx, base); err != nil {
			return err
		}
	}

	ix.log.Debug("refresh complete",
		logging.Duration("elapsed", time.Since(start)))
	return nil
}

// RefreshPath reconciles a single subtree. A path that no longer exists on
// any base is dropped from the index.
func (ix *Indexer) RefreshPath(ctx context.Context, relPath string) error {
	relPath = strings.Trim(strings.TrimSpace(relPath), "/")
	if relPath == "" || relPath == "." {
		return ix.Refresh(ctx)
	}

	start := time.Now()
	if ix.filter.Excluded(relPath) {
		return ix.dropSubtree(ctx, relPath)
	}
	base, info, err := ix.Locate(ctx, relPath)
	if errors.Is(err, pathfilter.ErrInvalidPath) {
		return err
	}
	if err != nil {
		return ix.dropSubtree(ctx, relPath)
	}

	if err := ix.prune(ctx, relPath); err != nil {
		return err
	}

	parentID, err := ix.ensureDirChain(ctx, base, parentPath(relPath))
	if err != nil {
		return err
	}
	id, err := ix.upsertNode(ctx, base, relPath, parentID, info)
	if err != nil {
		return err
	}
	if info.IsDir() {
		tasks := []walkTask{{abs: filepath.Join(base, relPath), rel: relPath, parentID: id}}
		if err := ix.walkLevels(ctx, base, tasks); err != nil {
			return err
		}
	}

	ix.log.Debug("subtree refresh complete",
		logging.String(logging.FieldPath, relPath),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}

// dropSubtree removes the index rows for a path that left the filesystem.
func (ix *Indexer) dropSubtree(ctx context.Context, relPath string) error {
	entry, err := ix.store.GetByPath(ctx, relPath)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	if _, err := ix.store.RemoveSubtree(ctx, relPath, entry.IsDir()); err != nil {
		return err
	}
	ix.parents.invalidate(relPath)
	return ix.recordEvent(ctx, fsindex.EventRemoved, relPath, entry.IsDir())
}

// prune drops rows whose backing files are gone or whose paths are now
// blacklisted. Deletes run in batches after a streaming scan. An empty
// prefix prunes the whole index.
func (ix *Indexer) prune(ctx context.Context, prefix string) error {
	type staleEntry struct {
		rel   string
		isDir bool
	}
	var stale []staleEntry

	err := ix.store.EntryPaths(ctx, func(relPath, basePath string, entryType fsindex.EntryType) error {
		if prefix != "" && relPath != prefix && !strings.HasPrefix(relPath, prefix+"/") {
			return nil
		}
		if !ix.filter.Excluded(relPath) {
			if _, err := os.Lstat(filepath.Join(basePath, relPath)); err == nil {
				return nil
			}
		}
		stale = append(stale, staleEntry{rel: relPath, isDir: entryType == fsindex.TypeDir})
		return nil
	})
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	for start := 0; start < len(stale); start += pruneBatchSize {
		end := min(start+pruneBatchSize, len(stale))
		batch := make([]string, 0, end-start)
		for _, s := range stale[start:end] {
			batch = append(batch, s.rel)
		}
		if err := ix.store.PrunePaths(ctx, batch); err != nil {
			return err
		}
		for _, s := range stale[start:end] {
			ix.parents.invalidate(s.rel)
			if err := ix.recordEvent(ctx, fsindex.EventRemoved, s.rel, s.isDir); err != nil {
				return err
			}
		}
	}

	ix.log.Debug("pruned stale entries", logging.Int("count", len(stale)))
	return nil
}

// walkBase indexes one base path, honoring the chroot sub-directory when
// configured.
func (ix *Indexer) walkBase(ctx context.Context, base string) error {
	startRel := "."
	parentID := int64(fsindex.RootID)
	if chroot := ix.cfg.FSAL.Chroot; chroot != "" {
		if _, err := os.Lstat(filepath.Join(base, chroot)); err != nil {
			ix.log.Warn("chroot missing under base path",
				logging.String(logging.FieldBasePath, base),
				logging.String(logging.FieldPath, chroot))
			return nil
		}
		id, err := ix.ensureDirChain(ctx, base, chroot)
		if err != nil {
			return err
		}
		startRel = chroot
		parentID = id
	}
	tasks := []walkTask{{abs: filepath.Join(base, startRel), rel: startRel, parentID: parentID}}
	return ix.walkLevels(ctx, base, tasks)
}

// walkLevels runs a breadth-first walk over the directory tree, fanning each
// level out to the worker pool.
func (ix *Indexer) walkLevels(ctx context.Context, base string, level []walkTask) error {
	workers := ix.cfg.Index.WalkWorkers
	if workers < 1 {
		workers = 1
	}

	for len(level) > 0 {
		var (
			nextMu sync.Mutex
			next   []walkTask
		)
		p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
		for _, task := range level {
			p.Go(func(ctx context.Context) error {
				children, err := ix.walkDir(ctx, base, task)
				if err != nil {
					return err
				}
				if len(children) > 0 {
					nextMu.Lock()
					next = append(next, children...)
					nextMu.Unlock()
				}
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return err
		}
		level = next
	}
	return nil
}

// walkDir indexes the direct children of one directory and returns the
// sub-directories for the next level. Unreadable directories are logged and
// skipped.
func (ix *Indexer) walkDir(ctx context.Context, base string, task walkTask) ([]walkTask, error) {
	dirEntries, err := os.ReadDir(task.abs)
	if err != nil {
		ix.log.Warn("unreadable directory skipped",
			logging.String(logging.FieldPath, task.rel),
			logging.Error(err))
		return nil, nil
	}

	var children []walkTask
	for _, de := range dirEntries {
		if !de.IsDir() && !de.Type().IsRegular() {
			continue
		}
		rel := filepath.Join(task.rel, de.Name())
		if ix.filter.Excluded(rel) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			ix.log.Warn("stat failed",
				logging.String(logging.FieldPath, rel),
				logging.Error(err))
			continue
		}
		id, err := ix.upsertNode(ctx, base, rel, task.parentID, info)
		if err != nil {
			return nil, err
		}
		if de.IsDir() {
			ix.parents.put(rel, id)
			children = append(children, walkTask{
				abs:      filepath.Join(task.abs, de.Name()),
				rel:      rel,
				parentID: id,
			})
		}
	}
	return children, nil
}
