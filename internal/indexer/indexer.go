package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"fsal/internal/config"
	"fsal/internal/fsindex"
	"fsal/internal/logging"
	"fsal/internal/pathfilter"
)

// ErrNotManaged indicates a path that exists under none of the managed base
// paths.
var ErrNotManaged = errors.New("path is not managed")

// Indexer keeps the index database in sync with the managed base paths and
// performs the filesystem-mutating operations exposed over the control
// socket.
type Indexer struct {
	cfg    *config.Config
	store  *fsindex.Store
	filter *pathfilter.Filter
	log    *slog.Logger

	parents *parentCache

	// refreshMu keeps whole-tree refreshes from interleaving.
	refreshMu sync.Mutex
}

// New wires an indexer over the given store and blacklist filter.
func New(cfg *config.Config, store *fsindex.Store, filter *pathfilter.Filter, logger *slog.Logger) *Indexer {
	return &Indexer{
		cfg:     cfg,
		store:   store,
		filter:  filter,
		log:     logging.NewComponentLogger(logger, "indexer"),
		parents: newParentCache(parentCacheSize),
	}
}

// Filter exposes the blacklist filter for whitelist updates.
func (ix *Indexer) Filter() *pathfilter.Filter {
	return ix.filter
}

// BasePaths returns the managed root directories.
func (ix *Indexer) BasePaths() []string {
	return ix.cfg.FSAL.BasePaths
}

// Locate resolves an index-relative path to the base path that holds it on
// disk. Paths that resolve outside the managed roots are rejected. The index
// is consulted first so entries keep their recorded base; unindexed paths
// are probed against every base in configuration order.
func (ix *Indexer) Locate(ctx context.Context, relPath string) (string, fs.FileInfo, error) {
	rel, err := pathfilter.CleanRelative(ix.cfg.FSAL.BasePaths[0], relPath)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", relPath, err)
	}
	relPath = rel
	if entry, err := ix.store.GetByPath(ctx, relPath); err != nil {
		return "", nil, err
	} else if entry != nil {
		if info, err := os.Lstat(entry.AbsPath()); err == nil {
			return entry.BasePath, info, nil
		}
	}
	for _, base := range ix.cfg.FSAL.BasePaths {
		info, err := os.Lstat(filepath.Join(base, relPath))
		if err == nil {
			return base, info, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNotManaged, relPath)
}

// DeepestIndexedAncestor walks up from relPath to the nearest path with an
// index entry. Paths whose own entry exists resolve to themselves; paths
// with no indexed ancestor resolve to the index root when they exist on
// disk under a managed base.
func (ix *Indexer) DeepestIndexedAncestor(ctx context.Context, relPath string) (string, error) {
	relPath = strings.Trim(relPath, "/")
	for p := relPath; p != "" && p != "."; p = parentPath(p) {
		entry, err := ix.store.GetByPath(ctx, p)
		if err != nil {
			return "", err
		}
		if entry != nil {
			return p, nil
		}
	}
	if _, _, err := ix.Locate(ctx, relPath); err != nil {
		return "", err
	}
	return fsindex.RootPath, nil
}

// ensureDirChain upserts the directory entries leading to relDir under base
// and returns the id of the final component. The parent cache short-circuits
// repeated lookups.
func (ix *Indexer) ensureDirChain(ctx context.Context, base, relDir string) (int64, error) {
	if relDir == "" || relDir == "." {
		return fsindex.RootID, nil
	}
	parentID := int64(fsindex.RootID)
	partial := ""
	for _, component := range strings.Split(relDir, string(filepath.Separator)) {
		partial = filepath.Join(partial, component)
		if id, ok := ix.parents.get(partial); ok {
			parentID = id
			continue
		}
		entry, err := ix.store.GetByPath(ctx, partial)
		if err != nil {
			return 0, err
		}
		if entry != nil {
			ix.parents.put(partial, entry.ID)
			parentID = entry.ID
			continue
		}
		info, err := os.Lstat(filepath.Join(base, partial))
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			return 0, fmt.Errorf("%s: not a directory", partial)
		}
		id, err := ix.upsertNode(ctx, base, partial, parentID, info)
		if err != nil {
			return 0, err
		}
		ix.parents.put(partial, id)
		parentID = id
	}
	return parentID, nil
}

// upsertNode writes or updates the index entry for a single filesystem node
// and records a change event when the node is new or its size or mtime
// moved.
func (ix *Indexer) upsertNode(ctx context.Context, base, relPath string, parentID int64, info fs.FileInfo) (int64, error) {
	entry := &fsindex.Entry{
		ParentID: parentID,
		Type:     fsindex.TypeFile,
		Name:     filepath.Base(relPath),
		Path:     relPath,
		BasePath: base,
		ModTime:  info.ModTime().UTC(),
	}
	if info.IsDir() {
		entry.Type = fsindex.TypeDir
	} else {
		entry.Size = info.Size()
	}

	prior, err := ix.store.GetByPath(ctx, relPath)
	if err != nil {
		return 0, err
	}

	changed := prior == nil || prior.Size != entry.Size || !prior.ModTime.Equal(entry.ModTime)
	if prior != nil && !changed {
		return prior.ID, nil
	}

	if entry.Type == fsindex.TypeFile && ix.cfg.Index.Checksum {
		sum, err := fileChecksum(filepath.Join(base, relPath))
		if err != nil {
			ix.log.Warn("checksum failed",
				logging.String(logging.FieldPath, relPath),
				logging.Error(err))
		} else {
			entry.Checksum = sum
		}
	}

	id, err := ix.store.Upsert(ctx, entry)
	if err != nil {
		return 0, err
	}

	eventType := fsindex.EventModified
	if prior == nil {
		eventType = fsindex.EventCreated
	}
	if err := ix.recordEvent(ctx, eventType, relPath, entry.IsDir()); err != nil {
		return 0, err
	}
	return id, nil
}

func (ix *Indexer) recordEvent(ctx context.Context, eventType fsindex.EventType, relPath string, isDir bool) error {
	return ix.store.RecordEvent(ctx, eventType, relPath, isDir, ix.cfg.Index.EventBacklog)
}

// parentPath returns the parent of an index-relative path, stopping at the
// index root.
func parentPath(relPath string) string {
	parent := filepath.Dir(relPath)
	if parent == relPath {
		return "."
	}
	return parent
}
