package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"fsal/internal/fileutil"
	"fsal/internal/fsindex"
	"fsal/internal/logging"
	"fsal/internal/pathfilter"
)

// ErrDestinationExists indicates a transfer target that is already present
// under a managed base path.
var ErrDestinationExists = errors.New("destination already exists")

// Remove deletes relPath from disk and drops its subtree from the index. A
// failed disk delete leaves disk and index out of agreement, so the fallback
// is a full refresh before the error is surfaced.
func (ix *Indexer) Remove(ctx context.Context, relPath string) error {
	relPath = strings.Trim(strings.TrimSpace(relPath), "/")
	if relPath == "" || relPath == "." {
		return pathfilter.ErrInvalidPath
	}

	base, info, err := ix.Locate(ctx, relPath)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Join(base, relPath)); err != nil {
		ix.log.Error("disk delete failed, resyncing index",
			logging.String(logging.FieldPath, relPath),
			logging.Error(err))
		if refreshErr := ix.Refresh(ctx); refreshErr != nil {
			return errors.Join(err, refreshErr)
		}
		return err
	}

	if _, err := ix.store.RemoveSubtree(ctx, relPath, info.IsDir()); err != nil {
		return err
	}
	ix.parents.invalidate(relPath)
	return ix.recordEvent(ctx, fsindex.EventRemoved, relPath, info.IsDir())
}

// Transfer moves an external file or directory tree to destRel under the
// primary base path and indexes the result. The source must live outside
// every managed base; the destination must be absent, fit the destination
// filesystem, and keep every resulting path within the length limit.
func (ix *Indexer) Transfer(ctx context.Context, src, destRel string) (string, error) {
	srcAbs, err := pathfilter.CleanExternal(src)
	if err != nil {
		return "", err
	}
	srcInfo, err := os.Lstat(srcAbs)
	if err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	for _, base := range ix.cfg.FSAL.BasePaths {
		if srcAbs == base || strings.HasPrefix(srcAbs, base+string(filepath.Separator)) {
			return "", fmt.Errorf("source %s is already managed", src)
		}
	}

	base := ix.cfg.FSAL.BasePaths[0]
	rel, err := pathfilter.CleanRelative(base, destRel)
	if err != nil {
		return "", err
	}
	destAbs := filepath.Join(base, rel)
	if _, err := os.Lstat(destAbs); err == nil {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, rel)
	}

	if err := checkPathLengths(srcAbs, destAbs, srcInfo.IsDir()); err != nil {
		return "", err
	}
	size, err := fileutil.TreeSize(srcAbs)
	if err != nil {
		return "", err
	}
	if err := checkFreeSpace(base, size); err != nil {
		return "", err
	}

	destDir := filepath.Dir(destAbs)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	// Land under a temporary name first so a partial cross-device copy
	// never shows up at the final path.
	tmp := filepath.Join(destDir, ".fsal-transfer-"+uuid.NewString())
	if err := fileutil.MovePath(srcAbs, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("move %s: %w", src, err)
	}
	if err := os.Rename(tmp, destAbs); err != nil {
		_ = os.RemoveAll(tmp)
		return "", err
	}

	ix.log.Info("transfer complete",
		logging.String("source", srcAbs),
		logging.String(logging.FieldPath, rel),
		logging.Int64("bytes", size))
	return rel, ix.RefreshPath(ctx, rel)
}

// Consolidate moves indexed subtrees into destRel, one source at a time.
// Sources that fail leave the remainder untouched; the returned slice names
// the sources that made it, and the error aggregates the failures.
func (ix *Indexer) Consolidate(ctx context.Context, sources []string, destRel string) ([]string, error) {
	destRel, err := pathfilter.CleanRelative(ix.cfg.FSAL.BasePaths[0], destRel)
	if err != nil {
		return nil, err
	}
	destBase, destInfo, err := ix.Locate(ctx, destRel)
	if err != nil {
		destBase = ix.cfg.FSAL.BasePaths[0]
	} else if !destInfo.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", destRel)
	}
	destAbs := filepath.Join(destBase, destRel)
	if err := os.MkdirAll(destAbs, 0o755); err != nil {
		return nil, err
	}

	var (
		moved []string
		errs  []error
	)
	for _, source := range sources {
		rel := strings.Trim(strings.TrimSpace(source), "/")
		if rel == "" || rel == "." {
			errs = append(errs, fmt.Errorf("%s: %w", source, pathfilter.ErrInvalidPath))
			continue
		}
		if err := ix.consolidateOne(ctx, rel, destAbs, destRel); err != nil {
			ix.log.Warn("consolidate source failed",
				logging.String(logging.FieldPath, rel),
				logging.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", rel, err))
			continue
		}
		moved = append(moved, rel)
	}
	return moved, errors.Join(errs...)
}

func (ix *Indexer) consolidateOne(ctx context.Context, rel, destAbs, destRel string) error {
	base, info, err := ix.Locate(ctx, rel)
	if err != nil {
		return err
	}
	name := filepath.Base(rel)
	targetRel := filepath.Join(destRel, name)
	if targetRel == rel {
		return nil
	}
	targetAbs := filepath.Join(destAbs, name)
	if _, err := os.Lstat(targetAbs); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, targetRel)
	}

	if err := fileutil.MovePath(filepath.Join(base, rel), targetAbs); err != nil {
		return err
	}
	if _, err := ix.store.RemoveSubtree(ctx, rel, info.IsDir()); err != nil {
		return err
	}
	ix.parents.invalidate(rel)
	if err := ix.recordEvent(ctx, fsindex.EventRemoved, rel, info.IsDir()); err != nil {
		return err
	}
	return ix.RefreshPath(ctx, targetRel)
}

// checkPathLengths rejects transfers that would produce destination paths
// past the filesystem-portable limit.
func checkPathLengths(srcAbs, destAbs string, isDir bool) error {
	if !isDir {
		if len(destAbs) > pathfilter.PathLengthLimit {
			return fmt.Errorf("%w: destination path too long", pathfilter.ErrInvalidPath)
		}
		return nil
	}
	return filepath.WalkDir(srcAbs, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcAbs, path)
		if err != nil {
			return err
		}
		if len(filepath.Join(destAbs, rel)) > pathfilter.PathLengthLimit {
			return fmt.Errorf("%w: destination path too long: %s", pathfilter.ErrInvalidPath, rel)
		}
		return nil
	})
}

// checkFreeSpace verifies the destination filesystem can hold size bytes.
func checkFreeSpace(base string, size int64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(base, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", base, err)
	}
	available := int64(stat.Bavail) * int64(stat.Bsize)
	if size > available {
		return fmt.Errorf("not enough space on %s: need %d bytes, %d available", base, size, available)
	}
	return nil
}
