package bundles

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fsal/internal/config"
	"fsal/internal/indexer"
	"fsal/internal/logging"
)

// Manager imports content bundles dropped into the bundle directory. A
// bundle is a zip archive whose members are extracted straight into the
// base path that holds it; the archive is consumed on success.
type Manager struct {
	cfg *config.Config
	ix  *indexer.Indexer
	log *slog.Logger
}

func NewManager(cfg *config.Config, ix *indexer.Indexer, logger *slog.Logger) *Manager {
	return &Manager{
		cfg: cfg,
		ix:  ix,
		log: logging.NewComponentLogger(logger, "bundles"),
	}
}

// IsBundle reports whether relPath names a bundle: a regular file inside
// the bundle directory with a recognized extension. Paths that resolve
// outside the base are never bundles.
func (m *Manager) IsBundle(basePath, relPath string) bool {
	relPath = strings.Trim(relPath, "/")
	if !filepath.IsLocal(relPath) {
		return false
	}
	dir := m.cfg.Bundles.BundlesDir
	if relPath != dir && !strings.HasPrefix(relPath, dir+"/") {
		return false
	}
	ext := strings.TrimPrefix(filepath.Ext(relPath), ".")
	if !m.knownExt(ext) {
		return false
	}
	info, err := os.Lstat(filepath.Join(basePath, relPath))
	return err == nil && info.Mode().IsRegular()
}

func (m *Manager) knownExt(ext string) bool {
	ext = strings.ToLower(ext)
	for _, known := range m.cfg.Bundles.BundlesExts {
		if ext == known {
			return true
		}
	}
	return false
}

// Import extracts the bundle at relPath into its base path, indexes the
// extracted content, and removes the consumed archive. The extracted
// member paths are returned relative to the base path.
func (m *Manager) Import(ctx context.Context, relPath string) ([]string, error) {
	relPath = strings.Trim(strings.TrimSpace(relPath), "/")
	basePath, err := m.locate(relPath)
	if err != nil {
		return nil, err
	}
	if !m.IsBundle(basePath, relPath) {
		return nil, fmt.Errorf("%s is not a recognized bundle", relPath)
	}

	bundleAbs := filepath.Join(basePath, relPath)
	members, err := extractZip(bundleAbs, basePath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", relPath, err)
	}

	for _, root := range topLevel(members) {
		if err := m.ix.RefreshPath(ctx, root); err != nil {
			return nil, err
		}
	}

	if err := os.Remove(bundleAbs); err != nil {
		m.log.Warn("could not remove consumed bundle",
			logging.String(logging.FieldPath, relPath),
			logging.Error(err))
	}
	// Drop the archive's own index row if the watcher raced the indexer.
	if err := m.ix.RefreshPath(ctx, relPath); err != nil {
		return nil, err
	}

	m.log.Info("bundle imported",
		logging.String(logging.FieldPath, relPath),
		logging.Int("files", len(members)))
	return members, nil
}

func (m *Manager) locate(relPath string) (string, error) {
	for _, base := range m.cfg.FSAL.BasePaths {
		if info, err := os.Lstat(filepath.Join(base, relPath)); err == nil && info.Mode().IsRegular() {
			return base, nil
		}
	}
	return "", fmt.Errorf("%w: %s", indexer.ErrNotManaged, relPath)
}

// extractZip unpacks archive members under extractRoot, rejecting member
// names that would land outside it.
func extractZip(archivePath, extractRoot string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	for _, member := range zr.File {
		if !filepath.IsLocal(filepath.FromSlash(member.Name)) {
			return nil, fmt.Errorf("unsafe member path %q", member.Name)
		}
	}

	var files []string
	for _, member := range zr.File {
		rel := filepath.FromSlash(strings.TrimSuffix(member.Name, "/"))
		target := filepath.Join(extractRoot, rel)
		if member.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := extractMember(member, target); err != nil {
			return nil, fmt.Errorf("member %s: %w", member.Name, err)
		}
		files = append(files, rel)
	}
	return files, nil
}

func extractMember(member *zip.File, target string) error {
	in, err := member.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// topLevel reduces member paths to their unique first components so the
// indexer refreshes each extracted tree once.
func topLevel(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	var roots []string
	for _, member := range members {
		root := member
		if i := strings.IndexRune(member, filepath.Separator); i > 0 {
			root = member[:i]
		}
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		roots = append(roots, root)
	}
	return roots
}
