package bundles_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsal/internal/bundles"
	"fsal/internal/config"
	"fsal/internal/fsindex"
	"fsal/internal/indexer"
	"fsal/internal/logging"
	"fsal/internal/pathfilter"
	"fsal/internal/testsupport"
)

func newManager(t *testing.T, cfg *config.Config) (*bundles.Manager, *fsindex.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	filter, err := pathfilter.New(cfg.FSAL.Blacklist)
	require.NoError(t, err)
	ix := indexer.New(cfg, store, filter, logging.NewNop())
	return bundles.NewManager(cfg, ix, logging.NewNop()), store
}

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestIsBundle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BasePath(cfg)
	mgr, _ := newManager(t, cfg)

	bundleRel := filepath.Join(cfg.Bundles.BundlesDir, "content.zip")
	writeZip(t, filepath.Join(base, bundleRel), map[string]string{"a.txt": "x"})
	testsupport.SeedTree(t, base, "elsewhere.zip", filepath.Join(cfg.Bundles.BundlesDir, "notes.txt"))

	assert.True(t, mgr.IsBundle(base, bundleRel))
	assert.False(t, mgr.IsBundle(base, "elsewhere.zip"), "outside the bundle directory")
	assert.False(t, mgr.IsBundle(base, filepath.Join(cfg.Bundles.BundlesDir, "notes.txt")), "unknown extension")
	assert.False(t, mgr.IsBundle(base, filepath.Join(cfg.Bundles.BundlesDir, "missing.zip")))
}

func TestImportExtractsIndexesAndConsumes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BasePath(cfg)
	mgr, store := newManager(t, cfg)

	bundleRel := filepath.Join(cfg.Bundles.BundlesDir, "content.zip")
	writeZip(t, filepath.Join(base, bundleRel), map[string]string{
		"articles/intro.html": "<html></html>",
		"articles/img/a.png":  "png",
	})

	ctx := context.Background()
	members, err := mgr.Import(ctx, bundleRel)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = os.Stat(filepath.Join(base, "articles", "img", "a.png"))
	require.NoError(t, err)

	entry, err := store.GetByPath(ctx, "articles/intro.html")
	require.NoError(t, err)
	assert.NotNil(t, entry)

	_, err = os.Stat(filepath.Join(base, bundleRel))
	assert.True(t, os.IsNotExist(err), "archive should be consumed")
}

func TestImportRejectsTraversal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BasePath(cfg)
	mgr, _ := newManager(t, cfg)

	bundleRel := filepath.Join(cfg.Bundles.BundlesDir, "evil.zip")
	writeZip(t, filepath.Join(base, bundleRel), map[string]string{
		"../escape.txt": "nope",
	})

	_, err := mgr.Import(context.Background(), bundleRel)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(base), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr), "no file may escape the base path")
}

func TestSweepImportsExistingBundles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BasePath(cfg)
	mgr, store := newManager(t, cfg)

	bundleRel := filepath.Join(cfg.Bundles.BundlesDir, "waiting.zip")
	writeZip(t, filepath.Join(base, bundleRel), map[string]string{"docs/a.txt": "x"})

	w := bundles.NewWatcher(mgr)
	ctx := context.Background()
	w.Sweep(ctx)

	entry, err := store.GetByPath(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestWatcherImportsArrivingBundle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BasePath(cfg)
	require.NoError(t, os.MkdirAll(filepath.Join(base, cfg.Bundles.BundlesDir), 0o755))
	mgr, store := newManager(t, cfg)

	w := bundles.NewWatcher(mgr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Give the watcher time to arm before dropping the bundle.
	time.Sleep(200 * time.Millisecond)

	bundleRel := filepath.Join(cfg.Bundles.BundlesDir, "late.zip")
	writeZip(t, filepath.Join(base, bundleRel), map[string]string{"news/today.txt": "x"})

	require.Eventually(t, func() bool {
		entry, err := store.GetByPath(ctx, "news/today.txt")
		return err == nil && entry != nil
	}, 10*time.Second, 100*time.Millisecond)
}

func TestIsBundleRejectsEscapingPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BasePath(cfg)
	mgr, _ := newManager(t, cfg)

	// A real archive outside the base must never be treated as a bundle,
	// even when the relative path resolves to it.
	loot := filepath.Join(filepath.Dir(base), "loot.zip")
	writeZip(t, loot, map[string]string{"a.txt": "x"})

	escaping := cfg.Bundles.BundlesDir + "/../../../loot.zip"
	assert.False(t, mgr.IsBundle(base, escaping))

	_, err := mgr.Import(context.Background(), escaping)
	require.Error(t, err)
	assert.FileExists(t, loot)
}
