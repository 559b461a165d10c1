package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fsal/internal/config"
	"fsal/internal/fsindex"
)

// MustOpenStore opens an fsindex.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *fsindex.Store {
	t.Helper()

	store, err := fsindex.Open(cfg)
	if err != nil {
		t.Fatalf("fsindex.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertDir indexes a directory row and returns it.
func InsertDir(t testing.TB, store *fsindex.Store, basePath string, relPath string, parentID int64) *fsindex.Entry {
	t.Helper()

	entry := &fsindex.Entry{
		ParentID: parentID,
		Type:     fsindex.TypeDir,
		Name:     filepath.Base(relPath),
		Path:     relPath,
		BasePath: basePath,
		ModTime:  time.Now().UTC(),
	}
	if _, err := store.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("Upsert dir %s: %v", relPath, err)
	}
	return entry
}

// InsertFile indexes a file row and returns it.
func InsertFile(t testing.TB, store *fsindex.Store, basePath string, relPath string, parentID, size int64) *fsindex.Entry {
	t.Helper()

	entry := &fsindex.Entry{
		ParentID: parentID,
		Type:     fsindex.TypeFile,
		Name:     filepath.Base(relPath),
		Path:     relPath,
		BasePath: basePath,
		Size:     size,
		ModTime:  time.Now().UTC(),
	}
	if _, err := store.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("Upsert file %s: %v", relPath, err)
	}
	return entry
}
