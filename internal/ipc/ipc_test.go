package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fsal/internal/bundles"
	"fsal/internal/config"
	"fsal/internal/daemon"
	"fsal/internal/indexer"
	"fsal/internal/ipc"
	"fsal/internal/logging"
	"fsal/internal/pathfilter"
	"fsal/internal/testsupport"
)

func newTestClient(t *testing.T, cfg *config.Config) *ipc.Client {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	filter, err := pathfilter.New(cfg.FSAL.Blacklist)
	if err != nil {
		t.Fatalf("pathfilter.New: %v", err)
	}
	logger := logging.NewNop()
	ix := indexer.New(cfg, store, filter, logger)
	bm := bundles.NewManager(cfg, ix, logger)
	d, err := daemon.New(cfg, store, ix, bm, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server, err := ipc.NewServer(ctx, cfg.FSAL.Socket, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(cfg.FSAL.Socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStatusAndListDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedTree(t, testsupport.BasePath(cfg),
		"videos/movie.mp4", "docs/readme.txt")
	client := newTestClient(t, cfg)

	if err := client.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Files != 2 || status.Dirs != 2 {
		t.Fatalf("unexpected status counts: %+v", status)
	}
	if status.DBPath == "" || len(status.BasePaths) != 1 {
		t.Fatalf("incomplete status: %+v", status)
	}

	listing, err := client.ListDir("")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(listing.Entries) != 2 {
		t.Fatalf("expected 2 root entries, got %d", len(listing.Entries))
	}
	if listing.Entries[0].Type != "dir" {
		t.Fatalf("expected directories first: %+v", listing.Entries[0])
	}

	if _, err := client.ListDir("videos/movie.mp4"); err == nil {
		t.Fatal("listing a file should fail")
	}
	if _, err := client.ListDir("no/such/dir"); err == nil {
		t.Fatal("listing an unknown path should fail")
	}
}

func TestSearchSemantics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedTree(t, testsupport.BasePath(cfg),
		"music/album/track01.mp3",
		"music/album/track02.mp3",
		"music/cover.jpg",
	)
	client := newTestClient(t, cfg)
	if err := client.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// A query naming an indexed directory returns its listing.
	resp, err := client.Search(ipc.SearchRequest{Query: "music/album"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.IsMatch {
		t.Fatal("expected directory match")
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 listing entries, got %d", len(resp.Entries))
	}

	// Word search matches names case-insensitively.
	resp, err = client.Search(ipc.SearchRequest{Query: "TRACK01"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.IsMatch || len(resp.Entries) != 1 {
		t.Fatalf("unexpected word search result: %+v", resp)
	}

	// Exclude patterns drop matches whose whole name matches.
	resp, err = client.Search(ipc.SearchRequest{
		Query:           "track01 cover",
		ExcludePatterns: []string{`.*\.jpg`},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Name != "track01.mp3" {
		t.Fatalf("exclude pattern not applied: %+v", resp.Entries)
	}

	// A pattern matching only part of a name excludes nothing.
	resp, err = client.Search(ipc.SearchRequest{
		Query:           "track01 cover",
		ExcludePatterns: []string{"o"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("partial-name exclude should keep all entries: %+v", resp.Entries)
	}
}

func TestPathPredicatesAndSize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BasePath(cfg)
	testsupport.SeedTree(t, base, "data/a.bin")
	testsupport.WriteFile(t, filepath.Join(base, "data", "b.bin"), 100)
	client := newTestClient(t, cfg)
	if err := client.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	exists, err := client.Exists("data/a.bin")
	if err != nil || !exists.Exists {
		t.Fatalf("Exists: %v %+v", err, exists)
	}
	isDir, err := client.IsDir("data")
	if err != nil || !isDir.IsDir {
		t.Fatalf("IsDir: %v %+v", err, isDir)
	}
	isFile, err := client.IsFile("data")
	if err != nil || isFile.IsFile {
		t.Fatalf("IsFile on dir: %v %+v", err, isFile)
	}

	entry, err := client.GetEntry("data/b.bin")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.Entry.Size != 100 {
		t.Fatalf("unexpected entry: %+v", entry.Entry)
	}
	if _, err := client.GetEntry("missing"); err == nil {
		t.Fatal("GetEntry on unindexed path should fail")
	}

	size, err := client.PathSize("data")
	if err != nil {
		t.Fatalf("PathSize: %v", err)
	}
	if size.Size != 101 {
		t.Fatalf("expected 101 bytes, got %d", size.Size)
	}
}

func TestRemoveAndTransfer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BasePath(cfg)
	testsupport.SeedTree(t, base, "old/junk.txt")
	client := newTestClient(t, cfg)
	if err := client.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	removed, err := client.Remove("old")
	if err != nil || !removed.Removed {
		t.Fatalf("Remove: %v %+v", err, removed)
	}
	if _, err := os.Lstat(filepath.Join(base, "old")); !os.IsNotExist(err) {
		t.Fatalf("expected old/ gone: %v", err)
	}

	external := filepath.Join(t.TempDir(), "incoming.bin")
	testsupport.WriteFile(t, external, 64)
	transferred, err := client.Transfer(external, "library/incoming.bin")
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if transferred.Path != "library/incoming.bin" {
		t.Fatalf("unexpected destination: %s", transferred.Path)
	}
	exists, err := client.Exists("library/incoming.bin")
	if err != nil || !exists.Exists {
		t.Fatalf("transferred file not indexed: %v %+v", err, exists)
	}
}

func TestChangeFeedRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedTree(t, testsupport.BasePath(cfg), "a.txt", "b.txt")
	client := newTestClient(t, cfg)
	if err := client.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	changes, err := client.GetChanges(100)
	if err != nil {
		t.Fatalf("GetChanges: %v", err)
	}
	if len(changes.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(changes.Events))
	}
	if changes.Events[0].Type != "created" {
		t.Fatalf("unexpected event: %+v", changes.Events[0])
	}

	confirmed, err := client.ConfirmChanges(len(changes.Events))
	if err != nil {
		t.Fatalf("ConfirmChanges: %v", err)
	}
	if confirmed.Confirmed != 2 {
		t.Fatalf("expected 2 confirmed, got %d", confirmed.Confirmed)
	}

	changes, err = client.GetChanges(100)
	if err != nil {
		t.Fatalf("GetChanges: %v", err)
	}
	if len(changes.Events) != 0 {
		t.Fatalf("expected drained feed, got %d events", len(changes.Events))
	}
}

func TestSetWhitelistBypassesBlacklist(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBlacklist(`^hidden(/|$)`))
	testsupport.SeedTree(t, testsupport.BasePath(cfg), "hidden/secret.txt")
	client := newTestClient(t, cfg)

	if err := client.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	exists, err := client.Exists("hidden/secret.txt")
	if err != nil || exists.Exists {
		t.Fatalf("blacklisted path should not index: %v %+v", err, exists)
	}

	if err := client.SetWhitelist([]string{"hidden"}); err != nil {
		t.Fatalf("SetWhitelist: %v", err)
	}
	if err := client.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	exists, err = client.Exists("hidden/secret.txt")
	if err != nil || !exists.Exists {
		t.Fatalf("whitelisted path should index: %v %+v", err, exists)
	}
}

func TestDatabaseHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := newTestClient(t, cfg)

	health, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !health.DatabaseExists || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
}
