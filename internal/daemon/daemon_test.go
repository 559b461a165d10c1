package daemon_test

import (
	"context"
	"testing"
	"time"

	"fsal/internal/bundles"
	"fsal/internal/daemon"
	"fsal/internal/indexer"
	"fsal/internal/logging"
	"fsal/internal/pathfilter"
	"fsal/internal/testsupport"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
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
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID == 0 {
		t.Fatal("expected a PID in status")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status, err = d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRefreshOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Index.RefreshOnStart = true
	testsupport.SeedTree(t, testsupport.BasePath(cfg), "media/clip.mp4")

	store := testsupport.MustOpenStore(t, cfg)
	filter, err := pathfilter.New(nil)
	if err != nil {
		t.Fatalf("pathfilter.New: %v", err)
	}
	logger := logging.NewNop()
	ix := indexer.New(cfg, store, filter, logger)
	d, err := daemon.New(cfg, store, ix, nil, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		entry, err := store.GetByPath(ctx, "media/clip.mp4")
		if err != nil {
			t.Fatalf("GetByPath: %v", err)
		}
		if entry != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("initial refresh never indexed the seeded file")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
