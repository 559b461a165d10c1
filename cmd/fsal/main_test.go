package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fsal/internal/bundles"
	"fsal/internal/config"
	"fsal/internal/daemon"
	"fsal/internal/fsindex"
	"fsal/internal/indexer"
	"fsal/internal/ipc"
	"fsal/internal/logging"
	"fsal/internal/pathfilter"
	"fsal/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *fsindex.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(filepath.Dir(cfg.Database.Path), "config.toml")
	writeTestConfig(t, configPath, cfg)

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

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, cfg.FSAL.Socket, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: cfg.FSAL.Socket,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestCLIStatusAndListing(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedTree(t, testsupport.BasePath(env.cfg),
		"videos/movie.mp4", "videos/clip.mp4", "docs/readme.txt")

	if _, _, err := runCLI(t, []string{"refresh"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Files")
	requireContains(t, out, "3")

	out, _, err = runCLI(t, []string{"ls"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	requireContains(t, out, "videos")
	requireContains(t, out, "docs")

	out, _, err = runCLI(t, []string{"ls", "videos"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("ls videos: %v", err)
	}
	requireContains(t, out, "movie.mp4")

	out, _, err = runCLI(t, []string{"find", "--count", "--type", "file"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("find --count: %v", err)
	}
	if strings.TrimSpace(out) != "3" {
		t.Fatalf("expected file count 3, got %q", out)
	}
}

func TestCLISearchInfoAndPredicates(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(testsupport.BasePath(env.cfg), "videos", "movie.mp4"), 256)

	if _, _, err := runCLI(t, []string{"refresh"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	out, _, err := runCLI(t, []string{"search", "movie"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "movie.mp4")

	out, _, err = runCLI(t, []string{"info", "videos/movie.mp4"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	requireContains(t, out, "Type:      file")
	requireContains(t, out, "256 bytes")

	out, _, err = runCLI(t, []string{"exists", "videos"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("exists videos: %v", err)
	}
	requireContains(t, out, "yes")

	out, _, err = runCLI(t, []string{"exists", "missing"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("exists missing should fail")
	}
	requireContains(t, out, "no")

	out, _, err = runCLI(t, []string{"du", "videos"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("du: %v", err)
	}
	requireContains(t, out, "videos")
}

func TestCLIChangesAndWhitelist(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedTree(t, testsupport.BasePath(env.cfg), "media/track.mp3")

	if _, _, err := runCLI(t, []string{"refresh"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	out, _, err := runCLI(t, []string{"changes", "--confirm"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	requireContains(t, out, "media/track.mp3")
	requireContains(t, out, "confirmed")

	out, _, err = runCLI(t, []string{"changes"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("changes after confirm: %v", err)
	}
	requireContains(t, out, "(no pending changes)")

	out, _, err = runCLI(t, []string{"whitelist", "media"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	requireContains(t, out, "whitelist set to 1 prefixes")

	out, _, err = runCLI(t, []string{"whitelist"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("whitelist clear: %v", err)
	}
	requireContains(t, out, "whitelist cleared")
}

func TestCLIRemoveRequiresForce(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedTree(t, testsupport.BasePath(env.cfg), "junk/old.log")

	if _, _, err := runCLI(t, []string{"refresh"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, _, err := runCLI(t, []string{"rm", "junk"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("rm without --force should fail")
	}

	out, _, err := runCLI(t, []string{"rm", "--force", "junk"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rm --force: %v", err)
	}
	requireContains(t, out, "removed junk")

	if _, _, err := runCLI(t, []string{"exists", "junk"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("removed path should no longer be indexed")
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("[fsal]\n")
	fmt.Fprintf(&sb, "socket = %q\n", cfg.FSAL.Socket)
	sb.WriteString("base_paths = [")
	for i, base := range cfg.FSAL.BasePaths {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", base)
	}
	sb.WriteString("]\n\n[database]\n")
	fmt.Fprintf(&sb, "path = %q\n", cfg.Database.Path)
	sb.WriteString("\n[logging]\noutput = \"stderr\"\n")
	sb.WriteString("\n[index]\nrefresh_on_start = false\n")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
