package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"fsal/internal/bundles"
	"fsal/internal/config"
	"fsal/internal/daemon"
	"fsal/internal/fsindex"
	"fsal/internal/indexer"
	"fsal/internal/ipc"
	"fsal/internal/logging"
	"fsal/internal/pathfilter"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the fsal daemon runtime loop and blocks until the context
// is cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(filepath.Dir(cfg.Database.Path), "fsald.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := BuildDaemon(cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.FSAL.Socket, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return err
	}

	logStartupSnapshot(logger, cfg)

	<-signalCtx.Done()
	logger.Info("fsald shutting down")
	d.Stop()
	return nil
}

// BuildDaemon assembles the store, path filter, indexer, and bundle
// manager behind a daemon instance.
func BuildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := fsindex.Open(cfg)
	if err != nil {
		return nil, err
	}

	filter, err := pathfilter.New(cfg.FSAL.Blacklist)
	if err != nil {
		store.Close()
		return nil, err
	}

	ix := indexer.New(cfg, store, filter, logger)
	bm := bundles.NewManager(cfg, ix, logger)

	d, err := daemon.New(cfg, store, ix, bm, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("socket", cfg.FSAL.Socket),
		logging.Int("base_paths", len(cfg.FSAL.BasePaths)),
		logging.Int("blacklist_patterns", len(cfg.FSAL.Blacklist)),
		logging.Bool("ondd_enabled", cfg.ONDD.Enabled),
		logging.Bool("bundle_watch", cfg.Bundles.Watch),
		logging.Bool("checksums", cfg.Index.Checksum),
	)
}
