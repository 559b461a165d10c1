package testsupport

import (
	"path/filepath"
	"testing"

	"fsal/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// One base path is created under the temp root; options are applied last.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.FSAL.Socket = filepath.Join(base, "fsal.sock")
	cfg.FSAL.BasePaths = []string{filepath.Join(base, "content")}
	cfg.Database.Path = filepath.Join(base, "fsal.db")
	cfg.Logging.Output = "stderr"
	cfg.ONDD.Socket = filepath.Join(base, "ondd.sock")
	cfg.Index.RefreshOnStart = false

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// WithBlacklist sets blacklist patterns on the test config.
func WithBlacklist(patterns ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FSAL.Blacklist = patterns
	}
}

// WithBasePaths replaces the managed base paths on the test config.
func WithBasePaths(paths ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FSAL.BasePaths = paths
	}
}

// WithChroot restricts indexing to a sub-directory of every base path.
func WithChroot(sub string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FSAL.Chroot = sub
	}
}

// WithChecksum enables content digests on the test config.
func WithChecksum() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Index.Checksum = true
	}
}

// BasePath returns the first managed base path of the test config.
func BasePath(cfg *config.Config) string {
	return cfg.FSAL.BasePaths[0]
}
