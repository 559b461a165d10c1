package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// FSAL contains the core filesystem abstraction settings.
type FSAL struct {
	Socket    string   `toml:"socket"`
	BasePaths []string `toml:"base_paths"`
	Blacklist []string `toml:"blacklist"`
	Chroot    string   `toml:"chroot"`
}

// Database contains settings for the embedded index database.
type Database struct {
	Path          string `toml:"path"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

// Logging contains configuration for log output and rotation.
type Logging struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSizeMiB int    `toml:"max_size_mib"`
	Backups    int    `toml:"backups"`
}

// ONDD contains settings for the peer download daemon integration.
type ONDD struct {
	Enabled bool   `toml:"enabled"`
	Socket  string `toml:"socket"`
}

// Bundles contains the bundle import directory and extension filter.
type Bundles struct {
	BundlesDir  string   `toml:"bundles_dir"`
	BundlesExts []string `toml:"bundles_exts"`
	Watch       bool     `toml:"watch"`
}

// Index contains tuning knobs for the directory indexer.
type Index struct {
	WalkWorkers    int  `toml:"walk_workers"`
	Checksum       bool `toml:"checksum"`
	EventBacklog   int  `toml:"event_backlog"`
	RefreshOnStart bool `toml:"refresh_on_start"`
}

// Config encapsulates all configuration values for fsald.
//
// Configuration sections by subsystem:
//   - FSAL: control socket, managed base paths, blacklist, chroot
//   - Database: embedded SQLite index store
//   - Logging: log format, level, output, and size-based rotation
//   - ONDD: peer download daemon notification socket
//   - Bundles: bundle import directory and extension filter
//   - Index: walker concurrency, checksums, change-event backlog
type Config struct {
	FSAL     FSAL     `toml:"fsal"`
	Database Database `toml:"database"`
	Logging  Logging  `toml:"logging"`
	ONDD     ONDD     `toml:"ondd"`
	Bundles  Bundles  `toml:"bundles"`
	Index    Index    `toml:"index"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/fsal/fsal.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fsal.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
// Base paths are created on a best-effort basis so the daemon can start while
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	required := []string{
		filepath.Dir(c.Database.Path),
		filepath.Dir(c.FSAL.Socket),
	}
	for _, dir := range required {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, base := range c.FSAL.BasePaths {
		_ = os.MkdirAll(base, 0o755)
	}
	if output := strings.TrimSpace(c.Logging.Output); output != "" && output != "stdout" && output != "stderr" {
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return fmt.Errorf("create log directory %q: %w", filepath.Dir(output), err)
		}
	}
	return nil
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// ExpandPath resolves ~ prefixes and returns a cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
