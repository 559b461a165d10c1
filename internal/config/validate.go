package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFSAL(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateONDD(); err != nil {
		return err
	}
	if err := c.validateBundles(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFSAL() error {
	if strings.TrimSpace(c.FSAL.Socket) == "" {
		return errors.New("fsal.socket must be set")
	}
	if len(c.FSAL.BasePaths) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/fsal/fsal.toml"
		}
		return fmt.Errorf("fsal.base_paths is required. Add at least one managed root to %s (create with 'fsal config init')", defaultPath)
	}
	for _, base := range c.FSAL.BasePaths {
		if !filepath.IsAbs(base) {
			return fmt.Errorf("fsal.base_paths entry %q must be an absolute path", base)
		}
	}
	for _, pattern := range c.FSAL.Blacklist {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return fmt.Errorf("fsal.blacklist pattern %q: %w", pattern, err)
		}
	}
	if strings.Contains(c.FSAL.Chroot, "..") {
		return fmt.Errorf("fsal.chroot %q must not traverse outside the base path", c.FSAL.Chroot)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateONDD() error {
	if !c.ONDD.Enabled {
		return nil
	}
	if strings.TrimSpace(c.ONDD.Socket) == "" {
		return errors.New("ondd.socket must be set when ondd.enabled is true")
	}
	return nil
}

func (c *Config) validateBundles() error {
	if c.Bundles.BundlesDir == "" {
		return nil
	}
	if filepath.IsAbs(c.Bundles.BundlesDir) {
		return fmt.Errorf("bundles.bundles_dir %q must be relative to a base path", c.Bundles.BundlesDir)
	}
	if strings.Contains(c.Bundles.BundlesDir, "..") {
		return fmt.Errorf("bundles.bundles_dir %q must not traverse outside the base path", c.Bundles.BundlesDir)
	}
	if len(c.Bundles.BundlesExts) == 0 {
		return errors.New("bundles.bundles_exts must list at least one extension when bundles.bundles_dir is set")
	}
	return nil
}
